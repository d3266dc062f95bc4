package handler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	_ "golang.org/x/image/webp"

	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/model"
	"edge-resizer-go/internal/response"
	"edge-resizer-go/internal/store"
)

func serveImage(t *testing.T, h *ImageHandler, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	if err := h.Handle(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return rec
}

func TestImageHandler_Handle(t *testing.T) {
	srv := newOrigin(t)
	cfg := testConfig(t, srv.URL)
	h := NewImageHandler(newTestService(t, cfg, store.Disabled{}, metrics.New()), discardLogger())

	tests := []struct {
		name       string
		path       string
		accept     string
		wantType   string
		wantFormat string
		wantW      int
	}{
		{"webp namespace with width", "/webp/tr:w-60/photo.png", "", "image/webp", "webp", 60},
		{"original namespace keeps png", "/original/photo.png", "image/png", "image/png", "png", 120},
		{"original namespace with webp accept", "/original/tr:h-40/photo.png", "image/webp", "image/webp", "webp", 60},
		{"bare path", "/photo.png", "", "image/png", "png", 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveImage(t, h, tt.path, tt.accept)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
			}
			if got := rec.Header().Get(echo.HeaderContentType); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if got := rec.Header().Get("Last-Modified"); got == "" {
				t.Error("Last-Modified should be propagated from origin")
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
			if err != nil {
				t.Fatalf("DecodeConfig: %v", err)
			}
			if format != tt.wantFormat || cfg.Width != tt.wantW {
				t.Errorf("got %s %dpx wide, want %s %dpx", format, cfg.Width, tt.wantFormat, tt.wantW)
			}
		})
	}
}

func TestImageHandler_Failures(t *testing.T) {
	srv := newOrigin(t)
	cfg := testConfig(t, srv.URL)
	h := NewImageHandler(newTestService(t, cfg, store.Disabled{}, metrics.New()), discardLogger())

	for _, path := range []string{"/webp/page.html", "/webp/tr:w-10/missing.png"} {
		t.Run(path, func(t *testing.T) {
			rec := serveImage(t, h, path, "")

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}
			if rec.Body.String() != response.FailureBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), response.FailureBody)
			}
			if got := rec.Header().Get(echo.HeaderCacheControl); got != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", got)
			}
		})
	}
}

func TestImageHandler_ServesStoredVariant(t *testing.T) {
	cfg := testConfig(t, "http://origin.invalid")
	cfg.Store.Bucket = "variants"
	cfg.Store.ServeHits = true
	s := &memStore{objects: map[string][]byte{"webp/tr:w-60/photo.png": []byte("stored-variant")}}
	h := NewImageHandler(newTestService(t, cfg, s, metrics.New()), discardLogger())

	rec := serveImage(t, h, "/webp/tr:w-60/photo.png", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "stored-variant" {
		t.Errorf("body = %q, want stored bytes", rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderCacheControl); got != "public, max-age=60" {
		t.Errorf("Cache-Control = %q, want stored policy", got)
	}
	if got := rec.Header().Values(echo.HeaderVary); len(got) != 1 || got[0] != echo.HeaderAccept {
		t.Errorf("Vary = %q, want [Accept]", got)
	}
}

func TestImageHandler_VaryAccept(t *testing.T) {
	srv := newOrigin(t)
	cfg := testConfig(t, srv.URL)
	h := NewImageHandler(newTestService(t, cfg, store.Disabled{}, metrics.New()), discardLogger())

	tests := []struct {
		name    string
		preset  []string
		wantAll []string
	}{
		{"namespaced path served directly", nil, []string{"Accept"}},
		{"already set by the rewrite", []string{"Accept"}, []string{"Accept"}},
		{"listed with other headers", []string{"Origin, accept"}, []string{"Origin, accept"}},
		{"other header only", []string{"Origin"}, []string{"Origin", "Accept"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/webp/tr:w-60/photo.png", http.NoBody)
			rec := httptest.NewRecorder()
			for _, v := range tt.preset {
				rec.Header().Add(echo.HeaderVary, v)
			}

			if err := h.Handle(e.NewContext(req, rec)); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			got := rec.Header().Values(echo.HeaderVary)
			if fmt.Sprint(got) != fmt.Sprint(tt.wantAll) {
				t.Errorf("Vary = %q, want %q", got, tt.wantAll)
			}
		})
	}
}

func TestImageHandler_mapError(t *testing.T) {
	h := &ImageHandler{logger: discardLogger()}
	errs := []error{
		&model.OriginFetchError{URL: "http://origin/x", StatusCode: 503},
		fmt.Errorf("%w: text/html", model.ErrNotAnImage),
		model.ErrPayloadTooLarge,
		errors.New("boom"),
	}
	for _, err := range errs {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/webp/x.png", http.NoBody), rec)
		if got := h.mapError(c, err); got != nil {
			t.Fatalf("mapError(%v) returned error: %v", err, got)
		}
		if rec.Code != http.StatusInternalServerError || rec.Body.String() != response.FailureBody {
			t.Errorf("mapError(%v) = %d %q, want generic failure", err, rec.Code, rec.Body.String())
		}
	}
}
