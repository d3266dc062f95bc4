package handler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"edge-resizer-go/internal/client"
	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/response"
	"edge-resizer-go/internal/service"
	"edge-resizer-go/internal/store"
	"edge-resizer-go/internal/transform"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, originURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Origin: config.OriginConfig{
			BaseURL:         originURL,
			TimeoutSeconds:  5,
			IdleConnections: 4,
			ScratchDir:      t.TempDir(),
		},
		Transform: config.TransformConfig{
			Quality:          80,
			MaxResponseBytes: 6 * 1024 * 1024,
			FallbackFormat:   "jpeg",
		},
		Response: config.ResponseConfig{
			DefaultCacheControl: "public, max-age=31536000, must-revalidate",
		},
		Store: config.StoreConfig{WriteTimeoutSeconds: 5},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config, s store.Store, m *metrics.Metrics) *service.ResizeService {
	t.Helper()
	logger := discardLogger()
	origin, err := client.NewOriginClient(cfg, logger, m)
	if err != nil {
		t.Fatalf("NewOriginClient() error = %v", err)
	}
	assembler, err := response.NewAssembler(cfg)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}
	return service.NewResizeService(
		cfg,
		origin,
		transform.NewTransformer(cfg, logger, m),
		assembler,
		store.NewPopulator(cfg, s, logger, m),
		s,
		logger,
		m,
	)
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// newOrigin serves photo.png as a PNG and page.html as HTML; anything else is 404.
func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	body := pngFixture(t, 120, 80)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
			_, _ = w.Write(body)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memStore struct {
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, key string, body []byte, _, _ string) error {
	s.objects[key] = body
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (*store.Object, error) {
	body, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Object{
		Body:         io.NopCloser(bytes.NewReader(body)),
		Size:         int64(len(body)),
		ContentType:  "image/webp",
		CacheControl: "public, max-age=60",
	}, nil
}
