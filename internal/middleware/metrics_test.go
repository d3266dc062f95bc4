package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"edge-resizer-go/internal/metrics"
)

// requestSeries returns the request counter series matching every given label.
func requestSeries(t *testing.T, m *metrics.Metrics, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "edge_resizer_http_requests_total" {
			continue
		}
	series:
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			return metric
		}
	}
	return nil
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMetricsMiddleware_CountsByNamespace(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	serve(e, http.MethodGet, "/webp/a.png")
	serve(e, http.MethodGet, "/webp/tr:w-10/b.png")
	serve(e, http.MethodGet, "/original/a.png")

	tests := []struct {
		prefix string
		want   float64
	}{
		{"/webp", 2},
		{"/original", 1},
	}
	for _, tt := range tests {
		s := requestSeries(t, m, map[string]string{"path_prefix": tt.prefix, "method": "GET", "status_code": "200"})
		if s == nil {
			t.Errorf("no series for path_prefix=%s", tt.prefix)
			continue
		}
		if v := s.GetCounter().GetValue(); v != tt.want {
			t.Errorf("%s counter = %v, want %v", tt.prefix, v, tt.want)
		}
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	serve(e, http.MethodGet, "/healthz")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "edge_resizer_http_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if metric.GetHistogram().GetSampleCount() > 0 {
				return
			}
		}
	}
	t.Error("expected edge_resizer_http_request_duration_seconds with at least one sample")
}

func TestMetricsMiddleware_Statuses(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.POST("/edge/origin-response", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event")
	})
	e.Any("/original/*", func(c echo.Context) error {
		return c.String(http.StatusInternalServerError, "failed")
	})

	serve(e, http.MethodPost, "/edge/origin-response")
	serve(e, "XYZZY", "/original/a.png")
	if rec := serve(e, http.MethodGet, "/nonexistent"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	for _, want := range []map[string]string{
		{"path_prefix": "/edge", "status_code": "400"},
		{"path_prefix": "/original", "method": "other"},
		{"path_prefix": "other", "status_code": "404", "method": "GET"},
	} {
		if requestSeries(t, m, want) == nil {
			t.Errorf("no series matching %v", want)
		}
	}
}
