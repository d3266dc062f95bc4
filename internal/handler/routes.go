package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, image *ImageHandler, edge *EdgeHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/resizer/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.POST("/edge/viewer-request", edge.ViewerRequest)
	e.POST("/edge/origin-response", edge.OriginResponse)

	e.GET("/*", image.Handle)
}
