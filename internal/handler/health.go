package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-resizer-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the resizer's version and where it reads and writes.
func (h *HealthHandler) Status(c echo.Context) error {
	body := map[string]string{
		"status":     "ok",
		"version":    string(h.version),
		"origin_url": h.cfg.Origin.BaseURL,
		"store":      "disabled",
	}
	if h.cfg.Store.Bucket != "" {
		body["store"] = h.cfg.Store.Bucket
	}
	return c.JSON(http.StatusOK, body)
}
