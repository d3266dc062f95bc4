package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"edge-resizer-go/internal/model"
	"edge-resizer-go/internal/router"
	"edge-resizer-go/internal/service"
)

// EdgeHandler accepts CDN function events and returns what the function
// runtime expects back: the rewritten request for viewer-request events,
// the response object for origin-response events.
type EdgeHandler struct {
	service *service.ResizeService
	logger  *slog.Logger
}

// NewEdgeHandler creates an EdgeHandler.
func NewEdgeHandler(svc *service.ResizeService, logger *slog.Logger) *EdgeHandler {
	return &EdgeHandler{
		service: svc,
		logger:  logger.With("component", "edge_handler"),
	}
}

// ViewerRequest rewrites the request URI into a format namespace.
func (h *EdgeHandler) ViewerRequest(c echo.Context) error {
	rec, err := h.bind(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, router.RewriteEvent(&rec.CF.Request))
}

// OriginResponse transforms the origin's asset and returns the response object.
func (h *EdgeHandler) OriginResponse(c echo.Context) error {
	rec, err := h.bind(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.HandleOriginResponse(c.Request().Context(), rec.CF))
}

func (h *EdgeHandler) bind(c echo.Context) (*model.EdgeRecord, error) {
	var ev model.EdgeEvent
	if err := c.Bind(&ev); err != nil {
		h.logger.Warn("malformed edge event", "err", err, "path", c.Request().URL.Path)
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed event")
	}
	if len(ev.Records) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "event has no records")
	}
	return &ev.Records[0], nil
}
