package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"edge-resizer-go/internal/model"
	"edge-resizer-go/internal/response"
	"edge-resizer-go/internal/service"
	"edge-resizer-go/internal/store"
)

// ImageHandler serves variants over plain HTTP.
type ImageHandler struct {
	service *service.ResizeService
	logger  *slog.Logger
}

// NewImageHandler creates an ImageHandler.
func NewImageHandler(svc *service.ResizeService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		service: svc,
		logger:  logger.With("component", "image_handler"),
	}
}

// Handle serves the variant named by the request path.
func (h *ImageHandler) Handle(c echo.Context) error {
	req := c.Request()

	if obj, err := h.service.Lookup(req.Context(), req.URL.Path); err == nil {
		return h.serveStored(c, obj)
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("store lookup failed, transforming", "err", err, "path", req.URL.Path)
	}

	res, err := h.service.Resize(&service.Request{
		Ctx:      req.Context(),
		Path:     req.URL.Path,
		RawQuery: req.URL.RawQuery,
		Accept:   req.Header.Get(echo.HeaderAccept),
	})
	if err != nil {
		return h.mapError(c, err)
	}

	header := c.Response().Header()
	for name, vals := range res.Headers.HTTP() {
		for _, v := range vals {
			header.Add(name, v)
		}
	}
	varyAccept(header)
	return c.Blob(http.StatusOK, res.Variant.MimeType, res.Variant.Body)
}

func (h *ImageHandler) serveStored(c echo.Context, obj *store.Object) error {
	defer func() { _ = obj.Body.Close() }()

	header := c.Response().Header()
	if obj.CacheControl != "" {
		header.Set(echo.HeaderCacheControl, obj.CacheControl)
	}
	if obj.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	varyAccept(header)
	return c.Stream(http.StatusOK, obj.ContentType, obj.Body)
}

// varyAccept marks the response as negotiated on Accept unless the viewer
// rewrite already did.
func varyAccept(header http.Header) {
	for _, v := range header.Values(echo.HeaderVary) {
		for _, name := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(name), echo.HeaderAccept) {
				return
			}
		}
	}
	header.Add(echo.HeaderVary, echo.HeaderAccept)
}

// mapError logs the cause and answers with the generic failure body. The
// client never sees the cause.
func (h *ImageHandler) mapError(c echo.Context, err error) error {
	attrs := []any{"err", err, "path", c.Request().URL.Path}

	var fe *model.OriginFetchError
	switch {
	case errors.As(err, &fe):
		attrs = append(attrs, "origin_status", fe.StatusCode)
		h.logger.Warn("origin fetch failed", attrs...)
	case errors.Is(err, model.ErrNotAnImage):
		h.logger.Warn("origin asset is not an image", attrs...)
	case errors.Is(err, context.Canceled):
		h.logger.Info("client went away", attrs...)
	default:
		h.logger.Error("transform failed", attrs...)
	}

	return writeFailure(c)
}

func writeFailure(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.String(http.StatusInternalServerError, response.FailureBody)
}
