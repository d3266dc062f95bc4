// Package transform resizes and re-encodes originals into variants.
package transform

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/model"
	"edge-resizer-go/internal/negotiate"
)

// Transformer decodes, resizes and encodes images under a fixed policy.
type Transformer struct {
	quality            int
	maxResponseBytes   int
	maxDimension       int
	maxInputPixels     int64
	withoutEnlargement bool
	logger             *slog.Logger
	metrics            *metrics.Metrics
}

// NewTransformer creates a Transformer from the transform policy.
// The metrics parameter is optional.
// Unset dimension and pixel limits fall back to the config defaults.
func NewTransformer(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Transformer {
	t := &Transformer{
		quality:            cfg.Transform.Quality,
		maxResponseBytes:   cfg.Transform.MaxResponseBytes,
		maxDimension:       cfg.Transform.MaxDimension,
		maxInputPixels:     cfg.Transform.MaxInputPixels,
		withoutEnlargement: cfg.Transform.WithoutEnlarge,
		logger:             logger.With("component", "transformer"),
		metrics:            m,
	}
	if t.maxDimension <= 0 {
		t.maxDimension = config.DefaultMaxDimension
	}
	if t.maxInputPixels <= 0 {
		t.maxInputPixels = config.DefaultMaxInputPixels
	}
	return t
}

// Sniff returns the media type detected from the content itself.
func Sniff(raw []byte) string {
	return mimetype.Detect(raw).String()
}

// Transform resizes raw per params and encodes it as format.
//
// The content type is sniffed from raw; anything that is not an image fails
// with model.ErrNotAnImage. Decode and encode failures, originals above the
// pixel limit and outputs above the dimension limit are reported as
// model.ErrTransformFailed. A result whose base64 form would exceed the
// response limit fails with model.ErrPayloadTooLarge; no truncated body is
// ever returned.
func (t *Transformer) Transform(raw []byte, params model.Params, format negotiate.Format) (*model.TransformResult, error) {
	return t.TransformSniffed(raw, Sniff(raw), params, format)
}

// TransformSniffed is Transform for callers that already ran Sniff on raw.
func (t *Transformer) TransformSniffed(raw []byte, sniffed string, params model.Params, format negotiate.Format) (*model.TransformResult, error) {
	if !strings.HasPrefix(sniffed, "image/") {
		return nil, fmt.Errorf("%w: sniffed %s", model.ErrNotAnImage, sniffed)
	}

	start := time.Now()
	body, err := t.render(raw, sniffed, params, format)
	if t.metrics != nil {
		t.metrics.TransformDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		t.observe(format, "error")
		return nil, err
	}

	if limit := t.maxResponseBytes; limit > 0 {
		if encoded := base64.StdEncoding.EncodedLen(len(body)); encoded > limit {
			t.observe(format, "too_large")
			return nil, fmt.Errorf("%w: %d base64 bytes, limit %d", model.ErrPayloadTooLarge, encoded, limit)
		}
	}

	t.observe(format, "ok")
	t.logger.Debug("transformed",
		"from", sniffed,
		"to", format,
		"in_bytes", len(raw),
		"out_bytes", len(body),
	)
	return &model.TransformResult{Body: body, MimeType: format.MimeType()}, nil
}

func (t *Transformer) render(raw []byte, sniffed string, params model.Params, format negotiate.Format) ([]byte, error) {
	if err := t.checkRequested(params); err != nil {
		return nil, err
	}

	// Decoders allocate the whole frame from the header, so check it first.
	hdr, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s header: %v", model.ErrTransformFailed, sniffed, err)
	}
	if px := int64(hdr.Width) * int64(hdr.Height); px > t.maxInputPixels {
		return nil, fmt.Errorf("%w: original is %dx%d, limit %d pixels",
			model.ErrTransformFailed, hdr.Width, hdr.Height, t.maxInputPixels)
	}

	// Animated GIFs pass through when they stay GIFs and no resize is asked for.
	if sniffed == "image/gif" && format == negotiate.FormatGIF && params.IsZero() && isAnimated(raw) {
		return raw, nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", model.ErrTransformFailed, sniffed, err)
	}

	if p, ok := planResize(img.Bounds(), params, t.withoutEnlargement); ok {
		if p.width > t.maxDimension || p.height > t.maxDimension {
			return nil, fmt.Errorf("%w: output %dx%d exceeds %d px",
				model.ErrTransformFailed, p.width, p.height, t.maxDimension)
		}
		img = resize(img, p)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, format, t.quality); err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", model.ErrTransformFailed, format, err)
	}
	return buf.Bytes(), nil
}

// checkRequested rejects directive values above the dimension limit before
// any arithmetic is done on them.
func (t *Transformer) checkRequested(params model.Params) error {
	for _, v := range []*int{params.Width, params.Height} {
		if v != nil && *v > t.maxDimension {
			return fmt.Errorf("%w: requested %d px exceeds %d px", model.ErrTransformFailed, *v, t.maxDimension)
		}
	}
	return nil
}

func (t *Transformer) observe(format negotiate.Format, result string) {
	if t.metrics != nil {
		t.metrics.TransformsTotal.WithLabelValues(string(format), result).Inc()
	}
}

func isAnimated(raw []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(raw))
	return err == nil && len(g.Image) > 1
}
