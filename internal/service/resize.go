// Package service implements the variant pipeline: parse, fetch, negotiate,
// transform, assemble, populate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"edge-resizer-go/internal/client"
	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/descriptor"
	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/model"
	"edge-resizer-go/internal/negotiate"
	"edge-resizer-go/internal/response"
	"edge-resizer-go/internal/store"
	"edge-resizer-go/internal/transform"
)

// Request is a single variant request.
type Request struct {
	Ctx context.Context
	// Path is the request path after the viewer rewrite.
	Path     string
	RawQuery string
	// Accept is the client's capability header.
	Accept string
	// Base holds headers the platform already attached to the response.
	Base model.Headers
}

// Result is a transformed variant with its response headers.
type Result struct {
	Descriptor model.Descriptor
	Headers    model.Headers
	Variant    *model.TransformResult
}

// ResizeService runs the variant pipeline.
type ResizeService struct {
	parser      *descriptor.Parser
	negotiator  *negotiate.Negotiator
	origin      *client.OriginClient
	transformer *transform.Transformer
	assembler   *response.Assembler
	populator   *store.Populator
	store       store.Store
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewResizeService creates a ResizeService. The metrics parameter is optional.
func NewResizeService(
	cfg *config.Config,
	origin *client.OriginClient,
	transformer *transform.Transformer,
	assembler *response.Assembler,
	populator *store.Populator,
	s store.Store,
	logger *slog.Logger,
	m *metrics.Metrics,
) *ResizeService {
	return &ResizeService{
		parser:      descriptor.NewParser(cfg),
		negotiator:  negotiate.NewNegotiator(cfg, transform.Encodable),
		origin:      origin,
		transformer: transformer,
		assembler:   assembler,
		populator:   populator,
		store:       s,
		cfg:         cfg,
		logger:      logger.With("component", "resize_service"),
		metrics:     m,
	}
}

// Resize produces the variant for req. Stages run sequentially; the only
// asynchronous step is the cache write, which is dispatched after the
// response headers are final and never awaited.
func (s *ResizeService) Resize(req *Request) (*Result, error) {
	d := s.parser.Parse(req.Path)

	s.logger.Debug("resize",
		"path", req.Path,
		"namespace", d.Namespace,
		"directive", d.Directive,
		"origin_key", d.OriginKey,
	)

	var query string
	if s.cfg.Origin.ForwardQuery {
		query = req.RawQuery
	}

	fetched, err := s.origin.Fetch(req.Ctx, d.OriginKey, query)
	if err != nil {
		return nil, err
	}
	defer fetched.Remove()

	if !strings.Contains(fetched.MimeType, "image") {
		return nil, fmt.Errorf("%w: origin declared %q", model.ErrNotAnImage, fetched.MimeType)
	}

	raw, err := fetched.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransformFailed, err)
	}

	sniffed := transform.Sniff(raw)
	format, err := s.negotiator.Negotiate(d, req.Accept, sniffed)
	if err != nil {
		return nil, err
	}

	variant, err := s.transformer.TransformSniffed(raw, sniffed, d.Params, format)
	if err != nil {
		return nil, err
	}

	headers := s.assembler.Headers(req.Base, fetched.Header, variant)
	s.populator.Populate(req.Ctx, store.ObjectKey(d.RequestPath), variant, s.assembler.CacheControl(headers))

	return &Result{Descriptor: d, Headers: headers, Variant: variant}, nil
}

// Lookup returns a stored variant for path when hit serving is enabled.
// It returns store.ErrNotFound on a miss or when hit serving is off.
func (s *ResizeService) Lookup(ctx context.Context, path string) (*store.Object, error) {
	if !s.cfg.Store.ServeHits || s.cfg.Store.Bucket == "" {
		return nil, store.ErrNotFound
	}
	obj, err := s.store.Get(ctx, store.ObjectKey(path))
	switch {
	case err == nil:
		s.observeLookup("hit")
	case errors.Is(err, store.ErrNotFound):
		s.observeLookup("miss")
	default:
		s.observeLookup("error")
	}
	return obj, err
}

// Assembler exposes the response policy for callers that render failures.
func (s *ResizeService) Assembler() *response.Assembler {
	return s.assembler
}

func (s *ResizeService) observeLookup(result string) {
	if s.metrics != nil {
		s.metrics.StoreLookups.WithLabelValues(result).Inc()
	}
}
