package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/model"
)

// Populator writes variants back to the store off the response path.
//
// Writes are fire-and-forget: Populate returns before the write starts and
// its outcome is only logged. Concurrent writes to the same key race and the
// last one to finish wins; the store is a cache, not a source of truth.
type Populator struct {
	store   Store
	enabled bool
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// NewPopulator creates a Populator. The metrics parameter is optional.
func NewPopulator(cfg *config.Config, s Store, logger *slog.Logger, m *metrics.Metrics) *Populator {
	return &Populator{
		store:   s,
		enabled: cfg.Store.Bucket != "",
		timeout: time.Duration(cfg.Store.WriteTimeoutSeconds) * time.Second,
		logger:  logger.With("component", "cache_populator"),
		metrics: m,
	}
}

// Populate dispatches a write of result under key. The write outlives ctx's
// cancellation but not the populator's write timeout.
func (p *Populator) Populate(ctx context.Context, key string, result *model.TransformResult, cacheControl string) {
	if !p.enabled {
		return
	}

	if p.metrics != nil {
		p.metrics.CacheWritesQueue.Inc()
	}

	wctx := context.WithoutCancel(ctx)
	p.wg.Go(func() {
		if p.metrics != nil {
			defer p.metrics.CacheWritesQueue.Dec()
		}

		ctx, cancel := context.WithTimeout(wctx, p.timeout)
		defer cancel()

		start := time.Now()
		if err := p.store.Put(ctx, key, result.Body, result.MimeType, cacheControl); err != nil {
			p.observe("error")
			p.logger.Error("cache write failed", "key", key, "err", err)
			return
		}
		p.observe("ok")
		p.logger.Debug("cache write", "key", key, "bytes", len(result.Body), "duration_ms", time.Since(start).Milliseconds())
	})
}

// Wait blocks until dispatched writes finish or ctx is done.
func (p *Populator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Populator) observe(result string) {
	if p.metrics != nil {
		p.metrics.CacheWrites.WithLabelValues(result).Inc()
	}
}
