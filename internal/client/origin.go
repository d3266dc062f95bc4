// Package client provides the HTTP client that fetches originals.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/model"
)

const userAgent = "edge-resizer-go/1.0"

// OriginClient downloads original assets from the origin host.
type OriginClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	scratchDir string
	maxBytes   int64
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewOriginClient creates an OriginClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable origin metrics recording.
func NewOriginClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*OriginClient, error) {
	u, err := url.Parse(cfg.Origin.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("origin base_url scheme %q is not http or https", u.Scheme)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Origin.IdleConnections,
		MaxIdleConnsPerHost: cfg.Origin.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// Originals are re-encoded; ask for them unencoded.
		DisableCompression: true,
	}

	maxBytes := cfg.Origin.MaxBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultOriginMaxBytes
	}

	return &OriginClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Origin.TimeoutSeconds) * time.Second,
		},
		baseURL:    u,
		scratchDir: cfg.Origin.ScratchDir,
		maxBytes:   maxBytes,
		logger:     logger.With("component", "origin_client"),
		metrics:    m,
	}, nil
}

// URL returns the fully-qualified origin URL for key.
func (c *OriginClient) URL(key, rawQuery string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(key, "/")
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

// Fetch downloads the original for key into a scratch file. One attempt is
// made. Bodies larger than origin.max_bytes are rejected. On any failure the scratch file is removed and an
// *model.OriginFetchError is returned. The caller owns the result and must
// call Remove on it.
func (c *OriginClient) Fetch(ctx context.Context, key, rawQuery string) (*model.FetchResult, error) {
	target := c.URL(key, rawQuery)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, &model.OriginFetchError{URL: target, Err: fmt.Errorf("build origin request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("origin request", "url", target)

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.OriginDuration.Observe(time.Since(start).Seconds())
		}
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("error")
		return nil, &model.OriginFetchError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.observe(strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &model.OriginFetchError{URL: target, StatusCode: resp.StatusCode}
	}

	f, err := os.CreateTemp(c.scratchDir, "origin-*")
	if err != nil {
		return nil, &model.OriginFetchError{URL: target, Err: fmt.Errorf("create scratch file: %w", err)}
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, c.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > c.maxBytes {
		err = fmt.Errorf("body exceeds %d bytes", c.maxBytes)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, &model.OriginFetchError{URL: target, Err: fmt.Errorf("download body: %w", err)}
	}

	return &model.FetchResult{
		Path:     f.Name(),
		Header:   resp.Header.Clone(),
		MimeType: resp.Header.Get("Content-Type"),
		Size:     n,
	}, nil
}

func (c *OriginClient) observe(status string) {
	if c.metrics != nil {
		c.metrics.OriginResponses.WithLabelValues(status).Inc()
	}
}
