// Package metrics provides Prometheus metrics for the resizer.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Transcodes of large originals take longer than plain proxying.
var transformBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2, 4, 8, 16}

// Metrics holds all Prometheus metric collectors for the resizer.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	OriginDuration  prometheus.Histogram
	OriginResponses *prometheus.CounterVec

	TransformsTotal   *prometheus.CounterVec
	TransformDuration *prometheus.HistogramVec

	CacheWrites      *prometheus.CounterVec
	CacheWritesQueue prometheus.Gauge
	StoreLookups     *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_resizer_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edge_resizer_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edge_resizer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		OriginDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edge_resizer_origin_fetch_duration_seconds",
			Help:    "Origin fetch latency in seconds, including the body download.",
			Buckets: defaultBuckets,
		}),

		OriginResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_resizer_origin_responses_total",
			Help: "Total origin responses by status code; transport failures are labelled \"error\".",
		}, []string{"status_code"}),

		TransformsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_resizer_transforms_total",
			Help: "Total transforms by output format and result.",
		}, []string{"format", "result"}),

		TransformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edge_resizer_transform_duration_seconds",
			Help:    "Decode, resize and encode latency in seconds.",
			Buckets: transformBuckets,
		}, []string{"format"}),

		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_resizer_cache_writes_total",
			Help: "Total variant store writes by result.",
		}, []string{"result"}),

		CacheWritesQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edge_resizer_cache_writes_in_flight",
			Help: "Number of variant store writes not yet completed.",
		}),

		StoreLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_resizer_store_lookups_total",
			Help: "Total variant store lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.OriginDuration,
		m.OriginResponses,
		m.TransformsTotal,
		m.TransformDuration,
		m.CacheWrites,
		m.CacheWritesQueue,
		m.StoreLookups,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes lists the allowed path label values (bounded cardinality).
var knownPrefixes = []string{"/webp", "/original", "/edge", "/healthz", "/resizer/status", "/metrics"}

// NormalizePath returns a bounded path label for Prometheus metrics.
// Image paths are labelled by namespace only.
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "other"
}
