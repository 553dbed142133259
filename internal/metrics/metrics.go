// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundcheck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundcheck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Caches, labeled by cache name ("result" or "catalog").
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundcheck_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundcheck_cache_misses_total",
			Help: "Total number of cache misses, including expired entries",
		},
		[]string{"cache"},
	)

	// Upstream providers
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundcheck_upstream_requests_total",
			Help: "Total number of requests sent to upstream providers",
		},
		[]string{"provider", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundcheck_upstream_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
		[]string{"provider"},
	)

	// Enrichment
	EnrichmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundcheck_enrichment_total",
			Help: "Per-candidate enrichment outcomes (catalog, cached, fallback)",
		},
		[]string{"outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundcheck_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Enrichment outcome labels.
const (
	OutcomeCatalog  = "catalog"
	OutcomeCached   = "cached"
	OutcomeFallback = "fallback"
)

// RecordCacheLookup increments the hit or miss counter for a cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}

// ObserveUpstream records one upstream call that started at start.
func ObserveUpstream(provider string, start time.Time, err error) {
	UpstreamDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	UpstreamRequests.WithLabelValues(provider, upstreamOutcome(err)).Inc()
}

func upstreamOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
