package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/account-batch-fetcher/pkg/metrics"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fanout_cache_hits_total",
			Help: "Total number of account cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fanout_cache_misses_total",
			Help: "Total number of account cache misses",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses served from cache
	NotModifiedResponses = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fanout_304_responses_total",
			Help: "Total number of upstream 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
