// Package metrics provides the Prometheus registry shared by the batch fetcher.
// Metrics are defined in their respective packages (batch, upstream, cache, handler)
// and registered on Registry through promauto.With, so importing those packages
// is enough for them to appear on Gatherer.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registerer every package-level metric is created on.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served on /metrics.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Batch Metrics (pkg/batch):
//   - fanout_batch_waves_total (Counter): Waves dispatched
//   - fanout_batch_items_total{outcome} (Counter): Items fetched by outcome (success, failure)
//   - fanout_batch_duration_seconds (Histogram): Duration of a full FetchAll call
//
// Upstream Metrics (pkg/upstream):
//   - fanout_upstream_requests_total{status} (Counter): Upstream requests by HTTP status or "network_error"
//   - fanout_upstream_request_duration_seconds (Histogram): Upstream request duration
//   - fanout_upstream_errors_total{class} (Counter): Failures by class (client, server, network, decode)
//
// Cache Metrics (pkg/cache):
//   - fanout_cache_hits_total (Counter): Cache hits
//   - fanout_cache_misses_total (Counter): Cache misses
//   - fanout_cache_errors_total{operation} (Counter): Cache operation errors
//   - fanout_304_responses_total (Counter): 304 Not Modified responses served from cache
//
// Handler Metrics (pkg/handler):
//   - fanout_handler_responses_total{status} (Counter): Gateway responses by status code
//
// Example Prometheus Queries:
//
//   # Per-item failure ratio
//   sum(rate(fanout_batch_items_total{outcome="failure"}[5m])) /
//   sum(rate(fanout_batch_items_total[5m]))
//
//   # P95 batch latency
//   histogram_quantile(0.95, rate(fanout_batch_duration_seconds_bucket[5m]))
//
//   # Invalid input rate
//   rate(fanout_handler_responses_total{status="400"}[5m])
