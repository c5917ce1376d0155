// Package metrics exposes the Prometheus registry used by the devlife client.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, navigation) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the HTTP handler and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - devlife_rate_limit_remaining (Gauge): Requests remaining in the server window
//   - devlife_rate_limit_blocks_total (Counter): Requests blocked while the quota is exhausted
//   - devlife_rate_limit_throttles_total (Counter): Requests delayed while the quota is low
//   - devlife_rate_limit_budget_waits_total (Counter): Waits for the local per-second budget
//
// Cache Metrics (pkg/cache):
//   - devlife_cache_hits_total{section} (Counter): Cache hits by section
//   - devlife_cache_misses_total{section,reason} (Counter): Cache misses by reason
//   - devlife_cache_size_bytes{section} (Gauge): Bytes written to the cache
//   - devlife_304_responses_total (Counter): 304 Not Modified responses
//   - devlife_conditional_requests_total (Counter): Conditional requests sent
//   - devlife_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - devlife_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - devlife_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - devlife_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - devlife_retries_total{error_class} (Counter): Retry attempts by error class
//   - devlife_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - devlife_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Navigation Metrics (pkg/navigation):
//   - devlife_navigation_transitions_total{state} (Counter): Published states by kind
//   - devlife_navigation_fetches_total{source, outcome} (Counter): Fetches by outcome
//     (success, empty, failure)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(devlife_cache_hits_total[5m])) /
//   (sum(rate(devlife_cache_hits_total[5m])) + sum(rate(devlife_cache_misses_total[5m])))
//
//   # Failed navigator fetches
//   rate(devlife_navigation_fetches_total{outcome="failure"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(devlife_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(devlife_304_responses_total[5m]) / rate(devlife_requests_total[5m])
