// Package metrics exposes the Prometheus metrics of the First Street API
// client. Metrics are defined in their packages (client, ratelimit) via
// promauto; this package serves them and documents them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every client metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves all registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric defined by the client packages.
var Names = []string{
	"fsf_requests_total",
	"fsf_request_duration_seconds",
	"fsf_retries_total",
	"fsf_retry_exhausted_total",
	"fsf_sentinels_total",
	"fsf_dispatch_total",
	"fsf_inflight_requests",
	"fsf_throttle_wait_seconds",
	"fsf_rate_limit_remaining",
	"fsf_rate_limit_limit",
	"fsf_rate_limit_low_total",
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - fsf_requests_total{product, status} (Counter): Requests by product and HTTP status ("network_error" without response)
//   - fsf_request_duration_seconds{product} (Histogram): Time to read a full response
//   - fsf_dispatch_total{outcome} (Counter): Batches by outcome (ok, invalid, aborted)
//   - fsf_inflight_requests (Gauge): Requests executing inside the concurrency gate
//
// Retry and Sentinel Metrics (pkg/client):
//   - fsf_retries_total{reason} (Counter): Retries by reason (timeout, decode)
//   - fsf_retry_exhausted_total{product} (Counter): Keys that used up every attempt
//   - fsf_sentinels_total{reason} (Counter): Error sentinels by reason
//     (error_body, invalid_body, outside_coverage, exhausted, connection)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - fsf_throttle_wait_seconds (Histogram): Time spent waiting for the request budget
//   - fsf_rate_limit_remaining (Gauge): Remaining requests reported by the API
//   - fsf_rate_limit_limit (Gauge): Request limit reported by the API
//   - fsf_rate_limit_low_total (Counter): Responses reporting less than 10% budget left
//
// Example Prometheus Queries:
//
//   # Sentinel Rate
//   sum(rate(fsf_sentinels_total[5m])) / sum(rate(fsf_requests_total[5m]))
//
//   # Budget Headroom
//   fsf_rate_limit_remaining / fsf_rate_limit_limit
//
//   # P95 Throttle Wait
//   histogram_quantile(0.95, rate(fsf_throttle_wait_seconds_bucket[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fsf_request_duration_seconds_bucket[5m]))
