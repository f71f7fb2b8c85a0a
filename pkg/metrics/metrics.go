// Package metrics exposes the Prometheus registry shared by the batch fetcher.
// All metrics are defined in their respective packages (pipeline, gate, client,
// storage, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the batch fetcher.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Pipeline Metrics (pkg/pipeline):
//   - fetch_completions_total{status} (Counter): Completed tasks by status (ok, not_found, error)
//   - fetch_task_duration_seconds (Histogram): Task duration from admission to completion
//   - fetch_runs_total (Counter): Pipeline runs
//   - fetch_run_duration_seconds (Histogram): Run duration
//
// Admission Metrics (pkg/gate):
//   - fetch_gate_in_use (Gauge): Slots currently held
//   - fetch_gate_wait_seconds (Histogram): Time spent waiting for a slot
//   - fetch_gate_acquire_cancelled_total (Counter): Waits abandoned by cancellation
//
// Request Metrics (pkg/client):
//   - fetch_http_requests_total{status} (Counter): Requests by HTTP status
//   - fetch_http_request_duration_seconds (Histogram): Request duration, retries included
//   - fetch_http_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - fetch_http_retries_total{error_class} (Counter): Retry attempts by error class
//   - fetch_http_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - fetch_http_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Pacing Metrics (pkg/ratelimit):
//   - fetch_rate_limit_waits_total (Counter): Requests delayed by the pacer
//   - fetch_rate_limit_wait_seconds (Histogram): Pacing delay
//
// Storage Metrics (pkg/storage):
//   - fetch_store_saves_total{backend, result} (Counter): Saves by backend and result
//   - fetch_store_bytes_total{backend} (Counter): Persisted bytes
//   - fetch_store_errors_total{backend, operation} (Counter): Failed store operations
//
// Example Prometheus Queries:
//
//   # Not-found ratio
//   sum(rate(fetch_completions_total{status="not_found"}[5m])) /
//   sum(rate(fetch_completions_total[5m]))
//
//   # Saturated budget
//   fetch_gate_in_use
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fetch_http_request_duration_seconds_bucket[5m]))
