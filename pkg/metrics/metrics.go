// Package metrics provides the centralized Prometheus metrics registry for
// the OFS client. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination, bridge) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the OFS client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ofs_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - ofs_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ofs_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - ofs_retries_total{error_class} (Counter): Retry attempts by error class
//   - ofs_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ofs_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - ofs_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - ofs_cache_misses_total (Counter): Cache misses
//   - ofs_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - ofs_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ofs_rate_limit_blocks_total (Counter): Requests blocked during an active cooldown
//   - ofs_rate_limit_trips_total (Counter): Cooldowns recorded from 429 responses
//   - ofs_rate_limit_cooldown_seconds (Gauge): Most recent cooldown duration
//
// Pagination Metrics (pkg/pagination):
//   - ofs_pagination_pages_fetched_total{strategy} (Counter): Pages fetched by strategy
//   - ofs_pagination_pages_skipped_total (Counter): Pages skipped under the tolerant policy
//   - ofs_pagination_fetch_duration_seconds (Histogram): Full collection fetch duration
//   - ofs_pagination_in_flight (Gauge): Page fetches currently holding a permit
//
// Bridge Metrics (pkg/bridge):
//   - ofs_bridge_escape_routed_total (Counter): Operations routed through the escape-hatch worker
//   - ofs_bridge_reinit_total (Counter): Lazy reinitializations of a closed bridge
//   - ofs_bridge_escape_timeouts_total (Counter): Escape-hatch waits that exceeded their ceiling
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ofs_cache_hits_total[5m])) /
//   (sum(rate(ofs_cache_hits_total[5m])) + sum(rate(ofs_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(ofs_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ofs_request_duration_seconds_bucket[5m]))
//
//   # Pages Skipped Ratio
//   rate(ofs_pagination_pages_skipped_total[5m]) /
//   sum(rate(ofs_pagination_pages_fetched_total[5m]))
