// Package metrics provides the Prometheus registry and /metrics handler for
// the proxy. All metrics are defined in their respective packages (auth,
// cache, client, server) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer the proxy's metrics are registered
// with, via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Auth Metrics (pkg/auth):
//   - yfi_auth_rejections_total (Counter): Requests rejected for an invalid API key
//
// Cache Metrics (pkg/cache):
//   - yfi_cache_hits_total{endpoint} (Counter): Cache hits by endpoint
//   - yfi_cache_misses_total{endpoint} (Counter): Cache misses by endpoint
//   - yfi_cache_entries (Gauge): Stored entries, expired ones included
//   - yfi_cache_shared_loads_total (Counter): Requests served by another request's load
//
// Upstream Metrics (pkg/client):
//   - yfi_upstream_requests_total{operation, status} (Counter): Yahoo requests by operation
//     (quote, options, cookie, crumb) and HTTP status
//   - yfi_upstream_request_duration_seconds{operation} (Histogram): Yahoo request duration by operation
//   - yfi_upstream_errors_total{class} (Counter): Errors by class
//     (client, auth, throttle, server, network, decode)
//
// HTTP Metrics (pkg/server):
//   - yfi_http_requests_total{route, status} (Counter): Served requests by route pattern and status
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(yfi_cache_hits_total[5m])) /
//   (sum(rate(yfi_cache_hits_total[5m])) + sum(rate(yfi_cache_misses_total[5m])))
//
//   # Upstream Error Rate
//   rate(yfi_upstream_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(yfi_upstream_request_duration_seconds_bucket[5m]))
//
//   # Rejected API keys
//   rate(yfi_auth_rejections_total[5m])
