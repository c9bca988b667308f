// Package metrics documents the Prometheus metrics exported by the petstore browser.
// Collectors are defined in their owning packages (catalog, cache, connectivity,
// fetch, pagination) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers its collectors with.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler that serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Catalog Metrics (pkg/catalog):
//   - petstore_requests_total{status} (Counter): catalog requests by HTTP status or "network_error"
//   - petstore_request_duration_seconds (Histogram): catalog request duration
//   - petstore_errors_total{kind} (Counter): failures by kind (timeout, http_status, unknown)
//   - petstore_records_dropped_total (Counter): records discarded by validation
//   - petstore_retries_total{kind} (Counter): retry attempts
//
// Cache Metrics (pkg/cache):
//   - petstore_cache_hits_total (Counter): stored entries found for revalidation
//   - petstore_cache_misses_total (Counter): no stored entry
//   - petstore_304_responses_total (Counter): responses served from a revalidated entry
//   - petstore_cache_errors_total{operation} (Counter): Redis errors by operation
//
// Connectivity Metrics (pkg/connectivity):
//   - petstore_connectivity_online (Gauge): 1 when online, 0 when offline
//   - petstore_connectivity_transitions_total{state} (Counter): published transitions
//   - petstore_connectivity_probes_total{result} (Counter): probe outcomes (ok, failed, skipped)
//
// Fetch Metrics (pkg/fetch):
//   - petstore_fetch_cycles_total{trigger} (Counter): cycles by trigger (initial, filter, retry)
//   - petstore_fetch_stale_discarded_total (Counter): results dropped because a newer cycle exists
//   - petstore_fetch_offline_shortcircuit_total (Counter): cycles answered offline without a request
//
// Pagination Metrics (pkg/pagination):
//   - petstore_page_changes_total{result} (Counter): page requests by result (accepted, rejected)
//
// Example Prometheus Queries:
//
//   # Stale result ratio
//   rate(petstore_fetch_stale_discarded_total[5m]) / rate(petstore_fetch_cycles_total[5m])
//
//   # Time spent offline
//   avg_over_time(petstore_connectivity_online[1h])
