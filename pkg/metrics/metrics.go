// Package metrics provides the centralized Prometheus metrics registry
// for the pagefetch client. The metrics themselves are defined next to
// the code they observe (pkg/fetch, pkg/submit) to keep packages
// self-contained; this package documents them in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request metrics (pkg/fetch):
//   - pagefetch_requests_total{status} (Counter): page requests by HTTP status,
//     or "transport_error" when the request never completed
//   - pagefetch_request_duration_seconds (Histogram): page request duration
//
// Retry metrics (pkg/fetch):
//   - pagefetch_retries_total (Counter): retry attempts
//   - pagefetch_retry_backoff_seconds (Histogram): backoff waited before each retry
//   - pagefetch_retry_exhausted_total (Counter): requests that spent every attempt
//
// Pagination metrics (pkg/fetch):
//   - pagefetch_pages_per_load (Histogram): pages fetched per load
//   - pagefetch_loads_total{outcome} (Counter): load operations by success/error
//
// Submission metrics (pkg/submit):
//   - pagefetch_submissions_total{outcome} (Counter): form submissions by outcome
//
// Example Prometheus queries:
//
//   # Request error rate
//   sum(rate(pagefetch_requests_total{status!~"2.."}[5m]))
//     / sum(rate(pagefetch_requests_total[5m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(pagefetch_request_duration_seconds_bucket[5m]))
//
//   # Loads that exhausted their retry budget
//   rate(pagefetch_retry_exhausted_total[5m])
