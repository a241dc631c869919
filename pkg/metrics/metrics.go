// Package metrics provides the centralized Prometheus metrics registry for
// the semantic cache. All metrics are defined in their respective packages
// (cache, embedding, breaker) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Lookup Metrics (pkg/cache):
//   - semcache_lookups_total{namespace, outcome} (Counter): Lookups by outcome
//     (exact_hit, semantic_hit, miss, degraded)
//   - semcache_writes_total{namespace, had_embedding} (Counter): Records written
//   - semcache_similarity_score{namespace} (Histogram): Best cosine similarity per scan
//   - semcache_store_errors_total{tier, operation} (Counter): Backing store failures
//   - semcache_embedding_failures_total (Counter): Embedding calls that degraded an operation
//   - semcache_dimension_mismatches_total (Counter): Candidates skipped for wrong vector size
//   - semcache_promotions_total (Counter): Records copied from semantic tier into exact tier
//
// Provider Metrics (pkg/embedding):
//   - semcache_embedding_requests_total{status} (Counter): Provider requests by HTTP status
//   - semcache_embedding_request_duration_seconds (Histogram): Provider request duration
//   - semcache_embedding_retries_total{error_class} (Counter): Retry attempts by error class
//   - semcache_embedding_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Breaker Metrics (pkg/breaker):
//   - semcache_breaker_state{service} (Gauge): 0=closed, 1=half_open, 2=open
//   - semcache_breaker_transitions_total{service, to} (Counter): State transitions
//   - semcache_breaker_rejections_total{service} (Counter): Calls rejected while open
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(semcache_lookups_total{outcome=~"exact_hit|semantic_hit"}[5m])) /
//   sum(rate(semcache_lookups_total[5m]))
//
//   # Degraded Lookup Rate
//   rate(semcache_lookups_total{outcome="degraded"}[5m])
//
//   # P95 Similarity of Served Matches
//   histogram_quantile(0.95, rate(semcache_similarity_score_bucket[5m]))
//
//   # Provider Health
//   semcache_breaker_state > 0
