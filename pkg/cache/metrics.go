package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcome labels for the Lookups counter.
const (
	OutcomeExactHit    = "exact_hit"
	OutcomeSemanticHit = "semantic_hit"
	OutcomeMiss        = "miss"
	OutcomeDegraded    = "degraded"
)

var (
	// Lookups tracks cache lookups by namespace and outcome.
	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semcache_lookups_total",
			Help: "Total number of cache lookups by outcome",
		},
		[]string{"namespace", "outcome"},
	)

	// Writes tracks cache writes by namespace and whether the record
	// carries an embedding.
	Writes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semcache_writes_total",
			Help: "Total number of cache writes",
		},
		[]string{"namespace", "had_embedding"}, // "true" / "false"
	)

	// SimilarityScore observes the best candidate score of every
	// similarity scan, matched or not.
	SimilarityScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semcache_similarity_score",
			Help:    "Best candidate cosine similarity per semantic scan",
			Buckets: []float64{0.5, 0.7, 0.8, 0.85, 0.9, 0.93, 0.95, 0.97, 0.99, 1},
		},
		[]string{"namespace"},
	)

	// StoreErrors tracks backing-store operation errors by tier.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semcache_store_errors_total",
			Help: "Total number of tier operation errors",
		},
		[]string{"tier", "operation"}, // "exact"/"semantic", "get"/"put"/"scan"/"purge"
	)

	// EmbeddingFailures tracks failed or timed-out embedding requests made
	// by the orchestrator.
	EmbeddingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_embedding_failures_total",
			Help: "Total number of failed or timed-out embedding requests",
		},
	)

	// DimensionMismatches tracks candidates skipped because their stored
	// embedding dimension disagrees with the query embedding.
	DimensionMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_dimension_mismatches_total",
			Help: "Total number of candidates skipped due to embedding dimension mismatch",
		},
	)

	// Promotions tracks records copied from the semantic tier back into
	// the exact tier on an L2 exact hit.
	Promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_promotions_total",
			Help: "Total number of records promoted from the semantic tier to the exact tier",
		},
	)
)
