// Package cache implements a tiered semantic query-result cache.
//
// The cache avoids re-running an expensive query pipeline by recognizing when
// an incoming query is exactly or semantically equivalent to one answered
// before. It combines the following features:
//
// - Deterministic key canonicalization (trim + case-fold + SHA-256)
// - Exact-match L1 tier (ephemeral, native TTL, typically Redis)
// - Semantic L2 tier (durable, scanned for similarity, typically PostgreSQL)
// - Cosine similarity matching with a configurable threshold
// - TTL-based lazy expiry in both tiers
// - Degrade-on-failure: a broken tier or embedding provider lowers the hit
//   rate, it never fails the caller's lookup
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Wire the tiers and the embedding provider
//	l1 := redistier.New(redisClient)
//	l2 := pgtier.New(db)
//	provider, _ := embedding.NewHTTPProvider(embedding.DefaultConfig(embedURL))
//
//	c, err := cache.New(l1, l2, provider, cache.DefaultOptions())
//	if err != nil {
//		return err
//	}
//
//	// Lookup before doing expensive work
//	hit, err := c.Get(ctx, "adaptive", "What are insurance requirements in California?")
//	if err == cache.ErrMiss {
//		payload := runPipeline(query)
//		_ = c.Set(ctx, "adaptive", query, payload, time.Hour)
//	}
//
// # Middleware
//
//	answer := cache.WithCache(c, "adaptive", time.Hour, runPipeline)
//	payload, err := answer(ctx, "What's required for insurance in CA?")
//
// # Lookup Order
//
// Get checks the L1 exact tier first, then the L2 exact key (promoting hits
// back into L1), and only then pays for an embedding request and a bounded
// similarity scan over the namespace's most recent records. Records written
// without an embedding (provider was down at write time) stay reachable via
// the exact path.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - semcache_lookups_total{namespace, outcome} - Lookups by outcome
//     (exact_hit, semantic_hit, miss, degraded)
//   - semcache_writes_total{namespace, had_embedding} - Cache writes
//   - semcache_similarity_score{namespace} - Best candidate score histogram
//   - semcache_store_errors_total{tier, operation} - Tier operation errors
//   - semcache_embedding_failures_total - Failed or timed-out embeddings
//   - semcache_dimension_mismatches_total - Skipped mismatched candidates
//
// # Failure Semantics
//
// Every lookup-path failure (L1 down, L2 down, embedding down or timed out)
// degrades the current operation to the next weaker guarantee and is reported
// as a miss. The single surfaced failure is a Set whose L2 write fails,
// because that result would otherwise be silently lost.
package cache
