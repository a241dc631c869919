package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/semkit/semcache/pkg/embedding"
)

// Source identifies which tier produced a hit.
type Source string

const (
	// SourceExact means the hit came from an exact canonical-hash match.
	SourceExact Source = "exact"

	// SourceSemantic means the hit came from a similarity scan.
	SourceSemantic Source = "semantic"
)

// Hit is a successful cache lookup.
type Hit struct {
	// Payload is the cached pipeline result.
	Payload []byte

	// MatchedQuery is the original query text of the matched record.
	MatchedQuery string

	// Similarity is the cosine similarity of the match. Always 1.0 for
	// exact hits.
	Similarity float64

	// Source is the tier that produced the hit.
	Source Source
}

// ProviderGate gates calls to the embedding provider, typically a shared
// circuit breaker. When Allow returns false the orchestrator degrades to
// exact-only behavior without paying the embedding timeout.
type ProviderGate interface {
	Allow(ctx context.Context) bool
	RecordSuccess(ctx context.Context)
	RecordFailure(ctx context.Context)
}

// Options holds the orchestrator configuration.
type Options struct {
	// Threshold is the minimum cosine similarity for a semantic hit.
	Threshold float64

	// ScanLimit bounds the number of recent records compared per lookup.
	ScanLimit int

	// EmbedTimeout bounds each embedding request. A timeout degrades the
	// operation exactly like a provider failure.
	EmbedTimeout time.Duration

	// StoreTimeout bounds each backing-store call.
	StoreTimeout time.Duration

	// DefaultTTL is used when Set is called with a non-positive TTL.
	DefaultTTL time.Duration

	// PromoteToL1 copies L2 exact hits back into the exact tier.
	PromoteToL1 bool

	// SingleFlight deduplicates concurrent identical misses inside
	// WithCache so only one caller runs the expensive computation.
	SingleFlight bool

	// Gate optionally gates embedding calls (e.g. a shared circuit
	// breaker). Nil means always allow.
	Gate ProviderGate
}

// DefaultOptions returns a safe default configuration.
func DefaultOptions() Options {
	return Options{
		Threshold:    0.95,
		ScanLimit:    100,
		EmbedTimeout: 2 * time.Second,
		StoreTimeout: 2 * time.Second,
		DefaultTTL:   1 * time.Hour,
		PromoteToL1:  true,
	}
}

// Cache orchestrates the exact tier, the semantic tier and the embedding
// provider. Safe for concurrent use; records are immutable once written so
// reads require no locking beyond the backing stores' own guarantees.
type Cache struct {
	exact    ExactStore
	semantic SemanticStore
	provider embedding.Provider
	opts     Options
	logger   zerolog.Logger
	flight   singleflight.Group
}

// New creates a cache orchestrator. The semantic tier is required; the exact
// tier and the provider are optional, each absence simply narrows what the
// cache can serve (no provider means exact-only lookups).
func New(exact ExactStore, semantic SemanticStore, provider embedding.Provider, opts Options) (*Cache, error) {
	if semantic == nil {
		return nil, fmt.Errorf("semantic store is required")
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.95
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = 100
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 2 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 1 * time.Hour
	}

	return &Cache{
		exact:    exact,
		semantic: semantic,
		provider: provider,
		opts:     opts,
		logger:   log.With().Str("component", "semcache").Logger(),
	}, nil
}

// Get looks up a query in the cache.
//
// Lookup order: L1 exact, L2 exact (promoting hits into L1), then embedding
// plus bounded similarity scan. Every sub-dependency failure degrades the
// lookup to the next weaker guarantee; the only errors Get returns are
// ErrMiss and context cancellation.
func (c *Cache) Get(ctx context.Context, namespace, queryText string) (*Hit, error) {
	key := QueryKey{Namespace: namespace, QueryText: queryText}
	hash := key.Hash()

	// L1 exact check.
	if c.exact != nil {
		rec, err := c.l1Get(ctx, key.String())
		switch {
		case err == nil && !rec.IsExpired():
			c.logger.Debug().Str("namespace", namespace).Msg("Exact hit (L1)")
			Lookups.WithLabelValues(namespace, OutcomeExactHit).Inc()
			return exactHit(rec), nil
		case err != nil && !errors.Is(err, ErrMiss):
			StoreErrors.WithLabelValues(string(TierExact), "get").Inc()
			c.logger.Warn().Err(err).Str("namespace", namespace).
				Msg("Exact tier unavailable, falling through to semantic tier")
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// L2 exact check. This keeps embedding-less records reachable after
	// their L1 copy expires, and spares an embedding round-trip.
	rec, err := c.l2Get(ctx, namespace, hash)
	switch {
	case err == nil && !rec.IsExpired():
		c.logger.Debug().Str("namespace", namespace).Msg("Exact hit (L2)")
		c.promote(ctx, key.String(), rec)
		Lookups.WithLabelValues(namespace, OutcomeExactHit).Inc()
		return exactHit(rec), nil
	case err != nil && !errors.Is(err, ErrMiss):
		StoreErrors.WithLabelValues(string(TierSemantic), "get").Inc()
		c.logger.Warn().Err(err).Str("namespace", namespace).Msg("Semantic tier exact lookup failed")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Semantic path needs a provider.
	if c.provider == nil {
		Lookups.WithLabelValues(namespace, OutcomeMiss).Inc()
		return nil, ErrMiss
	}
	if c.opts.Gate != nil && !c.opts.Gate.Allow(ctx) {
		c.logger.Debug().Str("namespace", namespace).Msg("Embedding gate open, degrading to exact-only")
		Lookups.WithLabelValues(namespace, OutcomeDegraded).Inc()
		return nil, ErrMiss
	}

	queryEmbedding, err := c.embed(ctx, queryText)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		EmbeddingFailures.Inc()
		if c.opts.Gate != nil {
			c.opts.Gate.RecordFailure(ctx)
		}
		c.logger.Warn().Err(err).Str("namespace", namespace).
			Msg("Embedding unavailable, degrading lookup to miss")
		Lookups.WithLabelValues(namespace, OutcomeDegraded).Inc()
		return nil, ErrMiss
	}
	if c.opts.Gate != nil {
		c.opts.Gate.RecordSuccess(ctx)
	}

	candidates, err := c.l2Scan(ctx, namespace)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		StoreErrors.WithLabelValues(string(TierSemantic), "scan").Inc()
		c.logger.Warn().Err(err).Str("namespace", namespace).
			Msg("Semantic scan unavailable, degrading lookup to miss")
		Lookups.WithLabelValues(namespace, OutcomeDegraded).Inc()
		return nil, ErrMiss
	}

	match, bestScore, err := BestMatch(queryEmbedding, candidates, c.opts.Threshold, time.Now())
	if err != nil {
		// Dimension mismatch across every candidate is a configuration
		// error; it degrades the lookup but must be visible.
		c.logger.Error().Err(err).Str("namespace", namespace).
			Int("query_dim", len(queryEmbedding)).
			Msg("Similarity scan failed")
		Lookups.WithLabelValues(namespace, OutcomeDegraded).Inc()
		return nil, ErrMiss
	}
	if len(candidates) > 0 {
		SimilarityScore.WithLabelValues(namespace).Observe(bestScore)
	}

	if match == nil {
		c.logger.Debug().Str("namespace", namespace).Float64("best_score", bestScore).Msg("Cache miss")
		Lookups.WithLabelValues(namespace, OutcomeMiss).Inc()
		return nil, ErrMiss
	}

	c.logger.Debug().
		Str("namespace", namespace).
		Float64("similarity", match.Score).
		Msg("Semantic hit")
	Lookups.WithLabelValues(namespace, OutcomeSemanticHit).Inc()
	return &Hit{
		Payload:      match.Record.Payload,
		MatchedQuery: match.Record.QueryText,
		Similarity:   match.Score,
		Source:       SourceSemantic,
	}, nil
}

// Set writes a query result to both tiers. The embedding is best-effort: a
// failed or gated embedding still produces an exact-match-only record. Only
// a semantic-tier write failure is surfaced, because that result would
// otherwise be silently lost.
func (c *Cache) Set(ctx context.Context, namespace, queryText string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}
	rec := NewRecord(namespace, queryText, payload, ttl)

	if c.provider != nil && (c.opts.Gate == nil || c.opts.Gate.Allow(ctx)) {
		vec, err := c.embed(ctx, queryText)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			EmbeddingFailures.Inc()
			if c.opts.Gate != nil {
				c.opts.Gate.RecordFailure(ctx)
			}
			c.logger.Warn().Err(err).Str("namespace", namespace).
				Msg("Embedding unavailable, storing exact-match-only record")
		} else {
			if c.opts.Gate != nil {
				c.opts.Gate.RecordSuccess(ctx)
			}
			rec.Embedding = vec
		}
	}

	if err := c.l2Put(ctx, rec); err != nil {
		StoreErrors.WithLabelValues(string(TierSemantic), "put").Inc()
		return &TierError{Tier: TierSemantic, Op: "put", Err: err}
	}

	if c.exact != nil {
		if err := c.l1Put(ctx, QueryKey{Namespace: namespace, QueryText: queryText}.String(), rec, ttl); err != nil {
			StoreErrors.WithLabelValues(string(TierExact), "put").Inc()
			c.logger.Warn().Err(err).Str("namespace", namespace).Msg("Exact tier write failed")
		}
	}

	c.logger.Debug().
		Str("namespace", namespace).
		Dur("ttl", ttl).
		Bool("has_embedding", rec.HasEmbedding()).
		Msg("Cached query result")
	Writes.WithLabelValues(namespace, strconv.FormatBool(rec.HasEmbedding())).Inc()
	return nil
}

// Purge removes every record in the namespace from both tiers and returns
// the number of records removed from the semantic tier (the authoritative
// one). Exact-tier unavailability during a purge is non-fatal.
func (c *Cache) Purge(ctx context.Context, namespace string) (int, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	n, err := c.semantic.PurgeNamespace(tctx, namespace)
	cancel()
	if err != nil {
		StoreErrors.WithLabelValues(string(TierSemantic), "purge").Inc()
		return 0, &TierError{Tier: TierSemantic, Op: "purge", Err: err}
	}

	if c.exact != nil {
		tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
		if _, err := c.exact.PurgeNamespace(tctx, namespace); err != nil {
			StoreErrors.WithLabelValues(string(TierExact), "purge").Inc()
			c.logger.Warn().Err(err).Str("namespace", namespace).Msg("Exact tier purge failed")
		}
		cancel()
	}

	c.logger.Info().Str("namespace", namespace).Int("removed", n).Msg("Purged namespace")
	return n, nil
}

// promote copies an L2 exact hit back into the exact tier, best-effort.
func (c *Cache) promote(ctx context.Context, key string, rec *Record) {
	if !c.opts.PromoteToL1 || c.exact == nil {
		return
	}
	ttl := rec.TTL()
	if ttl <= 0 {
		return
	}
	if err := c.l1Put(ctx, key, rec, ttl); err != nil {
		c.logger.Debug().Err(err).Msg("Promotion to exact tier failed")
		return
	}
	Promotions.Inc()
}

func (c *Cache) embed(ctx context.Context, text string) ([]float32, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.EmbedTimeout)
	defer cancel()
	return c.provider.Embed(tctx, text)
}

func (c *Cache) l1Get(ctx context.Context, key string) (*Record, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	defer cancel()
	return c.exact.GetExact(tctx, key)
}

func (c *Cache) l1Put(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	defer cancel()
	return c.exact.PutExact(tctx, key, rec, ttl)
}

func (c *Cache) l2Get(ctx context.Context, namespace, hash string) (*Record, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	defer cancel()
	return c.semantic.GetRecord(tctx, namespace, hash)
}

func (c *Cache) l2Put(ctx context.Context, rec *Record) error {
	tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	defer cancel()
	return c.semantic.PutRecord(tctx, rec)
}

func (c *Cache) l2Scan(ctx context.Context, namespace string) ([]*Record, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	defer cancel()
	return c.semantic.ScanRecent(tctx, namespace, c.opts.ScanLimit)
}

func exactHit(rec *Record) *Hit {
	return &Hit{
		Payload:      rec.Payload,
		MatchedQuery: rec.QueryText,
		Similarity:   1.0,
		Source:       SourceExact,
	}
}
