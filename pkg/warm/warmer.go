// Package warm provides parallel cache warming for known query workloads.
package warm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/semkit/semcache/pkg/cache"
)

// Config holds warmer configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel warm-ups
	MaxConcurrency int
	// Timeout per query warm-up (compute plus cache write)
	Timeout time.Duration
}

// DefaultConfig returns safe default warmer configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
	}
}

// Stats summarizes a warm-up run
type Stats struct {
	// Warmed is the number of queries computed and cached
	Warmed int
	// Skipped is the number of queries already present in the cache
	Skipped int
	// Failed is the number of queries whose compute or write failed
	Failed int
}

// queryResult represents the outcome of warming a single query
type queryResult struct {
	query  string
	warmed bool
	err    error
}

// Warmer pre-populates the cache for a known set of queries using a
// worker pool. Queries already cached are skipped, so repeated runs are
// cheap.
type Warmer struct {
	cache   *cache.Cache
	compute cache.ComputeFunc
	config  Config
}

// NewWarmer creates a warmer that fills misses via compute
func NewWarmer(c *cache.Cache, compute cache.ComputeFunc, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Warmer{
		cache:   c,
		compute: compute,
		config:  config,
	}
}

// Warm processes all queries in parallel using a worker pool and returns
// per-query outcome counts. Individual failures never abort the run;
// context cancellation stops the remaining work and returns the partial
// stats together with the context error.
func (w *Warmer) Warm(ctx context.Context, namespace string, queries []string, ttl time.Duration) (Stats, error) {
	start := time.Now()

	log.Info().
		Str("namespace", namespace).
		Int("queries", len(queries)).
		Msg("Starting cache warm-up")

	queue := make(chan string, len(queries))
	results := make(chan queryResult, len(queries))

	for _, q := range queries {
		queue <- q
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < w.config.MaxConcurrency; i++ {
		wg.Add(1)
		go w.worker(ctx, namespace, ttl, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	for result := range results {
		switch {
		case result.err != nil:
			stats.Failed++
			log.Warn().
				Err(result.err).
				Str("namespace", namespace).
				Msg("Query warm-up failed")
		case result.warmed:
			stats.Warmed++
		default:
			stats.Skipped++
		}
	}

	log.Info().
		Str("namespace", namespace).
		Int("warmed", stats.Warmed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(start)).
		Msg("Warm-up complete")

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// worker processes queries from the queue
func (w *Warmer) worker(ctx context.Context, namespace string, ttl time.Duration, queue <-chan string, results chan<- queryResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for query := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Warm worker stopping (context cancelled)")
			return
		default:
		}

		qctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		warmed, err := w.warmOne(qctx, namespace, query, ttl)
		cancel()

		select {
		case results <- queryResult{query: query, warmed: warmed, err: err}:
		case <-ctx.Done():
			return
		}

		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Warm worker completed")
	}
}

// warmOne reports whether the query was actually computed and cached.
func (w *Warmer) warmOne(ctx context.Context, namespace, query string, ttl time.Duration) (bool, error) {
	_, err := w.cache.Get(ctx, namespace, query)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return false, err
	}

	payload, err := w.compute(ctx, query)
	if err != nil {
		return false, err
	}
	if err := w.cache.Set(ctx, namespace, query, payload, ttl); err != nil {
		return false, err
	}
	return true, nil
}
