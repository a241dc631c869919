package cache

import (
	"context"
	"time"
)

// ComputeFunc produces the payload for a query, typically by running the
// expensive upstream pipeline.
type ComputeFunc func(ctx context.Context, query string) ([]byte, error)

// WithCache wraps an expensive computation with cache lookups: a hit returns
// the cached payload without calling compute; a miss runs compute and writes
// the result back through Set. Compute errors are returned as-is and never
// cached.
//
// A failed write-back is logged and absorbed so the caller still receives
// the freshly computed payload; the cache is additive, never load-bearing.
//
// With Options.SingleFlight enabled, concurrent identical misses on the same
// canonical key share one compute call instead of stampeding the pipeline.
func WithCache(c *Cache, namespace string, ttl time.Duration, compute ComputeFunc) ComputeFunc {
	return func(ctx context.Context, query string) ([]byte, error) {
		if hit, err := c.Get(ctx, namespace, query); err == nil {
			return hit.Payload, nil
		} else if ctx.Err() != nil {
			return nil, err
		}

		run := func() ([]byte, error) {
			payload, err := compute(ctx, query)
			if err != nil {
				return nil, err
			}
			if err := c.Set(ctx, namespace, query, payload, ttl); err != nil {
				c.logger.Warn().Err(err).Str("namespace", namespace).
					Msg("Write-back failed, result will not be cached")
			}
			return payload, nil
		}

		if !c.opts.SingleFlight {
			return run()
		}

		key := QueryKey{Namespace: namespace, QueryText: query}.String()
		v, err, _ := c.flight.Do(key, func() (any, error) {
			return run()
		})
		if err != nil {
			return nil, err
		}
		return v.([]byte), nil
	}
}
