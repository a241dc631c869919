// Package redistier implements the exact-match tier (L1) on a Redis backend.
//
// Records are stored as JSON under their canonical store key with a native
// Redis TTL, so expired entries vanish without a sweep. Reads still apply
// lazy expiry as a guard against clock skew between writer and store.
package redistier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/semkit/semcache/pkg/cache"
)

// Store is the Redis-backed exact tier.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// New creates an exact tier on the given Redis client.
func New(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		logger: log.With().Str("component", "redistier").Logger(),
	}
}

// GetExact retrieves a record by its store key.
// Returns cache.ErrMiss if the key doesn't exist or the record is expired.
func (s *Store) GetExact(ctx context.Context, key string) (*cache.Record, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec cache.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidRecord, err)
	}

	if rec.IsExpired() {
		// Redis TTL should have removed this already; reclaim eagerly.
		_ = s.redis.Del(ctx, key).Err()
		return nil, cache.ErrMiss
	}

	return &rec, nil
}

// PutExact stores a record under the key with the given TTL. Already-expired
// records are not stored.
func (s *Store) PutExact(ctx context.Context, key string, rec *cache.Record, ttl time.Duration) error {
	if rec == nil {
		return fmt.Errorf("cache record cannot be nil")
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}

	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// PurgeNamespace removes every key in the namespace via an incremental SCAN
// and returns the number of keys removed.
func (s *Store) PurgeNamespace(ctx context.Context, namespace string) (int, error) {
	pattern := cache.NamespacePattern(namespace)

	removed := 0
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}

	s.logger.Debug().Str("namespace", namespace).Int("removed", removed).Msg("Purged exact tier namespace")
	return removed, nil
}
