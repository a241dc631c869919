package warm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/semkit/semcache/internal/testutil"
	"github.com/semkit/semcache/pkg/cache"
)

func newTestCache(t *testing.T) (*cache.Cache, *testutil.MemSemantic) {
	t.Helper()

	semantic := testutil.NewMemSemantic()
	c, err := cache.New(testutil.NewMemExact(), semantic, nil, cache.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return c, semantic
}

func TestWarmPopulatesCache(t *testing.T) {
	c, semantic := newTestCache(t)
	ctx := context.Background()

	var computes int32
	compute := func(ctx context.Context, query string) ([]byte, error) {
		atomic.AddInt32(&computes, 1)
		return []byte("answer: " + query), nil
	}

	queries := []string{"query one", "query two", "query three"}
	warmer := NewWarmer(c, compute, DefaultConfig())

	stats, err := warmer.Warm(ctx, "docs", queries, time.Hour)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	if stats.Warmed != 3 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Errorf("Expected 3 warmed, got %+v", stats)
	}
	if n := atomic.LoadInt32(&computes); n != 3 {
		t.Errorf("Expected 3 computes, got %d", n)
	}
	if semantic.Len("docs") != 3 {
		t.Errorf("Expected 3 cached records, got %d", semantic.Len("docs"))
	}

	// Every warmed query is now servable.
	for _, q := range queries {
		if _, err := c.Get(ctx, "docs", q); err != nil {
			t.Errorf("Get(%q) after warm failed: %v", q, err)
		}
	}
}

func TestWarmSkipsCachedQueries(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "docs", "already cached", []byte("answer"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var computes int32
	warmer := NewWarmer(c, func(ctx context.Context, query string) ([]byte, error) {
		atomic.AddInt32(&computes, 1)
		return []byte("fresh"), nil
	}, DefaultConfig())

	stats, err := warmer.Warm(ctx, "docs", []string{"already cached", "new query"}, time.Hour)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	if stats.Warmed != 1 || stats.Skipped != 1 {
		t.Errorf("Expected 1 warmed and 1 skipped, got %+v", stats)
	}
	if n := atomic.LoadInt32(&computes); n != 1 {
		t.Errorf("Expected compute only for the uncached query, got %d", n)
	}
}

func TestWarmCountsFailures(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	warmer := NewWarmer(c, func(ctx context.Context, query string) ([]byte, error) {
		if query == "broken" {
			return nil, errors.New("pipeline failed")
		}
		return []byte("ok"), nil
	}, DefaultConfig())

	stats, err := warmer.Warm(ctx, "docs", []string{"fine", "broken", "also fine"}, time.Hour)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	if stats.Warmed != 2 || stats.Failed != 1 {
		t.Errorf("Expected 2 warmed and 1 failed, got %+v", stats)
	}
}

func TestWarmRespectsContextCancellation(t *testing.T) {
	c, _ := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())

	var computes int32
	warmer := NewWarmer(c, func(ctx context.Context, query string) ([]byte, error) {
		if atomic.AddInt32(&computes, 1) == 1 {
			cancel()
		}
		return []byte("ok"), nil
	}, Config{MaxConcurrency: 1, Timeout: time.Second})

	queries := make([]string, 20)
	for i := range queries {
		queries[i] = "query " + string(rune('a'+i))
	}

	stats, err := warmer.Warm(ctx, "docs", queries, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if stats.Warmed+stats.Skipped+stats.Failed >= len(queries) {
		t.Errorf("Expected partial progress after cancellation, got %+v", stats)
	}
	if n := atomic.LoadInt32(&computes); int(n) >= len(queries) {
		t.Errorf("Expected workers to stop early, got %d computes", n)
	}
}

func TestNewWarmerDefaults(t *testing.T) {
	c, _ := newTestCache(t)

	warmer := NewWarmer(c, func(ctx context.Context, q string) ([]byte, error) { return nil, nil }, Config{})
	if warmer.config.MaxConcurrency != 4 {
		t.Errorf("Expected default concurrency 4, got %d", warmer.config.MaxConcurrency)
	}
	if warmer.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", warmer.config.Timeout)
	}
}
