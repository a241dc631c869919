package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/semkit/semcache/internal/testutil"
	"github.com/semkit/semcache/pkg/cache"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	return redisClient, mr
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	handler := readyHandler(redisClient, db)

	t.Run("ready", func(t *testing.T) {
		mock.ExpectPing()

		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		if string(body) != "OK" {
			t.Errorf("Expected body 'OK', got %s", string(body))
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		// Close Redis to simulate failure
		redisClient.Close()

		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", resp.StatusCode)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	// Creating a cache registers all lookup metrics via promauto
	semCache, err := cache.New(testutil.NewMemExact(), testutil.NewMemSemantic(), nil, cache.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	if _, err := semCache.Get(context.Background(), "metrics-test", "warm the counters"); err != cache.ErrMiss {
		t.Fatalf("Expected ErrMiss, got %v", err)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler := promhttp.Handler()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)

	// Just verify we get prometheus output format
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}

	if !strings.Contains(bodyStr, "semcache_lookups_total") {
		t.Error("Expected metrics output to contain semcache_lookups_total")
	}
}

func TestPurgeHandler(t *testing.T) {
	semantic := testutil.NewMemSemantic()
	semCache, err := cache.New(testutil.NewMemExact(), semantic, nil, cache.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	ctx := context.Background()
	for _, q := range []string{"first query", "second query"} {
		if err := semCache.Set(ctx, "purge-ns", q, []byte("payload"), time.Hour); err != nil {
			t.Fatalf("Failed to seed cache: %v", err)
		}
	}

	handler := purgeHandler(semCache)

	t.Run("missing_namespace", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/purge", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
		}
	})

	t.Run("wrong_method", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/purge?namespace=purge-ns", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Result().StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", w.Result().StatusCode)
		}
	})

	t.Run("purge", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/purge?namespace=purge-ns", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}

		var result struct {
			Namespace string `json:"namespace"`
			Removed   int    `json:"removed"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result.Removed != 2 {
			t.Errorf("Expected 2 removed, got %d", result.Removed)
		}
		if semantic.Len("purge-ns") != 0 {
			t.Errorf("Expected empty namespace after purge, got %d records", semantic.Len("purge-ns"))
		}
	})
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SEMCACHE_TEST_VAR", "set")

	if got := getEnv("SEMCACHE_TEST_VAR", "default"); got != "set" {
		t.Errorf("Expected 'set', got %q", got)
	}
	if got := getEnv("SEMCACHE_TEST_VAR_UNSET", "default"); got != "default" {
		t.Errorf("Expected 'default', got %q", got)
	}
}
