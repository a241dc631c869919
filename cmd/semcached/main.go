package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/semkit/semcache/pkg/breaker"
	"github.com/semkit/semcache/pkg/cache"
	"github.com/semkit/semcache/pkg/embedding"
	"github.com/semkit/semcache/pkg/logging"
	"github.com/semkit/semcache/pkg/pgtier"
	"github.com/semkit/semcache/pkg/redistier"
)

func main() {
	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	databaseURL := getEnv("DATABASE_URL", "postgres://localhost:5432/semcache?sslmode=disable")
	embeddingsURL := getEnv("EMBEDDINGS_URL", "http://localhost:8100/v1/embeddings")
	embeddingsModel := getEnv("EMBEDDINGS_MODEL", "all-MiniLM-L6-v2")
	port := getEnv("PORT", "8080")
	sweepInterval := getDurationEnv("SWEEP_INTERVAL", 10*time.Minute)

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	ctx := context.Background()

	// Exact tier (Redis)
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	log.Info().Str("addr", redisURL).Msg("Connected to Redis")

	// Semantic tier (PostgreSQL)
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	semanticTier := pgtier.New(db)
	if err := semanticTier.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate semantic tier schema")
	}
	log.Info().Msg("Connected to PostgreSQL")

	// Embedding provider behind a Redis-shared breaker
	provider, err := embedding.NewHTTPProvider(embedding.Config{
		Endpoint: embeddingsURL,
		Model:    embeddingsModel,
		APIKey:   os.Getenv("EMBEDDINGS_API_KEY"),
		Retry:    embedding.DefaultRetryConfig(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedding provider")
	}
	gate := breaker.New(redisClient, "embedding", breaker.DefaultConfig())

	opts := cache.DefaultOptions()
	opts.Gate = gate
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatal().Err(err).Str("value", v).Msg("Invalid SIMILARITY_THRESHOLD")
		}
		opts.Threshold = threshold
	}

	semCache, err := cache.New(redistier.New(redisClient), semanticTier, provider, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache")
	}

	// Background reclamation of expired semantic tier rows
	sweeper := pgtier.NewSweeper(semanticTier, sweepInterval)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweeper.Start(sweepCtx)

	// HTTP Server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient, db))
	mux.HandleFunc("/purge", purgeHandler(semCache))
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting semcached")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	stopSweep()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Shutdown incomplete")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness only when both tiers answer.
func readyHandler(redisClient *redis.Client, db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, fmt.Sprintf("postgres unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// purgeHandler removes every cached record in a namespace.
// Usage: POST /purge?namespace=<name>
func purgeHandler(semCache *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		namespace := r.URL.Query().Get("namespace")
		if namespace == "" {
			http.Error(w, "namespace query parameter is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		removed, err := semCache.Purge(ctx, namespace)
		if err != nil {
			http.Error(w, fmt.Sprintf("purge failed: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"namespace":%q,"removed":%d}`, namespace, removed)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatal().Err(err).Str("key", key).Str("value", value).Msg("Invalid duration")
	}
	return d
}
