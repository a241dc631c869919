package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for embedding requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semcache_embedding_requests_total",
		Help: "Total embedding requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semcache_embedding_request_duration_seconds",
		Help:    "Embedding request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Config holds the HTTP provider configuration.
type Config struct {
	// Endpoint is the embeddings endpoint URL (REQUIRED).
	Endpoint string

	// Model is the model identifier sent with each request.
	Model string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// HTTPClient performs the requests. Defaults to a client with a 10s
	// timeout; per-call deadlines come from the caller's context.
	HTTPClient *http.Client

	// Retry controls the backoff behavior for retriable failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration for the endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint: endpoint,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Retry: DefaultRetryConfig(),
	}
}

// HTTPProvider requests embeddings from a JSON-over-HTTP endpoint.
//
// Request body: {"model": "...", "input": "..."}
// Response body: {"embedding": [0.1, 0.2, ...]}
//
// Server and network failures are retried with exponential backoff; client
// errors are not. Every failure is ultimately wrapped in ErrUnavailable.
type HTTPProvider struct {
	config Config
	logger zerolog.Logger
}

// NewHTTPProvider creates a new HTTP-backed embedding provider.
func NewHTTPProvider(cfg Config) (*HTTPProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &HTTPProvider{
		config: cfg,
		logger: log.With().Str("component", "embedding-provider").Logger(),
	}, nil
}

type embedRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Provider.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.config.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	var vec []float32
	var lastClass ErrorClass

	retryErr := retryWithBackoff(ctx, p.config.Retry, func() error {
		vec = nil
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
		if err != nil {
			lastClass = ErrorClassClient
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		}

		resp, err := p.config.HTTPClient.Do(req)
		if err != nil {
			lastClass = ErrorClassNetwork
			requestsTotal.WithLabelValues("network_error").Inc()
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastClass = classifyStatus(resp.StatusCode)
			requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
			p.logger.Warn().
				Int("status", resp.StatusCode).
				Str("error_class", string(lastClass)).
				Msg("Embedding request error")
			// Drain so the connection can be reused across retries.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
		}

		var decoded embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			lastClass = ErrorClassServer
			requestsTotal.WithLabelValues("decode_error").Inc()
			return fmt.Errorf("decode response: %w", err)
		}
		if len(decoded.Embedding) == 0 {
			lastClass = ErrorClassServer
			requestsTotal.WithLabelValues("empty_embedding").Inc()
			return fmt.Errorf("embedding endpoint returned empty vector")
		}

		requestsTotal.WithLabelValues("200").Inc()
		vec = decoded.Embedding
		return nil
	}, func(error) ErrorClass {
		return lastClass
	})

	if retryErr != nil {
		if errors.Is(retryErr, ErrUnavailable) {
			return nil, retryErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, retryErr)
	}
	return vec, nil
}

// classifyStatus categorizes an HTTP status for retry handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}
