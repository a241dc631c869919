package breaker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for breaker state tracking.
var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "semcache_breaker_state",
		Help: "Current breaker state (0=closed, 1=half_open, 2=open)",
	}, []string{"service"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semcache_breaker_transitions_total",
		Help: "Total breaker state transitions by target state",
	}, []string{"service", "to"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semcache_breaker_rejections_total",
		Help: "Total calls rejected by an open breaker",
	}, []string{"service"})
)

// Breaker is a Redis-shared circuit breaker. It is advisory: any Redis
// failure makes the breaker fail open (allow the call) so a broken Redis
// never blocks the provider on its own.
//
// Breaker implements the orchestrator's ProviderGate interface.
type Breaker struct {
	redis   *redis.Client
	service string
	config  Config
	logger  zerolog.Logger
}

// New creates a breaker for the named service (e.g. "embedding").
func New(redisClient *redis.Client, service string, config Config) *Breaker {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if config.FailureThreshold <= 0 {
		config = DefaultConfig()
	}
	return &Breaker{
		redis:   redisClient,
		service: service,
		config:  config,
		logger:  log.With().Str("component", "breaker").Str("service", service).Logger(),
	}
}

// Allow reports whether a call to the guarded service may proceed.
func (b *Breaker) Allow(ctx context.Context) bool {
	state, openedAt, err := b.state(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Breaker state unavailable, failing open")
		return true
	}

	switch state {
	case StateOpen:
		if time.Now().After(openedAt.Add(b.config.Cooldown)) {
			b.transition(ctx, StateHalfOpen)
			return true
		}
		breakerRejections.WithLabelValues(b.service).Inc()
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call to the guarded service.
func (b *Breaker) RecordSuccess(ctx context.Context) {
	state, _, err := b.state(ctx)
	if err != nil {
		return
	}

	switch state {
	case StateHalfOpen:
		successes, err := b.redis.Incr(ctx, b.key(keySuccesses)).Result()
		if err != nil {
			b.logger.Warn().Err(err).Msg("Breaker success count update failed")
			return
		}
		b.redis.Expire(ctx, b.key(keySuccesses), b.config.StateTTL)
		if int(successes) >= b.config.SuccessThreshold {
			b.transition(ctx, StateClosed)
		}
	case StateClosed:
		// A success resets the consecutive-failure count.
		if err := b.redis.Del(ctx, b.key(keyFailures)).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("Breaker failure count reset failed")
		}
	}
}

// RecordFailure reports a failed call to the guarded service.
func (b *Breaker) RecordFailure(ctx context.Context) {
	state, _, err := b.state(ctx)
	if err != nil {
		return
	}

	switch state {
	case StateHalfOpen:
		// A probe failure reopens immediately.
		b.transition(ctx, StateOpen)
	case StateClosed:
		failures, err := b.redis.Incr(ctx, b.key(keyFailures)).Result()
		if err != nil {
			b.logger.Warn().Err(err).Msg("Breaker failure count update failed")
			return
		}
		b.redis.Expire(ctx, b.key(keyFailures), b.config.StateTTL)
		if int(failures) >= b.config.FailureThreshold {
			b.transition(ctx, StateOpen)
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State(ctx context.Context) (State, error) {
	state, _, err := b.state(ctx)
	return state, err
}

func (b *Breaker) key(suffix string) string {
	return "semcache:breaker:" + b.service + ":" + suffix
}

func (b *Breaker) state(ctx context.Context) (State, time.Time, error) {
	stateStr, err := b.redis.Get(ctx, b.key(keyState)).Result()
	if err == redis.Nil {
		return StateClosed, time.Time{}, nil
	}
	if err != nil {
		return StateClosed, time.Time{}, err
	}

	openedAtUnix, err := b.redis.Get(ctx, b.key(keyOpenedAt)).Int64()
	if err != nil && err != redis.Nil {
		return StateClosed, time.Time{}, err
	}

	return State(stateStr), time.Unix(openedAtUnix, 0), nil
}

func (b *Breaker) transition(ctx context.Context, to State) {
	pipe := b.redis.TxPipeline()
	pipe.Set(ctx, b.key(keyState), string(to), b.config.StateTTL)
	switch to {
	case StateOpen:
		pipe.Set(ctx, b.key(keyOpenedAt), time.Now().Unix(), b.config.StateTTL)
		pipe.Del(ctx, b.key(keySuccesses))
	case StateHalfOpen:
		pipe.Del(ctx, b.key(keySuccesses))
	case StateClosed:
		pipe.Del(ctx, b.key(keyFailures), b.key(keySuccesses), b.key(keyOpenedAt))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Warn().Err(err).Str("to", string(to)).Msg("Breaker transition failed")
		return
	}

	breakerState.WithLabelValues(b.service).Set(to.gaugeValue())
	breakerTransitions.WithLabelValues(b.service, string(to)).Inc()

	event := b.logger.Info()
	if to == StateOpen {
		event = b.logger.Warn()
	}
	event.Str("to", string(to)).Msg("Breaker state changed")
}
