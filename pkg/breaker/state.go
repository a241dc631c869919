// Package breaker implements a Redis-shared circuit breaker for the
// embedding provider. State lives in Redis so every instance of the cache
// sees provider health the same way: one instance tripping the breaker
// stops all instances from hammering a failing provider.
package breaker

import (
	"time"
)

// Redis key suffixes for breaker state storage, prefixed with
// "semcache:breaker:<service>".
const (
	keyState     = "state"
	keyFailures  = "failures"
	keySuccesses = "successes"
	keyOpenedAt  = "opened_at"
)

// State represents the breaker state machine.
type State string

const (
	// StateClosed allows all calls; consecutive failures are counted.
	StateClosed State = "closed"

	// StateOpen rejects all calls until the cooldown elapses.
	StateOpen State = "open"

	// StateHalfOpen allows probe calls; enough successes close the
	// breaker, any failure reopens it.
	StateHalfOpen State = "half_open"
)

// gaugeValue maps states to the exported gauge metric
// (0=closed, 1=half_open, 2=open).
func (s State) gaugeValue() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// Config holds the breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration

	// SuccessThreshold is the number of half-open successes that closes
	// the breaker.
	SuccessThreshold int

	// StateTTL bounds how long breaker keys live in Redis, so abandoned
	// services clean up after themselves.
	StateTTL time.Duration
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 2,
		StateTTL:         1 * time.Hour,
	}
}
