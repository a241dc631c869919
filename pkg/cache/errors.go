package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMiss indicates the requested query was not found in any tier.
	// Degraded lookups (a tier or the embedding provider was unavailable)
	// also report ErrMiss; the cache is additive and never surfaces
	// lookup-path failures to the caller.
	ErrMiss = errors.New("cache miss")

	// ErrDimensionMismatch indicates the query embedding dimension
	// disagrees with every stored candidate's dimension. This is a
	// configuration error (e.g. the embedding model changed mid-life of
	// the cache), not a similarity failure.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidRecord indicates a stored record is corrupted or could not
	// be decoded.
	ErrInvalidRecord = errors.New("invalid cache record")
)

// Tier names the cache tier an error originated from.
type Tier string

const (
	// TierExact is the fast ephemeral exact-match tier (L1).
	TierExact Tier = "exact"

	// TierSemantic is the durable semantic tier (L2).
	TierSemantic Tier = "semantic"
)

// TierError wraps a backing-store failure with the tier and operation it
// occurred in.
type TierError struct {
	Tier Tier
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *TierError) Error() string {
	return fmt.Sprintf("%s tier %s: %v", e.Tier, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TierError) Unwrap() error {
	return e.Err
}
