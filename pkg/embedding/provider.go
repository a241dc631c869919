// Package embedding defines the embedding provider contract and an
// HTTP-backed implementation with retry and error classification.
//
// This is the only place the cache core talks to an external model. Every
// failure mode (transport, timeout, model error) is reported as
// ErrUnavailable so the orchestrator can degrade uniformly.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider failed or timed out.
// The cache treats both identically: the current operation degrades to
// exact-only behavior.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider turns text into a fixed-dimension embedding vector.
//
// Implementations must be safe for concurrent use and must honor context
// cancellation; the orchestrator bounds every call with a timeout.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Provider.
func (f ProviderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
