// Package testutil provides testing doubles for the semantic cache.
package testutil

import (
	"context"
	"sync"
	"time"
)

// StubProvider is a configurable embedding provider for testing. Vectors are
// served from a fixed map; unknown queries fall back to Default.
type StubProvider struct {
	mu      sync.Mutex
	Vectors map[string][]float32

	// Default is returned for queries not in Vectors. Nil Default plus an
	// unknown query returns an empty vector.
	Default []float32

	// Err, when set, makes every Embed call fail.
	Err error

	// Delay simulates provider latency; Embed honors context cancellation
	// while waiting.
	Delay time.Duration

	// Calls counts Embed invocations.
	Calls int
}

// NewStubProvider creates a stub serving the given query-to-vector map.
func NewStubProvider(vectors map[string][]float32) *StubProvider {
	return &StubProvider{Vectors: vectors}
}

// Embed implements embedding.Provider.
func (p *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Calls++
	err := p.Err
	delay := p.Delay
	vec, ok := p.Vectors[text]
	if !ok {
		vec = p.Default
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	// Copy so callers cannot mutate the stub's map values.
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// Fail makes subsequent Embed calls return err.
func (p *StubProvider) Fail(err error) {
	p.mu.Lock()
	p.Err = err
	p.mu.Unlock()
}

// Recover clears a previously injected failure.
func (p *StubProvider) Recover() {
	p.mu.Lock()
	p.Err = nil
	p.mu.Unlock()
}

// CallCount returns the number of Embed invocations so far.
func (p *StubProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}
