package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotConfigured indicates a provider has no credentials. Callers map it
// to an explicit "not available" status rather than a generic failure.
var ErrNotConfigured = errors.New("embedding provider not configured")

// Chain tries an ordered list of embedders and records which one served the
// last successful call. All embedders in a chain must share a dimension, so
// a fallback never changes the index shape mid-build.
type Chain struct {
	mu        sync.RWMutex
	embedders []Embedder
	active    int // index of the last embedder that served, -1 before first use
	closed    bool
}

// NewChain creates a fallback chain. At least one embedder is required, and
// all must agree on dimensions.
func NewChain(embedders ...Embedder) (*Chain, error) {
	if len(embedders) == 0 {
		return nil, fmt.Errorf("chain requires at least one embedder")
	}

	dims := embedders[0].Dimensions()
	for _, e := range embedders[1:] {
		if e.Dimensions() != dims {
			return nil, fmt.Errorf("chain embedders disagree on dimensions: %s has %d, %s has %d",
				embedders[0].ModelName(), dims, e.ModelName(), e.Dimensions())
		}
	}

	return &Chain{embedders: embedders, active: -1}, nil
}

// Embed tries each embedder in order until one succeeds.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.tryEach(ctx, func(e Embedder) error {
		var embedErr error
		vec, embedErr = e.Embed(ctx, text)
		return embedErr
	})
	return vec, err
}

// EmbedBatch tries each embedder in order until one succeeds.
func (c *Chain) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := c.tryEach(ctx, func(e Embedder) error {
		var embedErr error
		vecs, embedErr = e.EmbedBatch(ctx, texts)
		return embedErr
	})
	return vecs, err
}

// tryEach runs fn against each embedder in order, recording the first that
// succeeds. A context error stops the walk: the caller is gone, not the
// provider.
func (c *Chain) tryEach(ctx context.Context, fn func(Embedder) error) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("chain is closed")
	}
	embedders := c.embedders
	c.mu.RUnlock()

	var lastErr error
	for i, e := range embedders {
		if err := fn(e); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			slog.Warn("embedding_provider_failed",
				slog.String("provider", e.ModelName()),
				slog.Bool("has_fallback", i < len(embedders)-1),
				slog.String("error", err.Error()))
			continue
		}

		c.mu.Lock()
		c.active = i
		c.mu.Unlock()
		return nil
	}

	return fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// ActiveModelName returns the model that served the last successful call,
// falling back to the primary before any call has succeeded.
func (c *Chain) ActiveModelName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active >= 0 && c.active < len(c.embedders) {
		return c.embedders[c.active].ModelName()
	}
	return c.embedders[0].ModelName()
}

// Dimensions returns the shared embedding dimension.
func (c *Chain) Dimensions() int {
	return c.embedders[0].Dimensions()
}

// ModelName returns the active model identifier.
func (c *Chain) ModelName() string {
	return c.ActiveModelName()
}

// Available reports whether any embedder in the chain is ready.
func (c *Chain) Available(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	for _, e := range c.embedders {
		if e.Available(ctx) {
			return true
		}
	}
	return false
}

// Close closes every embedder in the chain, returning the first error.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for _, e := range c.embedders {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Verify interface implementation
var _ Embedder = (*Chain)(nil)
