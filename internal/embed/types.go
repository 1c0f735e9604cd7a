// Package embed turns free text into fixed-length vectors through a
// pluggable provider chain: Voyage and OpenAI over the network, with a
// deterministic hash embedder for offline use. Providers return raw vectors;
// unit normalization is the vector store's job so inner product means cosine
// similarity regardless of which provider built the index.
package embed

import (
	"context"
	"strings"
	"time"
)

// Common embedding constants
const (
	// DefaultBatchSize is the default batch size for embedding requests
	DefaultBatchSize = 32

	// MaxBatchSize is the maximum allowed batch size (prevents memory exhaustion)
	MaxBatchSize = 256

	// DefaultTimeout is the default timeout for embedding requests
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultMaxChars is the provider-safe text cap; longer text is
	// truncated before submission
	DefaultMaxChars = 32000
)

// Provider default dimensions
const (
	// VoyageDimensions is the output dimension of voyage-3
	VoyageDimensions = 1024

	// OpenAIDimensions is the dimension requested from text-embedding-3-small,
	// matched to Voyage so either provider can serve the same index shape
	OpenAIDimensions = 1024

	// StaticDimensions is the embedding dimension for the static embedder
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// PrepareText applies the submission contract shared by every provider:
// trim, and truncate to maxChars (0 means DefaultMaxChars). Returns "" for
// whitespace-only input.
func PrepareText(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > maxChars {
		trimmed = trimmed[:maxChars]
	}
	return trimmed
}

// EmbedText embeds one prepared text. Empty or whitespace-only input yields
// the zero vector of the embedder's dimension - a "no signal" sentinel, never
// an error.
func EmbedText(ctx context.Context, e Embedder, text string, maxChars int) ([]float32, error) {
	prepared := PrepareText(text, maxChars)
	if prepared == "" {
		return make([]float32, e.Dimensions()), nil
	}
	return e.Embed(ctx, prepared)
}
