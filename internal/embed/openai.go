package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Default models per provider.
const (
	// DefaultVoyageModel is the Voyage AI embedding model.
	DefaultVoyageModel = "voyage-3"

	// DefaultOpenAIModel is the OpenAI embedding model, requested at
	// OpenAIDimensions so it is index-compatible with Voyage output.
	DefaultOpenAIModel = "text-embedding-3-small"
)

// APIConfig configures a remote embedding provider. Voyage exposes an
// OpenAI-compatible embeddings endpoint, so one client type serves both.
type APIConfig struct {
	// Provider names the provider for snapshots and logs ("voyage", "openai").
	Provider string
	// APIKey authenticates requests. Empty means not configured.
	APIKey string
	// BaseURL overrides the endpoint. Empty uses the OpenAI default.
	BaseURL string
	// Model is the embedding model. Empty uses the provider default.
	Model string
	// Dimensions is the requested output dimension (0 = provider default).
	Dimensions int
	// Timeout bounds each request (0 = DefaultTimeout).
	Timeout time.Duration
	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int
}

// APIEmbedder generates embeddings through an OpenAI-compatible HTTP API.
type APIEmbedder struct {
	mu         sync.RWMutex
	client     *openai.Client
	provider   string
	model      string
	dimensions int
	timeout    time.Duration
	retry      RetryConfig
	closed     bool
}

// NewVoyageEmbedder creates an embedder for the Voyage AI API.
func NewVoyageEmbedder(cfg APIConfig) (*APIEmbedder, error) {
	cfg.Provider = "voyage"
	if cfg.Model == "" {
		cfg.Model = DefaultVoyageModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = VoyageDimensions
	}
	return newAPIEmbedder(cfg)
}

// NewOpenAIEmbedder creates an embedder for the OpenAI API.
func NewOpenAIEmbedder(cfg APIConfig) (*APIEmbedder, error) {
	cfg.Provider = "openai"
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = OpenAIDimensions
	}
	return newAPIEmbedder(cfg)
}

func newAPIEmbedder(cfg APIConfig) (*APIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s embedder: %w", cfg.Provider, ErrNotConfigured)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &APIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		provider:   cfg.Provider,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		retry:      retry,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
// The response is validated to hold exactly one vector per input, in order.
func (e *APIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum %d", len(texts), MaxBatchSize)
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var resp openai.EmbeddingResponse
	err := WithRetry(ctx, e.retry, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		var callErr error
		resp, callErr = e.client.CreateEmbeddings(reqCtx, req)
		return callErr
	})
	if err != nil {
		return nil, parseAPIError(e.provider, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d texts", e.provider, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%s returned out-of-range embedding index %d", e.provider, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%s returned empty embedding for text %d", e.provider, i)
		}
	}

	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *APIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier, prefixed with the provider so
// snapshots record which provider built them.
func (e *APIEmbedder) ModelName() string {
	return e.provider + "/" + e.model
}

// Provider returns the provider name.
func (e *APIEmbedder) Provider() string {
	return e.provider
}

// Available reports readiness. Configuration was checked at construction;
// network reachability is only discovered on use, so this stays cheap.
func (e *APIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *APIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// parseAPIError extracts a readable message from a go-openai error and logs
// the provider failure once at the adapter boundary.
func parseAPIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		slog.Warn("embedding_api_error",
			slog.String("provider", provider),
			slog.Int("status", apiErr.HTTPStatusCode),
			slog.String("message", apiErr.Message))
		return fmt.Errorf("%s embedding API error %d: %s", provider, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		slog.Warn("embedding_request_error",
			slog.String("provider", provider),
			slog.Int("status", reqErr.HTTPStatusCode))
		return fmt.Errorf("%s embedding request error %d: %w", provider, reqErr.HTTPStatusCode, err)
	}

	slog.Warn("embedding_request_failed",
		slog.String("provider", provider),
		slog.String("error", err.Error()))
	return fmt.Errorf("%s embedding request failed: %w", provider, err)
}

// Verify interface implementation
var _ Embedder = (*APIEmbedder)(nil)
