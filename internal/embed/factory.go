package embed

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderVoyage uses the Voyage AI API (preferred when configured).
	ProviderVoyage ProviderType = "voyage"

	// ProviderOpenAI uses the OpenAI API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses hash-based embeddings (offline builds and tests).
	ProviderStatic ProviderType = "static"

	// ProviderAuto selects by credential presence: Voyage, then OpenAI.
	ProviderAuto ProviderType = ""
)

// Credential environment variables. Presence of a key is the sole switch
// for provider availability.
const (
	VoyageAPIKeyEnv = "VOYAGE_API_KEY"
	OpenAIAPIKeyEnv = "OPENAI_API_KEY"
)

// FactoryConfig carries the settings the factory needs. API keys always come
// from the environment, never from this struct.
type FactoryConfig struct {
	Provider      string // "voyage", "openai", "static", or "" for auto
	Model         string // override for the provider default model
	Dimensions    int    // override for the provider default dimension
	VoyageBaseURL string
	OpenAIBaseURL string
	Timeout       time.Duration
	MaxRetries    int
	CacheSize     int // LRU cache capacity; <=0 uses the default
}

// NewEmbedder builds the embedder the configuration selects.
//
// An explicit provider is honored without silent fallback: asking for
// "voyage" with no VOYAGE_API_KEY fails with ErrNotConfigured instead of
// quietly serving lower-quality vectors. Auto-detection builds a fallback
// chain from whichever API providers have credentials and fails with
// ErrNotConfigured when none do - the caller surfaces that as "semantic
// search not configured" rather than guessing.
//
// API providers are wrapped in an LRU cache; the static embedder is cheap
// enough to skip caching.
func NewEmbedder(cfg FactoryConfig) (Embedder, error) {
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderStatic:
		return NewStaticEmbedder(), nil

	case ProviderVoyage:
		e, err := newVoyageFromEnv(cfg)
		if err != nil {
			return nil, err
		}
		return NewCachedEmbedder(e, cfg.CacheSize), nil

	case ProviderOpenAI:
		e, err := newOpenAIFromEnv(cfg)
		if err != nil {
			return nil, err
		}
		return NewCachedEmbedder(e, cfg.CacheSize), nil

	case ProviderAuto:
		return newAutoChain(cfg)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: voyage, openai, static)", cfg.Provider)
	}
}

// newAutoChain builds a fallback chain from the providers with credentials.
func newAutoChain(cfg FactoryConfig) (Embedder, error) {
	var embedders []Embedder

	if os.Getenv(VoyageAPIKeyEnv) != "" {
		e, err := newVoyageFromEnv(cfg)
		if err != nil {
			return nil, err
		}
		embedders = append(embedders, e)
	}

	if os.Getenv(OpenAIAPIKeyEnv) != "" {
		e, err := newOpenAIFromEnv(cfg)
		if err != nil {
			closeAll(embedders)
			return nil, err
		}
		embedders = append(embedders, e)
	}

	if len(embedders) == 0 {
		return nil, ErrNotConfigured
	}

	chain, err := NewChain(embedders...)
	if err != nil {
		closeAll(embedders)
		return nil, err
	}
	return NewCachedEmbedder(chain, cfg.CacheSize), nil
}

func newVoyageFromEnv(cfg FactoryConfig) (*APIEmbedder, error) {
	model := cfg.Model
	// A model override only applies to an explicitly selected provider;
	// inside the auto chain each provider keeps its own default.
	if ProviderType(strings.ToLower(cfg.Provider)) != ProviderVoyage {
		model = ""
	}
	return NewVoyageEmbedder(APIConfig{
		APIKey:     os.Getenv(VoyageAPIKeyEnv),
		BaseURL:    cfg.VoyageBaseURL,
		Model:      model,
		Dimensions: cfg.Dimensions,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
}

func newOpenAIFromEnv(cfg FactoryConfig) (*APIEmbedder, error) {
	model := cfg.Model
	if ProviderType(strings.ToLower(cfg.Provider)) != ProviderOpenAI {
		model = ""
	}
	dims := cfg.Dimensions
	if dims == 0 {
		// Match Voyage so either chain member can serve the same index
		dims = OpenAIDimensions
	}
	return NewOpenAIEmbedder(APIConfig{
		APIKey:     os.Getenv(OpenAIAPIKeyEnv),
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      model,
		Dimensions: dims,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
}

func closeAll(embedders []Embedder) {
	for _, e := range embedders {
		_ = e.Close()
	}
}
