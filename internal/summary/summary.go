// Package summary generates short natural-language summaries of semantic
// search results through a chat completion API. Summaries are strictly
// best-effort: every failure mode collapses to "no summary" so the numeric
// results are never blocked by a slow or broken provider.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	derrors "github.com/peopledex/peopledex/internal/errors"
	"github.com/peopledex/peopledex/internal/people"
)

// Defaults mirror the configuration defaults so a zero-value Config works.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.7
	DefaultBioLimit    = 300
	DefaultMaxProfiles = 5
	DefaultMaxTags     = 5
	DefaultTimeout     = 30 * time.Second
)

// APIKeyEnv holds the chat completion credential. Presence of the key is
// the sole availability switch.
const APIKeyEnv = "OPENAI_API_KEY"

// Config configures the summarizer.
type Config struct {
	// Enabled toggles summaries entirely; a configured key is still required.
	Enabled bool
	// Model is the chat model (empty = DefaultModel).
	Model string
	// BaseURL overrides the endpoint (empty = api.openai.com).
	BaseURL string
	// MaxTokens caps the generated summary length.
	MaxTokens int
	// Temperature is the sampling temperature.
	Temperature float64
	// BioLimit truncates each bio in the prompt context.
	BioLimit int
	// MaxProfiles bounds how many results feed the prompt.
	MaxProfiles int
	// Timeout bounds each request.
	Timeout time.Duration
}

// Summarizer produces query-grounded summaries over a capped result slice.
// Safe for concurrent use.
type Summarizer struct {
	mu          sync.RWMutex
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	bioLimit    int
	maxProfiles int
	timeout     time.Duration
	enabled     bool
	closed      bool

	// breaker stops calls to a provider that keeps failing; summaries
	// silently resume once the reset window passes.
	breaker *derrors.CircuitBreaker
}

// New builds a Summarizer. The API key always comes from the environment;
// a missing key yields a working but unavailable summarizer rather than an
// error, since summaries are an optional feature.
func New(cfg Config) *Summarizer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.BioLimit <= 0 {
		cfg.BioLimit = DefaultBioLimit
	}
	if cfg.MaxProfiles <= 0 {
		cfg.MaxProfiles = DefaultMaxProfiles
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Summarizer{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		bioLimit:    cfg.BioLimit,
		maxProfiles: cfg.MaxProfiles,
		timeout:     cfg.Timeout,
		enabled:     cfg.Enabled,
		breaker:     derrors.NewCircuitBreaker("summary"),
	}

	apiKey := os.Getenv(APIKeyEnv)
	if apiKey != "" {
		clientCfg := openai.DefaultConfig(apiKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		s.client = openai.NewClientWithConfig(clientCfg)
	}

	return s
}

// Available reports whether summaries can be generated: the feature is
// enabled and a credential was present at construction.
func (s *Summarizer) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled && s.client != nil && !s.closed
}

// Summarize generates a short summary of the results for the query. An empty
// return value means no summary: provider failures, empty input, and a
// disabled or unconfigured summarizer all look the same to the caller.
func (s *Summarizer) Summarize(ctx context.Context, query string, results []people.Person) string {
	if !s.Available() {
		return ""
	}
	if strings.TrimSpace(query) == "" || len(results) == 0 {
		return ""
	}

	if len(results) > s.maxProfiles {
		results = results[:s.maxProfiles]
	}

	prompt := s.buildPrompt(query, results)

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp openai.ChatCompletionResponse
	err := s.breaker.Execute(func() error {
		var reqErr error
		resp, reqErr = s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
		})
		return reqErr
	})
	if err != nil {
		if err == derrors.ErrCircuitOpen {
			slog.Debug("summary_skipped", slog.String("reason", "provider circuit open"))
		} else {
			slog.Warn("summary_generation_failed",
				slog.String("model", s.model),
				slog.String("error", err.Error()))
		}
		return ""
	}

	if len(resp.Choices) == 0 {
		slog.Warn("summary_empty_response", slog.String("model", s.model))
		return ""
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// buildPrompt renders the query and a bounded context block per result.
func (s *Summarizer) buildPrompt(query string, results []people.Person) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant for a people directory. ")
	b.WriteString("Based on the search query and matching results, provide a brief ")
	b.WriteString("2-3 sentence summary that helps the user understand who the ")
	b.WriteString("relevant people are and their areas of expertise.\n\n")

	fmt.Fprintf(&b, "Query: %s\n", query)
	b.WriteString("Matching Results:\n")
	b.WriteString(s.formatResults(results))
	b.WriteString("\nSummary:")

	return b.String()
}

// formatResults renders each person as a compact indented block. Bios are
// truncated and tag lists capped so the prompt stays bounded regardless of
// record size.
func (s *Summarizer) formatResults(results []people.Person) string {
	blocks := make([]string, 0, len(results))

	for i, p := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. %s", i+1, p.Name)

		if p.Title != "" {
			fmt.Fprintf(&b, "\n   Title: %s", p.Title)
		}
		if p.Unit != "" {
			fmt.Fprintf(&b, "\n   Unit: %s", p.Unit)
		}
		if p.PersonType != "" {
			fmt.Fprintf(&b, "\n   Type: %s", p.PersonType)
		}
		if tags := formatTags(p.Tags, DefaultMaxTags); tags != "" {
			fmt.Fprintf(&b, "\n   Expertise: %s", tags)
		}
		if p.Bio != "" {
			fmt.Fprintf(&b, "\n   Bio: %s", truncate(p.Bio, s.bioLimit))
		}

		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n")
}

// formatTags joins up to max tag names, with a "+N more" suffix when capped.
func formatTags(tags []people.Tag, max int) string {
	if len(tags) == 0 {
		return ""
	}

	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}

	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(names[:max], ", "), len(names)-max)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

// Close releases resources.
func (s *Summarizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
