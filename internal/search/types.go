// Package search is the query entry point over the people directory. It
// exposes two deliberately separate paths: lexical search (FTS prefix match
// plus tag substring match, unscored, name-ordered) and semantic search
// (vector similarity with scores and an optional AI summary). The two are
// not fused into one ranked list.
package search

import (
	"time"

	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/internal/store"
)

// Reasons attached to an empty semantic result set. Callers surface these
// verbatim; the HTTP layer maps the availability reasons to 503.
const (
	// ReasonNoQuery means the query was empty or whitespace-only.
	ReasonNoQuery = "No query provided"

	// ReasonUnavailable means no semantic subsystem is wired at all.
	ReasonUnavailable = "Semantic search not available"

	// ReasonNotConfigured means the subsystem is wired but no embedding
	// provider credential is present.
	ReasonNotConfigured = "Embedding API not configured"
)

// ScoredPerson is a semantic search hit: a full person record with its
// similarity score rounded for presentation.
type ScoredPerson struct {
	people.Person
	Score float64 `json:"similarity_score"`
}

// SemanticResponse is the result of a semantic search. An availability
// problem yields empty Results with Reason set; it is never an error.
type SemanticResponse struct {
	Results []ScoredPerson `json:"results"`
	Summary string         `json:"ai_summary,omitempty"`
	Reason  string         `json:"error,omitempty"`
}

// Status reports which search features are currently usable.
type Status struct {
	LexicalCount      int    `json:"lexical_count"`
	SemanticAvailable bool   `json:"semantic_search_available"`
	EmbeddingsReady   bool   `json:"embeddings_configured"`
	SummaryReady      bool   `json:"llm_configured"`
	IndexLoaded       bool   `json:"index_loaded"`
	IndexCount        int    `json:"index_count"`
	IndexProvider     string `json:"index_provider,omitempty"`
}

// Config configures the engine.
type Config struct {
	// ResultCap bounds a lexical result set (default: 100).
	ResultCap int

	// DefaultK is the semantic result count when the caller passes k <= 0
	// (default: 10).
	DefaultK int

	// SummaryTopN bounds how many results feed the summarizer (default: 5).
	SummaryTopN int

	// MaxQueryChars truncates query text before embedding (default: the
	// embedding provider cap).
	MaxQueryChars int

	// QueryTimeout bounds one search call end to end (default: 30s).
	QueryTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ResultCap:     100,
		DefaultK:      10,
		SummaryTopN:   5,
		MaxQueryChars: 0,
		QueryTimeout:  30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ResultCap <= 0 {
		c.ResultCap = d.ResultCap
	}
	if c.DefaultK <= 0 {
		c.DefaultK = d.DefaultK
	}
	if c.SummaryTopN <= 0 {
		c.SummaryTopN = d.SummaryTopN
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
}

// Filters re-exports the store filter type so presentation layers need not
// import the store package directly.
type Filters = store.Filters
