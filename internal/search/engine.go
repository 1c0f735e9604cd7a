package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/peopledex/peopledex/internal/embed"
	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/internal/store"
	"github.com/peopledex/peopledex/internal/summary"
	"github.com/peopledex/peopledex/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine answers lexical and semantic queries over the directory. The people
// store is the system of record; the lexical index and vector handle hold
// derived state the engine only reads.
type Engine struct {
	people     store.PeopleStore
	lexical    store.LexicalIndex
	vectors    *store.VectorHandle
	embedder   embed.Embedder
	embedErr   error // why no embedder could be built, when embedder is nil
	summarizer *summary.Summarizer
	metrics    *telemetry.QueryMetrics
	cfg        Config
}

// EngineOption configures optional engine dependencies.
type EngineOption func(*Engine)

// WithEmbedder wires the embedding provider for semantic search. Without it
// semantic search reports "not available".
func WithEmbedder(e embed.Embedder) EngineOption {
	return func(eng *Engine) {
		eng.embedder = e
	}
}

// WithEmbedderError records why no embedder could be built, so semantic
// search can report "not configured" instead of the generic "not available".
func WithEmbedderError(err error) EngineOption {
	return func(eng *Engine) {
		eng.embedErr = err
	}
}

// WithSummarizer wires the AI summarizer for semantic results.
func WithSummarizer(s *summary.Summarizer) EngineOption {
	return func(eng *Engine) {
		eng.summarizer = s
	}
}

// WithMetrics wires the local query telemetry collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(eng *Engine) {
		eng.metrics = m
	}
}

// NewEngine creates a search engine. The people store, lexical index, and
// vector handle are required; semantic features stay off until an embedder
// is wired through WithEmbedder.
func NewEngine(
	peopleStore store.PeopleStore,
	lexical store.LexicalIndex,
	vectors *store.VectorHandle,
	cfg Config,
	opts ...EngineOption,
) (*Engine, error) {
	if peopleStore == nil {
		return nil, fmt.Errorf("%w: people store is required", ErrNilDependency)
	}
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector handle is required", ErrNilDependency)
	}

	cfg.applyDefaults()

	e := &Engine{
		people:  peopleStore,
		lexical: lexical,
		vectors: vectors,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// LexicalSearch returns persons matching the query by free text (every token
// as a prefix) or by tag-name substring, narrowed by the filters and ordered
// by name. Results carry no score. An empty query browses the directory by
// filters alone.
func (e *Engine) LexicalSearch(ctx context.Context, query string, f Filters) ([]people.Person, error) {
	start := time.Now()
	query = strings.TrimSpace(query)

	var (
		results []people.Person
		err     error
	)
	qtype := telemetry.QueryTypeLexical
	if query == "" {
		qtype = telemetry.QueryTypeFiltered
		results, err = e.people.FindFiltered(ctx, nil, f, e.cfg.ResultCap)
	} else {
		results, err = e.lexicalCandidates(ctx, query, f)
	}
	if err != nil {
		return nil, err
	}

	e.record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   qtype,
		ResultCount: len(results),
		Latency:     time.Since(start),
		Timestamp:   start,
	})

	return results, nil
}

// lexicalCandidates computes the text-match ∪ tag-match identifier set, then
// hydrates it through the filtered store lookup.
func (e *Engine) lexicalCandidates(ctx context.Context, query string, f Filters) ([]people.Person, error) {
	textIDs, err := e.lexical.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}

	tagIDs, err := e.people.IDsByTagName(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("tag match: %w", err)
	}

	ids := unionIDs(textIDs, tagIDs)
	if len(ids) == 0 {
		return []people.Person{}, nil
	}

	return e.people.FindFiltered(ctx, ids, f, e.cfg.ResultCap)
}

// SemanticSearch returns the k nearest persons by embedding similarity, each
// with a presentation-rounded score, plus an optional AI summary. Every
// availability problem resolves to an empty, well-formed response with a
// Reason; transient provider failures are contained the same way. The error
// return carries only storage faults.
func (e *Engine) SemanticSearch(ctx context.Context, query string, k int, includeSummary bool) (*SemanticResponse, error) {
	start := time.Now()
	query = strings.TrimSpace(query)

	if query == "" {
		return &SemanticResponse{Results: []ScoredPerson{}, Reason: ReasonNoQuery}, nil
	}
	if e.embedder == nil {
		if errors.Is(e.embedErr, embed.ErrNotConfigured) {
			return &SemanticResponse{Results: []ScoredPerson{}, Reason: ReasonNotConfigured}, nil
		}
		return &SemanticResponse{Results: []ScoredPerson{}, Reason: ReasonUnavailable}, nil
	}
	if !e.embedder.Available(ctx) {
		return &SemanticResponse{Results: []ScoredPerson{}, Reason: ReasonNotConfigured}, nil
	}

	if k <= 0 {
		k = e.cfg.DefaultK
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	hits, failReason := e.vectorHits(ctx, query, k)
	if failReason != "" {
		return &SemanticResponse{Results: []ScoredPerson{}, Reason: failReason}, nil
	}

	results := make([]ScoredPerson, 0, len(hits))
	for _, hit := range hits {
		p, err := e.people.Get(ctx, hit.ID)
		if err != nil {
			return nil, fmt.Errorf("hydrate person %d: %w", hit.ID, err)
		}
		if p == nil {
			// Stale snapshot entry; the record was deleted since the build
			slog.Debug("semantic_hit_missing_record", slog.Int64("person_id", hit.ID))
			continue
		}
		results = append(results, ScoredPerson{
			Person: *p,
			Score:  roundScore(hit.Score),
		})
	}

	resp := &SemanticResponse{Results: results}
	if includeSummary {
		resp.Summary = e.summarize(ctx, query, results)
	}

	e.record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryTypeSemantic,
		ResultCount: len(results),
		Latency:     time.Since(start),
		Timestamp:   start,
	})

	return resp, nil
}

// vectorHits embeds the query and searches the current snapshot. A provider
// or index failure is contained to a reason string, never an error. No index
// lock is held while waiting on the provider; the handle read is atomic.
func (e *Engine) vectorHits(ctx context.Context, query string, k int) ([]store.VectorResult, string) {
	vec, err := e.embedder.Embed(ctx, embed.PrepareText(query, e.cfg.MaxQueryChars))
	if err != nil {
		slog.Warn("semantic_embed_failed",
			slog.String("model", e.embedder.ModelName()),
			slog.String("error", err.Error()))
		return nil, "Search failed: " + err.Error()
	}

	hits, err := e.vectors.Search(vec, k)
	if err != nil {
		slog.Warn("semantic_search_failed", slog.String("error", err.Error()))
		return nil, "Search failed: " + err.Error()
	}
	return hits, ""
}

// summarize produces the optional AI summary over the top results. Absent
// summarizer, unavailable provider, and generation failure all yield "".
func (e *Engine) summarize(ctx context.Context, query string, results []ScoredPerson) string {
	if e.summarizer == nil || !e.summarizer.Available() || len(results) == 0 {
		return ""
	}

	top := results
	if len(top) > e.cfg.SummaryTopN {
		top = top[:e.cfg.SummaryTopN]
	}
	persons := make([]people.Person, len(top))
	for i, r := range top {
		persons[i] = r.Person
	}

	return e.summarizer.Summarize(ctx, query, persons)
}

// Status reports feature availability and index state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	count, err := e.lexical.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("lexical count: %w", err)
	}

	s := &Status{
		LexicalCount:      count,
		SemanticAvailable: e.embedder != nil,
		SummaryReady:      e.summarizer != nil && e.summarizer.Available(),
	}
	if e.embedder != nil {
		s.EmbeddingsReady = e.embedder.Available(ctx)
	}
	if snapshot := e.vectors.Get(); snapshot != nil {
		s.IndexLoaded = true
		s.IndexCount = snapshot.Count()
		s.IndexProvider = snapshot.Provider()
	}
	return s, nil
}

func (e *Engine) record(event telemetry.QueryEvent) {
	if e.metrics != nil {
		e.metrics.Record(event)
	}
}

// roundScore rounds a similarity score to 4 decimal digits for presentation.
// Internal ordering in the vector store uses full precision.
func roundScore(s float32) float64 {
	return math.Round(float64(s)*10000) / 10000
}

// unionIDs merges two identifier sets, deduplicated, preserving first-seen
// order.
func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, ids := range [][]int64{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
