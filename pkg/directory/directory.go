package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peopledex/peopledex/internal/config"
	"github.com/peopledex/peopledex/internal/embed"
	derrors "github.com/peopledex/peopledex/internal/errors"
	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/internal/search"
	"github.com/peopledex/peopledex/internal/store"
	"github.com/peopledex/peopledex/internal/summary"
	"github.com/peopledex/peopledex/internal/telemetry"
)

// Data files under the directory's data dir.
const (
	peopleDBFile       = "people.db"
	lexicalBaseName    = "lexical"
	vectorSnapshotFile = "vectors.dat"
	metricsDBFile      = "metrics.db"
)

// Filters re-exports the search filter type for callers of the facade.
type Filters = search.Filters

// Directory is the assembled people directory.
type Directory struct {
	cfg     *config.Config
	root    string
	dataDir string

	people  store.PeopleStore
	lexical store.LexicalIndex
	vectors *store.VectorHandle
	engine  *search.Engine

	embedder   embed.Embedder
	embedErr   error
	summarizer *summary.Summarizer

	metrics   *telemetry.QueryMetrics
	metricsDB *sql.DB
}

// Open assembles a directory rooted at root. Storage problems fail the open;
// a missing embedding credential does not — semantic search degrades to an
// explicit unavailable status instead.
func Open(root string, cfg *config.Config) (*Directory, error) {
	dataDir := cfg.ResolveDataDir(root)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, derrors.IOError(fmt.Sprintf("cannot create data directory %s", dataDir), err)
	}

	ps, err := store.NewSQLitePeopleStore(filepath.Join(dataDir, peopleDBFile))
	if err != nil {
		return nil, derrors.IOError("cannot open people store", err)
	}

	lex, err := store.NewLexicalIndexWithBackend(filepath.Join(dataDir, lexicalBaseName), cfg.Search.LexicalBackend)
	if err != nil {
		_ = ps.Close()
		return nil, derrors.IOError("cannot open lexical index", err)
	}

	d := &Directory{
		cfg:     cfg,
		root:    root,
		dataDir: dataDir,
		people:  ps,
		lexical: lex,
		vectors: store.NewVectorHandle(),
	}

	d.embedder, d.embedErr = embed.NewEmbedder(embed.FactoryConfig{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimensions:    cfg.Embeddings.Dimensions,
		VoyageBaseURL: cfg.Embeddings.VoyageBaseURL,
		OpenAIBaseURL: cfg.Embeddings.OpenAIBaseURL,
		Timeout:       cfg.Embeddings.RequestTimeout,
		CacheSize:     cfg.Embeddings.CacheSize,
	})
	if d.embedErr != nil {
		if !errors.Is(d.embedErr, embed.ErrNotConfigured) {
			_ = d.closeStores()
			return nil, derrors.ConfigError("invalid embedding configuration", d.embedErr)
		}
		slog.Info("semantic_search_disabled", slog.String("reason", d.embedErr.Error()))
	}

	d.summarizer = summary.New(summary.Config{
		Enabled:     cfg.Summary.Enabled,
		Model:       cfg.Summary.Model,
		BaseURL:     cfg.Summary.BaseURL,
		MaxTokens:   cfg.Summary.MaxTokens,
		Temperature: cfg.Summary.Temperature,
		BioLimit:    cfg.Summary.BioLimit,
		MaxProfiles: cfg.Summary.MaxProfiles,
	})

	d.openMetrics()
	d.loadSnapshot()

	opts := []search.EngineOption{
		search.WithSummarizer(d.summarizer),
	}
	if d.embedder != nil {
		opts = append(opts, search.WithEmbedder(d.embedder))
	} else {
		opts = append(opts, search.WithEmbedderError(d.embedErr))
	}
	if d.metrics != nil {
		opts = append(opts, search.WithMetrics(d.metrics))
	}

	d.engine, err = search.NewEngine(ps, lex, d.vectors, search.Config{
		ResultCap:     cfg.Search.ResultCap,
		DefaultK:      cfg.Search.DefaultK,
		MaxQueryChars: cfg.Embeddings.MaxChars,
		QueryTimeout:  cfg.Embeddings.RequestTimeout,
	}, opts...)
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	return d, nil
}

// openMetrics opens the local query telemetry store. Telemetry is optional:
// a failure logs a warning and the directory runs without it.
func (d *Directory) openMetrics() {
	db, err := sql.Open("sqlite", filepath.Join(d.dataDir, metricsDBFile))
	if err != nil {
		slog.Warn("telemetry_disabled", slog.String("error", err.Error()))
		return
	}
	db.SetMaxOpenConns(1)

	if err := telemetry.InitTelemetrySchema(db); err != nil {
		slog.Warn("telemetry_disabled", slog.String("error", err.Error()))
		_ = db.Close()
		return
	}

	ms, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		slog.Warn("telemetry_disabled", slog.String("error", err.Error()))
		_ = db.Close()
		return
	}

	d.metricsDB = db
	d.metrics = telemetry.NewQueryMetrics(ms)
}

// loadSnapshot restores the vector snapshot from disk, best effort. A
// missing, corrupt, or provider-mismatched snapshot leaves the handle empty;
// semantic search then returns no results until the next build.
func (d *Directory) loadSnapshot() {
	path := d.SnapshotPath()

	dims, provider, err := store.ReadSnapshotInfo(path)
	if err != nil {
		slog.Warn("vector_snapshot_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if dims == 0 {
		return // no snapshot yet
	}

	if d.embedder != nil && provider != d.embedder.ModelName() {
		slog.Warn("vector_snapshot_provider_mismatch",
			slog.String("snapshot_provider", provider),
			slog.String("active_provider", d.embedder.ModelName()),
			slog.String("hint", "run 'peopledex index' to rebuild"))
		return
	}

	flat, err := store.NewFlatStore(store.FlatStoreConfig{Dimensions: dims, Provider: provider})
	if err != nil {
		slog.Warn("vector_snapshot_load_failed", slog.String("error", err.Error()))
		return
	}
	if err := flat.Load(path); err != nil {
		slog.Warn("vector_snapshot_load_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	d.vectors.Swap(flat)
	slog.Info("vector_snapshot_loaded",
		slog.Int("vectors", flat.Count()),
		slog.String("provider", provider))
}

// SnapshotPath returns the vector snapshot file path.
func (d *Directory) SnapshotPath() string {
	return filepath.Join(d.dataDir, vectorSnapshotFile)
}

// DataDir returns the resolved data directory.
func (d *Directory) DataDir() string {
	return d.dataDir
}

// LoadCorpus replaces the directory contents with the records in the corpus
// file and rebuilds the lexical index. The vector snapshot is left untouched;
// run BuildVectorIndex to refresh it.
func (d *Directory) LoadCorpus(ctx context.Context, path string) (int, error) {
	persons, err := people.LoadFile(path)
	if err != nil {
		return 0, derrors.New(derrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot load corpus from %s", path), err).
			WithSuggestion("check storage.corpus_path or pass the file explicitly")
	}

	stored, err := d.people.ReplaceAll(ctx, persons)
	if err != nil {
		return 0, fmt.Errorf("replace people: %w", err)
	}

	entries := make([]store.Entry, 0, len(stored))
	for _, p := range stored {
		entries = append(entries, store.Entry{ID: p.ID, Text: p.LexicalText()})
	}
	if err := d.lexical.Rebuild(ctx, entries); err != nil {
		return 0, fmt.Errorf("rebuild lexical index: %w", err)
	}

	slog.Info("corpus_loaded", slog.String("path", path), slog.Int("people", len(stored)))
	return len(stored), nil
}

// UpsertPerson inserts or updates one record, keeping the lexical index in
// sync. The vector snapshot goes stale until the next build.
func (d *Directory) UpsertPerson(ctx context.Context, p *people.Person) error {
	if err := d.people.Upsert(ctx, p); err != nil {
		return err
	}
	return d.lexical.Upsert(ctx, store.Entry{ID: p.ID, Text: p.LexicalText()})
}

// DeletePerson removes a record and its lexical entry.
func (d *Directory) DeletePerson(ctx context.Context, id int64) error {
	if err := d.people.Delete(ctx, id); err != nil {
		return err
	}
	return d.lexical.Remove(ctx, id)
}

// Person returns one record with tags, or nil when absent.
func (d *Directory) Person(ctx context.Context, id int64) (*people.Person, error) {
	return d.people.Get(ctx, id)
}

// People returns every record ordered by identifier.
func (d *Directory) People(ctx context.Context) ([]people.Person, error) {
	return d.people.All(ctx)
}

// Search runs a lexical search: prefix text match and tag substring match,
// narrowed by filters, ordered by name, unscored.
func (d *Directory) Search(ctx context.Context, query string, f Filters) ([]people.Person, error) {
	return d.engine.LexicalSearch(ctx, query, f)
}

// SemanticSearch runs a vector similarity search with an optional AI summary.
func (d *Directory) SemanticSearch(ctx context.Context, query string, k int, includeSummary bool) (*search.SemanticResponse, error) {
	return d.engine.SemanticSearch(ctx, query, k, includeSummary)
}

// Status reports feature availability and index state.
func (d *Directory) Status(ctx context.Context) (*search.Status, error) {
	return d.engine.Status(ctx)
}

// Stats summarizes the directory contents.
func (d *Directory) Stats(ctx context.Context) (*store.DirectoryStats, error) {
	return d.people.Stats(ctx)
}

// Units returns the distinct units with person counts.
func (d *Directory) Units(ctx context.Context) ([]store.UnitCount, error) {
	return d.people.Units(ctx)
}

// Tags returns all tags with usage counts.
func (d *Directory) Tags(ctx context.Context) ([]store.TagCount, error) {
	return d.people.AllTags(ctx)
}

// Metrics returns the query telemetry collector, or nil when telemetry
// could not be opened.
func (d *Directory) Metrics() *telemetry.QueryMetrics {
	return d.metrics
}

// Engine returns the underlying search engine for presentation layers that
// speak to it directly, such as the MCP server.
func (d *Directory) Engine() *search.Engine {
	return d.engine
}

// PeopleStore returns the underlying people store.
func (d *Directory) PeopleStore() store.PeopleStore {
	return d.people
}

// EmbedderInfo reports the active embedding model and dimensions.
// ok is false when no embedding provider is configured.
func (d *Directory) EmbedderInfo() (model string, dims int, ok bool) {
	if d.embedder == nil {
		return "", 0, false
	}
	return d.embedder.ModelName(), d.embedder.Dimensions(), true
}

// Reload re-ingests the configured corpus file and rebuilds the vector
// snapshot when an embedding provider is available. Used by the corpus
// watcher.
func (d *Directory) Reload(ctx context.Context) error {
	path := d.cfg.ResolveCorpusPath(d.root)
	if _, err := d.LoadCorpus(ctx, path); err != nil {
		return err
	}
	if _, err := d.BuildVectorIndex(ctx, nil); err != nil {
		// Lexical search still serves the fresh corpus
		slog.Warn("vector_rebuild_failed", slog.String("error", err.Error()))
	}
	return nil
}

// Watch starts a corpus file watcher that reloads on change. The caller owns
// the returned watcher and must Stop it.
func (d *Directory) Watch(ctx context.Context) (*people.Watcher, error) {
	w, err := people.NewWatcher(d.cfg.ResolveCorpusPath(d.root), d.cfg.DebounceDuration(), d.Reload)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Close releases every subsystem. Safe to call after a partial open.
func (d *Directory) Close() error {
	var firstErr error

	if d.metrics != nil {
		if err := d.metrics.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.metricsDB != nil {
		if err := d.metricsDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.summarizer != nil {
		_ = d.summarizer.Close()
	}
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
	if err := d.closeStores(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (d *Directory) closeStores() error {
	var firstErr error
	if d.lexical != nil {
		if err := d.lexical.Close(); err != nil {
			firstErr = err
		}
	}
	if d.people != nil {
		if err := d.people.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
