package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// lexicalAnalyzerName is the per-mapping analyzer: unicode tokenizer plus
// lowercasing, nothing else. Person names must not be stop-filtered.
const lexicalAnalyzerName = "people_lowercase"

// BleveLexicalIndex implements LexicalIndex using Bleve v2.
// BoltDB's exclusive file lock makes it single-process.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// bleveEntry is the document structure for Bleve indexing.
type bleveEntry struct {
	Text string `json:"text"`
}

// validateBleveIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveLexicalIndex creates a new Bleve-backed lexical index.
// If path is empty, creates an in-memory index.
// Validates index integrity before opening and auto-recovers from corruption.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	indexMapping, err := createLexicalMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reload the corpus"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("lexical_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, please reload the corpus"))

			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveLexicalIndex{
		index: idx,
		path:  path,
	}, nil
}

// createLexicalMapping creates the Bleve index mapping with the lowercase
// analyzer as the default.
func createLexicalMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(lexicalAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = lexicalAnalyzerName

	return indexMapping, nil
}

// Upsert replaces the entry for an identifier. A batch makes the replace
// atomic with respect to concurrent queries.
func (b *BleveLexicalIndex) Upsert(ctx context.Context, entry Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	if err := batch.Index(formatEntryID(entry.ID), bleveEntry{Text: entry.Text}); err != nil {
		return fmt.Errorf("failed to index entry %d: %w", entry.ID, err)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Remove retracts an entry. Removing an absent identifier is a no-op.
func (b *BleveLexicalIndex) Remove(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	batch.Delete(formatEntryID(id))
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", id, err)
	}

	return nil
}

// Rebuild drops the index and re-derives it from entries in one batch, so
// concurrent queries see either the old or the new index.
func (b *BleveLexicalIndex) Rebuild(ctx context.Context, entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	existing, err := b.allDocIDs()
	if err != nil {
		return fmt.Errorf("failed to enumerate existing entries: %w", err)
	}

	batch := b.index.NewBatch()
	for _, id := range existing {
		batch.Delete(id)
	}
	for _, entry := range entries {
		if err := batch.Index(formatEntryID(entry.ID), bleveEntry{Text: entry.Text}); err != nil {
			return fmt.Errorf("failed to index entry %d: %w", entry.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute rebuild batch: %w", err)
	}

	return nil
}

// Query returns identifiers whose text matches every token of term as a
// prefix. Prefix queries bypass analysis, so tokens are lowercased here to
// match the indexed terms.
func (b *BleveLexicalIndex) Query(ctx context.Context, term string) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	cleaned := strings.NewReplacer(`"`, "", `'`, "").Replace(term)
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return []int64{}, nil
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if docCount == 0 {
		return []int64{}, nil
	}

	prefixes := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		pq := bleve.NewPrefixQuery(strings.ToLower(tok))
		pq.SetField("text")
		prefixes = append(prefixes, pq)
	}

	searchRequest := bleve.NewSearchRequest(bleve.NewConjunctionQuery(prefixes...))
	searchRequest.Size = int(docCount)
	searchRequest.Fields = []string{} // Only IDs are needed

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue // Skip entries with malformed IDs
		}
		ids = append(ids, id)
	}

	// Matches are binary; order by identifier to match the FTS5 backend
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// Count returns the number of indexed entries.
func (b *BleveLexicalIndex) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(docCount), nil
}

// Close closes the index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// allDocIDs returns every document ID in the index.
func (b *BleveLexicalIndex) allDocIDs() ([]string, error) {
	docCount, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	if docCount == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// formatEntryID converts a person identifier to a Bleve document ID.
func formatEntryID(id int64) string {
	return strconv.FormatInt(id, 10)
}
