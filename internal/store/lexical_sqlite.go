package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteLexicalIndex implements LexicalIndex using SQLite FTS5.
// It provides concurrent multi-process access via WAL mode.
type SQLiteLexicalIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ LexicalIndex = (*SQLiteLexicalIndex)(nil)

// validateLexicalIntegrity checks if a SQLite FTS5 index is valid before
// opening. Returns nil if valid, error describing corruption if not.
func validateLexicalIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='people_fts'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'people_fts' missing")
	}

	return nil
}

// NewSQLiteLexicalIndex creates a new SQLite FTS5-based lexical index.
// If path is empty, creates an in-memory index for testing.
// A corrupted index is cleared automatically; a rebuild restores it.
func NewSQLiteLexicalIndex(path string) (*SQLiteLexicalIndex, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateLexicalIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reload the corpus"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteLexicalIndex{
		db:   db,
		path: path,
	}

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the FTS5 virtual table and supporting tables.
func (s *SQLiteLexicalIndex) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- FTS5 virtual table for prefix-matched text search
	-- person_id is UNINDEXED (stored but not searchable)
	CREATE VIRTUAL TABLE IF NOT EXISTS people_fts USING fts5(
		person_id UNINDEXED,
		text,
		tokenize='unicode61'
	);

	-- Auxiliary table for counting and enumerating entries
	CREATE TABLE IF NOT EXISTS entry_ids (
		person_id INTEGER PRIMARY KEY
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Upsert replaces the entry for an identifier in a single transaction, so
// the retract and re-index appear atomic to concurrent queries.
// NOTE: FTS5 virtual tables don't support REPLACE, so we delete first.
func (s *SQLiteLexicalIndex) Upsert(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertEntryInTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertEntryInTx(ctx context.Context, tx *sql.Tx, entry Entry) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM people_fts WHERE person_id = ?`, entry.ID); err != nil {
		return fmt.Errorf("failed to delete existing entry %d: %w", entry.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO people_fts (person_id, text) VALUES (?, ?)`,
		entry.ID, entry.Text); err != nil {
		return fmt.Errorf("failed to index entry %d: %w", entry.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO entry_ids (person_id) VALUES (?)`, entry.ID); err != nil {
		return fmt.Errorf("failed to track entry %d: %w", entry.ID, err)
	}
	return nil
}

// Remove retracts an entry. Removing an absent identifier is a no-op.
func (s *SQLiteLexicalIndex) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM people_fts WHERE person_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entry_ids WHERE person_id = ?`, id); err != nil {
		return fmt.Errorf("failed to untrack entry %d: %w", id, err)
	}

	return tx.Commit()
}

// Rebuild drops the index and re-derives it from entries in one transaction.
func (s *SQLiteLexicalIndex) Rebuild(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM people_fts`); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_ids`); err != nil {
		return fmt.Errorf("failed to clear entry tracking: %w", err)
	}

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO people_fts (person_id, text) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO entry_ids (person_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ID statement: %w", err)
	}
	defer idStmt.Close()

	for _, entry := range entries {
		if _, err := insertStmt.ExecContext(ctx, entry.ID, entry.Text); err != nil {
			return fmt.Errorf("failed to index entry %d: %w", entry.ID, err)
		}
		if _, err := idStmt.ExecContext(ctx, entry.ID); err != nil {
			return fmt.Errorf("failed to track entry %d: %w", entry.ID, err)
		}
	}

	return tx.Commit()
}

// Query returns identifiers whose text matches every token of term as a
// prefix. Matching is case-insensitive via the unicode61 tokenizer.
func (s *SQLiteLexicalIndex) Query(ctx context.Context, term string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	match := BuildPrefixMatch(term)
	if match == "" {
		return []int64{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id FROM people_fts
		WHERE text MATCH ?
		ORDER BY person_id`, match)
	if err != nil {
		// FTS5 returns an error for queries its parser rejects; treat as no matches
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, rows.Err()
}

// Count returns the number of indexed entries.
func (s *SQLiteLexicalIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("index is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entry_ids`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Close closes the index. Forces a WAL checkpoint for durability.
func (s *SQLiteLexicalIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Idempotent
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// BuildPrefixMatch sanitizes a search term into an FTS5 MATCH expression.
// Quote characters are stripped so no user syntax reaches the matcher; each
// remaining token becomes a quoted prefix term ("tok"*), joined with the
// implicit AND. Returns "" when nothing searchable remains.
func BuildPrefixMatch(term string) string {
	cleaned := strings.NewReplacer(`"`, "", `'`, "").Replace(term)

	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return ""
	}

	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, `"`+tok+`"*`)
	}
	return strings.Join(parts, " ")
}
