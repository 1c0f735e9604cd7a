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

	"github.com/peopledex/peopledex/internal/people"
)

// SQLitePeopleStore implements PeopleStore on SQLite with WAL mode for
// concurrent multi-process access.
type SQLitePeopleStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ PeopleStore = (*SQLitePeopleStore)(nil)

// validatePeopleDBIntegrity checks if a people database is valid before
// opening. Returns nil if valid, error describing corruption if not.
func validatePeopleDBIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
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
                       WHERE type='table' AND name='people'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("table 'people' missing")
	}

	return nil
}

// NewSQLitePeopleStore opens or creates the people database.
// If path is empty, creates an in-memory store for testing.
// A corrupted database is cleared and recreated; the corpus loader restores
// its contents on the next load.
func NewSQLitePeopleStore(path string) (*SQLitePeopleStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validatePeopleDBIntegrity(path); validErr != nil {
			slog.Warn("people_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("people database corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("people_db_cleared",
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
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLitePeopleStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the people, tags, and person_tags tables.
func (s *SQLitePeopleStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS people (
		id           INTEGER PRIMARY KEY,
		name         TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		bio          TEXT NOT NULL DEFAULT '',
		unit         TEXT NOT NULL DEFAULT '',
		organization TEXT NOT NULL DEFAULT '',
		person_type  TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		profile_url  TEXT NOT NULL DEFAULT '',
		photo_url    TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tags (
		id       INTEGER PRIMARY KEY,
		name     TEXT UNIQUE NOT NULL,
		category TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS person_tags (
		person_id INTEGER NOT NULL,
		tag_id    INTEGER NOT NULL,
		PRIMARY KEY (person_id, tag_id),
		FOREIGN KEY (person_id) REFERENCES people(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_people_name ON people(name);
	CREATE INDEX IF NOT EXISTS idx_people_type ON people(person_type);
	CREATE INDEX IF NOT EXISTS idx_people_unit ON people(unit);
	CREATE INDEX IF NOT EXISTS idx_person_tags_tag ON person_tags(tag_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Upsert inserts or replaces a person and re-derives their tag links.
// A zero ID is assigned by the database and written back to the record.
func (s *SQLitePeopleStore) Upsert(ctx context.Context, p *people.Person) error {
	if p == nil {
		return fmt.Errorf("nil person")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsertInTx(ctx, tx, p); err != nil {
		return err
	}

	return tx.Commit()
}

// upsertInTx writes one person inside an open transaction.
func (s *SQLitePeopleStore) upsertInTx(ctx context.Context, tx *sql.Tx, p *people.Person) error {
	if p.ID == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO people (name, title, bio, unit, organization, person_type, email, profile_url, photo_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, p.Title, p.Bio, p.Unit, p.Organization, p.PersonType, p.Email, p.ProfileURL, p.PhotoURL)
		if err != nil {
			return fmt.Errorf("failed to insert person %q: %w", p.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read assigned id for %q: %w", p.Name, err)
		}
		p.ID = id
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO people (id, name, title, bio, unit, organization, person_type, email, profile_url, photo_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				title = excluded.title,
				bio = excluded.bio,
				unit = excluded.unit,
				organization = excluded.organization,
				person_type = excluded.person_type,
				email = excluded.email,
				profile_url = excluded.profile_url,
				photo_url = excluded.photo_url`,
			p.ID, p.Name, p.Title, p.Bio, p.Unit, p.Organization, p.PersonType, p.Email, p.ProfileURL, p.PhotoURL)
		if err != nil {
			return fmt.Errorf("failed to upsert person %d: %w", p.ID, err)
		}
	}

	// Re-derive tag links: drop and re-insert
	if _, err := tx.ExecContext(ctx, `DELETE FROM person_tags WHERE person_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear tags for person %d: %w", p.ID, err)
	}

	for _, tag := range p.Tags {
		// First category seen for a tag name wins
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (name, category) VALUES (?, ?)`,
			tag.Name, tag.Category); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag.Name, err)
		}

		var tagID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE name = ?`, tag.Name).Scan(&tagID); err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", tag.Name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO person_tags (person_id, tag_id) VALUES (?, ?)`,
			p.ID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %q to person %d: %w", tag.Name, p.ID, err)
		}
	}

	return nil
}

// ReplaceAll clears the store and inserts persons in order within a single
// transaction. Records with a zero ID get database-assigned identifiers.
func (s *SQLitePeopleStore) ReplaceAll(ctx context.Context, persons []people.Person) ([]people.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM person_tags`,
		`DELETE FROM tags`,
		`DELETE FROM people`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	stored := make([]people.Person, len(persons))
	copy(stored, persons)
	for i := range stored {
		if err := s.upsertInTx(ctx, tx, &stored[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit replace: %w", err)
	}

	return stored, nil
}

// Delete removes a person. Cascades clear the tag links.
func (s *SQLitePeopleStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person %d: %w", id, err)
	}
	return nil
}

const personColumns = `p.id, p.name, p.title, p.bio, p.unit, p.organization, p.person_type, p.email, p.profile_url, p.photo_url`

// scanPerson scans one person row in personColumns order.
func scanPerson(scanner interface{ Scan(...any) error }) (people.Person, error) {
	var p people.Person
	err := scanner.Scan(&p.ID, &p.Name, &p.Title, &p.Bio, &p.Unit, &p.Organization,
		&p.PersonType, &p.Email, &p.ProfileURL, &p.PhotoURL)
	return p, err
}

// Get returns one person with tags, or nil when absent.
func (s *SQLitePeopleStore) Get(ctx context.Context, id int64) (*people.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people p WHERE p.id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load person %d: %w", id, err)
	}

	tags, err := s.loadTags(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Tags = tags[id]

	return &p, nil
}

// FindFiltered returns persons restricted to ids (nil means unrestricted)
// and filters, ordered by name, capped at limit.
func (s *SQLitePeopleStore) FindFiltered(ctx context.Context, ids []int64, f Filters, limit int) ([]people.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var conditions []string
	var args []any

	if ids != nil {
		if len(ids) == 0 {
			return []people.Person{}, nil
		}
		conditions = append(conditions,
			fmt.Sprintf("p.id IN (%s)", placeholders(len(ids))))
		for _, id := range ids {
			args = append(args, id)
		}
	}

	if f.PersonType != "" {
		conditions = append(conditions, "p.person_type = ?")
		args = append(args, f.PersonType)
	}

	if f.Unit != "" {
		conditions = append(conditions, "p.unit = ?")
		args = append(args, f.Unit)
	}

	if len(f.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf(`p.id IN (
			SELECT pt.person_id FROM person_tags pt
			JOIN tags t ON pt.tag_id = t.id
			WHERE t.name IN (%s)
		)`, placeholders(len(f.Tags))))
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}

	where := "1=1"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM people p WHERE %s ORDER BY p.name LIMIT ?`,
		personColumns, where)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	persons, err := collectPersons(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachTags(ctx, persons); err != nil {
		return nil, err
	}
	return persons, nil
}

// All returns every person with tags, ordered by identifier.
func (s *SQLitePeopleStore) All(ctx context.Context) ([]people.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM people p ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	persons, err := collectPersons(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachTags(ctx, persons); err != nil {
		return nil, err
	}
	return persons, nil
}

// Count returns the number of persons.
func (s *SQLitePeopleStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count people: %w", err)
	}
	return count, nil
}

// IDsByTagName returns identifiers of persons carrying a tag whose name
// contains substr, case-insensitively.
func (s *SQLitePeopleStore) IDsByTagName(ctx context.Context, substr string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	if strings.TrimSpace(substr) == "" {
		return []int64{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT pt.person_id FROM person_tags pt
		JOIN tags t ON pt.tag_id = t.id
		WHERE LOWER(t.name) LIKE ? ESCAPE '\'
		ORDER BY pt.person_id`,
		"%"+escapeLike(strings.ToLower(substr))+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
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
	return ids, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE wildcards so a tag search for "100%" matches
// the literal characters rather than every tag.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Units returns distinct non-empty units with person counts, ordered by unit.
func (s *SQLitePeopleStore) Units(ctx context.Context) ([]UnitCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT unit, COUNT(*) FROM people
		WHERE unit != ''
		GROUP BY unit
		ORDER BY unit`)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []UnitCount
	for rows.Next() {
		var u UnitCount
		if err := rows.Scan(&u.Unit, &u.Count); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// PersonTypes returns person counts keyed by non-empty type.
func (s *SQLitePeopleStore) PersonTypes(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT person_type, COUNT(*) FROM people
		WHERE person_type != ''
		GROUP BY person_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query person types: %w", err)
	}
	defer rows.Close()

	types := make(map[string]int)
	for rows.Next() {
		var t string
		var count int
		if err := rows.Scan(&t, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type: %w", err)
		}
		types[t] = count
	}
	return types, rows.Err()
}

// AllTags returns tags with usage counts, grouped by category and ordered
// by count within each group.
func (s *SQLitePeopleStore) AllTags(ctx context.Context) ([]TagCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, t.category, COUNT(pt.person_id) as count
		FROM tags t
		LEFT JOIN person_tags pt ON t.id = pt.tag_id
		GROUP BY t.id
		ORDER BY t.category, count DESC, t.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var t TagCount
		if err := rows.Scan(&t.Name, &t.Category, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Stats summarizes the directory: totals, per-type and per-unit counts, and
// the most-used tags.
func (s *SQLitePeopleStore) Stats(ctx context.Context) (*DirectoryStats, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	byType, err := s.PersonTypes(ctx)
	if err != nil {
		return nil, err
	}

	byUnit, err := s.Units(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var tagCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&tagCount); err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, t.category, COUNT(pt.person_id) as count
		FROM tags t
		JOIN person_tags pt ON t.id = pt.tag_id
		GROUP BY t.id
		ORDER BY count DESC, t.name
		LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tags: %w", err)
	}
	defer rows.Close()

	var topTags []TagCount
	for rows.Next() {
		var t TagCount
		if err := rows.Scan(&t.Name, &t.Category, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		topTags = append(topTags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &DirectoryStats{
		Total:    total,
		ByType:   byType,
		ByUnit:   byUnit,
		TagCount: tagCount,
		TopTags:  topTags,
	}, nil
}

// Close closes the database. Forces a WAL checkpoint for durability.
func (s *SQLitePeopleStore) Close() error {
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

// loadTags returns tag lists keyed by person identifier.
func (s *SQLitePeopleStore) loadTags(ctx context.Context, ids []int64) (map[int64][]people.Tag, error) {
	if len(ids) == 0 {
		return map[int64][]people.Tag{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT pt.person_id, t.name, t.category
		FROM person_tags pt
		JOIN tags t ON pt.tag_id = t.id
		WHERE pt.person_id IN (%s)
		ORDER BY pt.person_id, t.id`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[int64][]people.Tag)
	for rows.Next() {
		var personID int64
		var tag people.Tag
		if err := rows.Scan(&personID, &tag.Name, &tag.Category); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags[personID] = append(tags[personID], tag)
	}
	return tags, rows.Err()
}

// attachTags loads and attaches tags for a batch of persons.
func (s *SQLitePeopleStore) attachTags(ctx context.Context, persons []people.Person) error {
	if len(persons) == 0 {
		return nil
	}

	ids := make([]int64, len(persons))
	for i := range persons {
		ids[i] = persons[i].ID
	}

	tags, err := s.loadTags(ctx, ids)
	if err != nil {
		return err
	}

	for i := range persons {
		persons[i].Tags = tags[persons[i].ID]
	}
	return nil
}

// collectPersons drains rows in personColumns order.
func collectPersons(rows *sql.Rows) ([]people.Person, error) {
	var persons []people.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if persons == nil {
		persons = []people.Person{}
	}
	return persons, nil
}

// placeholders returns n comma-joined SQL placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
