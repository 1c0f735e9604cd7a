// Package store provides the persistence layer: the SQLite people store,
// the lexical index (SQLite FTS5 or Bleve), and the flat vector store with
// its snapshot files.
package store

import (
	"context"
	"fmt"

	"github.com/peopledex/peopledex/internal/people"
)

// Entry pairs a person identifier with the derived text the lexical index
// stores for it.
type Entry struct {
	ID   int64
	Text string
}

// LexicalIndex provides prefix-match text search over person entries.
// Matches are binary; callers order hydrated results by name.
type LexicalIndex interface {
	// Upsert replaces the entry for an identifier. The retract and
	// re-index appear atomic to concurrent queries.
	Upsert(ctx context.Context, entry Entry) error

	// Remove retracts an entry. Removing an absent identifier is a no-op.
	Remove(ctx context.Context, id int64) error

	// Rebuild drops the index and re-derives it from entries.
	Rebuild(ctx context.Context, entries []Entry) error

	// Query returns identifiers whose text matches every token of term as
	// a prefix, case-insensitively. Quote characters are stripped before
	// matching; malformed syntax yields no matches, never an error.
	Query(ctx context.Context, term string) ([]int64, error)

	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Filters narrows a candidate set. Zero-valued fields are ignored.
type Filters struct {
	PersonType string   // exact match on person type
	Unit       string   // exact match on unit
	Tags       []string // person must carry at least one of these tag names
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.PersonType == "" && f.Unit == "" && len(f.Tags) == 0
}

// UnitCount is one unit with its person count.
type UnitCount struct {
	Unit  string
	Count int
}

// TagCount is one tag with its usage count.
type TagCount struct {
	Name     string
	Category string
	Count    int
}

// DirectoryStats summarizes the directory contents.
type DirectoryStats struct {
	Total    int            // total person records
	ByType   map[string]int // person count per type
	ByUnit   []UnitCount    // person count per unit, ordered by unit
	TagCount int            // distinct tags
	TopTags  []TagCount     // most-used tags, descending by count
}

// PeopleStore persists person records and their tag associations. It is the
// system of record the indexes derive from.
type PeopleStore interface {
	// Upsert inserts or replaces a person. A zero ID is assigned by the
	// store and written back to the record.
	Upsert(ctx context.Context, p *people.Person) error

	// ReplaceAll clears the store and inserts persons in order, assigning
	// identifiers to records with a zero ID. Returns the stored records.
	ReplaceAll(ctx context.Context, persons []people.Person) ([]people.Person, error)

	// Delete removes a person and their tag associations. Deleting an
	// absent identifier is a no-op.
	Delete(ctx context.Context, id int64) error

	// Get returns one person with tags, or nil when absent.
	Get(ctx context.Context, id int64) (*people.Person, error)

	// FindFiltered returns persons restricted to ids (nil means
	// unrestricted) and the present filters, ordered by name, capped at
	// limit.
	FindFiltered(ctx context.Context, ids []int64, f Filters, limit int) ([]people.Person, error)

	// All returns every person ordered by identifier.
	All(ctx context.Context) ([]people.Person, error)

	// Count returns the number of persons.
	Count(ctx context.Context) (int, error)

	// IDsByTagName returns identifiers of persons carrying a tag whose
	// name contains substr, case-insensitively.
	IDsByTagName(ctx context.Context, substr string) ([]int64, error)

	// Units returns distinct units with person counts, ordered by unit.
	Units(ctx context.Context) ([]UnitCount, error)

	// PersonTypes returns person counts keyed by type.
	PersonTypes(ctx context.Context) (map[string]int, error)

	// AllTags returns tags with usage counts, grouped by category and
	// ordered by count within each group.
	AllTags(ctx context.Context) ([]TagCount, error)

	// Stats summarizes the directory.
	Stats(ctx context.Context) (*DirectoryStats, error)

	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    int64   // person identifier
	Score float32 // inner product against the unit-normalized query
}

// ErrDimensionMismatch indicates a vector's dimension does not match the
// store it is being added to or searched against.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild with 'peopledex index')", e.Expected, e.Got)
}
