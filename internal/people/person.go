// Package people defines the directory's person records and the corpus
// ingestion boundary: JSON corpus loading with tag-shape normalization and
// an optional file watcher that triggers re-ingestion on corpus change.
package people

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Person is one directory record. Records are immutable once indexed;
// changes arrive as whole-record replacement through the corpus loader.
type Person struct {
	ID           int64  `json:"id,omitempty"` // assigned by the store when zero
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Organization string `json:"organization,omitempty"`
	PersonType   string `json:"type,omitempty"` // e.g. faculty, fellow
	Email        string `json:"email,omitempty"`
	ProfileURL   string `json:"profile_url,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	Tags         []Tag  `json:"tags,omitempty"`
}

// Tag classifies a person. Identity is the name; Category is a free-form
// grouping such as "industry", "expertise", or "role".
type Tag struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// UnmarshalJSON accepts the heterogeneous tag shapes found in corpus files
// and canonicalizes them through NormalizeTags before anything downstream
// sees the record.
func (p *Person) UnmarshalJSON(data []byte) error {
	type alias Person
	aux := struct {
		*alias
		Tags json.RawMessage `json:"tags"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	tags, err := NormalizeTags(aux.Tags)
	if err != nil {
		return fmt.Errorf("normalize tags for %q: %w", p.Name, err)
	}
	p.Tags = tags
	return nil
}

// NormalizeTags canonicalizes a raw corpus tags field. Three shapes occur in
// the wild: a list of {name, category} objects, a list of bare strings, and
// a single comma-joined string. Absent or null fields yield no tags. Empty
// names are dropped.
func NormalizeTags(raw json.RawMessage) ([]Tag, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	// List of {name, category} objects.
	var objs []Tag
	if err := json.Unmarshal(raw, &objs); err == nil {
		return dropEmptyTags(objs), nil
	}

	// List of bare strings.
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		tags := make([]Tag, 0, len(names))
		for _, n := range names {
			tags = append(tags, Tag{Name: strings.TrimSpace(n)})
		}
		return dropEmptyTags(tags), nil
	}

	// Comma-joined string.
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		parts := strings.Split(joined, ",")
		tags := make([]Tag, 0, len(parts))
		for _, part := range parts {
			tags = append(tags, Tag{Name: strings.TrimSpace(part)})
		}
		return dropEmptyTags(tags), nil
	}

	return nil, fmt.Errorf("unrecognized tags shape: %s", truncateForError(raw))
}

func dropEmptyTags(tags []Tag) []Tag {
	out := tags[:0]
	for _, t := range tags {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncateForError(raw json.RawMessage) string {
	const max = 64
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// TagNames returns the flattened tag-name list in stored order.
func (p *Person) TagNames() []string {
	if len(p.Tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

// HasTag reports whether the person carries the named tag (exact match).
func (p *Person) HasTag(name string) bool {
	for _, t := range p.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// LexicalText derives the text the lexical index stores for this record:
// name, title, bio, organization, unit, concatenated in that order with
// empty fields skipped.
func (p *Person) LexicalText() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{p.Name, p.Title, p.Bio, p.Organization, p.Unit} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// EmbeddingText derives the searchable string submitted to the embedding
// provider. Name leads, then title and bio, then labeled unit, organization,
// and tag context so the model can distinguish the fields.
func (p *Person) EmbeddingText() string {
	parts := make([]string, 0, 6)
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Bio != "" {
		parts = append(parts, p.Bio)
	}
	if p.Unit != "" {
		parts = append(parts, "Unit: "+p.Unit)
	}
	if p.Organization != "" {
		parts = append(parts, "Organization: "+p.Organization)
	}
	if names := p.TagNames(); len(names) > 0 {
		parts = append(parts, "Tags: "+strings.Join(names, ", "))
	}
	return strings.Join(parts, " ")
}
