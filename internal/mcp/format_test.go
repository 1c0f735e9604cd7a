package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/internal/search"
)

func samplePerson() people.Person {
	return people.Person{
		ID:         1,
		Name:       "Ada Lin",
		Title:      "Professor of Business Administration",
		Unit:       "Marketing",
		PersonType: "faculty",
		Bio:        "Studies consumer pricing behavior in digital marketplaces.",
		ProfileURL: "https://example.edu/ada-lin",
		Tags: []people.Tag{
			{Name: "Pricing", Category: "expertise"},
			{Name: "Marketplaces", Category: "industry"},
		},
	}
}

func TestFormatPeopleResults_Empty(t *testing.T) {
	out := FormatPeopleResults("quantum", nil)
	assert.Equal(t, `No people found for "quantum"`, out)
}

func TestFormatPeopleResults_EmptyQueryEmptyDirectory(t *testing.T) {
	out := FormatPeopleResults("", nil)
	assert.Equal(t, "No people in the directory.", out)
}

func TestFormatPeopleResults_SingleResult(t *testing.T) {
	out := FormatPeopleResults("pricing", []people.Person{samplePerson()})

	assert.Contains(t, out, `## People matching "pricing"`)
	assert.Contains(t, out, "Found 1 person")
	assert.Contains(t, out, "### 1. Ada Lin")
	assert.Contains(t, out, "Professor of Business Administration")
	assert.Contains(t, out, "`Pricing`")
	assert.Contains(t, out, "[Profile](https://example.edu/ada-lin)")
	assert.NotContains(t, out, "score:")
}

func TestFormatPeopleResults_Plural(t *testing.T) {
	p2 := samplePerson()
	p2.ID = 2
	p2.Name = "Bo Chen"

	out := FormatPeopleResults("professor", []people.Person{samplePerson(), p2})
	assert.Contains(t, out, "Found 2 people")
	assert.Contains(t, out, "### 2. Bo Chen")
}

func TestFormatPeopleResults_BrowseHeader(t *testing.T) {
	out := FormatPeopleResults("", []people.Person{samplePerson()})
	assert.Contains(t, out, "## Directory")
}

func TestFormatPeopleResults_LongBioTruncated(t *testing.T) {
	p := samplePerson()
	p.Bio = strings.Repeat("pricing research ", 40) // well past the preview limit

	out := FormatPeopleResults("pricing", []people.Person{p})
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, p.Bio)
}

func TestFormatSemanticResults_ReasonSurfacedVerbatim(t *testing.T) {
	resp := &search.SemanticResponse{Reason: search.ReasonNotConfigured}

	out := FormatSemanticResults("pricing", resp)
	assert.Equal(t, search.ReasonNotConfigured, out)
}

func TestFormatSemanticResults_EmptyNoReason(t *testing.T) {
	out := FormatSemanticResults("pricing", &search.SemanticResponse{})
	assert.Equal(t, `No people found for "pricing"`, out)
}

func TestFormatSemanticResults_ScoresAndSummary(t *testing.T) {
	resp := &search.SemanticResponse{
		Results: []search.ScoredPerson{
			{Person: samplePerson(), Score: 0.8123},
		},
		Summary: "Ada Lin researches pricing in digital marketplaces.",
	}

	out := FormatSemanticResults("pricing experts", resp)
	assert.Contains(t, out, `## Semantic matches for "pricing experts"`)
	assert.Contains(t, out, "Ada Lin researches pricing")
	assert.Contains(t, out, "(score: 0.8123)")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		defaultVal int
		min        int
		max        int
		expected   int
	}{
		{"zero uses default", 0, 20, 1, 100, 20},
		{"negative uses default", -5, 20, 1, 100, 20},
		{"within bounds", 30, 20, 1, 100, 30},
		{"above max clamps", 500, 20, 1, 100, 100},
		{"at max", 100, 20, 1, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clampLimit(tt.limit, tt.defaultVal, tt.min, tt.max))
		})
	}
}
