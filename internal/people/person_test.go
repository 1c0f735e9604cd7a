package people

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []Tag
		wantErr bool
	}{
		{
			name: "object list",
			raw:  `[{"name": "Fintech", "category": "industry"}, {"name": "AI", "category": "expertise"}]`,
			want: []Tag{
				{Name: "Fintech", Category: "industry"},
				{Name: "AI", Category: "expertise"},
			},
		},
		{
			name: "bare string list",
			raw:  `["Fintech", "AI"]`,
			want: []Tag{{Name: "Fintech"}, {Name: "AI"}},
		},
		{
			name: "comma-joined string",
			raw:  `"Fintech, AI, Venture Capital"`,
			want: []Tag{{Name: "Fintech"}, {Name: "AI"}, {Name: "Venture Capital"}},
		},
		{
			name: "null",
			raw:  `null`,
			want: nil,
		},
		{
			name: "empty array",
			raw:  `[]`,
			want: nil,
		},
		{
			name: "empty string",
			raw:  `""`,
			want: nil,
		},
		{
			name: "whitespace and empty names dropped",
			raw:  `[{"name": "  Fintech  "}, {"name": ""}, {"name": "   "}]`,
			want: []Tag{{Name: "Fintech"}},
		},
		{
			name:    "unrecognized shape",
			raw:     `42`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTags(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTags_AbsentField(t *testing.T) {
	got, err := NormalizeTags(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPerson_UnmarshalJSON_ObjectTags(t *testing.T) {
	// Given: a corpus record with structured tags
	data := `{
		"id": 7,
		"name": "Ada Lin",
		"title": "Professor of Management",
		"bio": "Studies fintech adoption in emerging markets.",
		"unit": "Finance",
		"organization": "School of Business",
		"type": "faculty",
		"email": "alin@example.edu",
		"profile_url": "https://example.edu/people/ada-lin",
		"photo_url": "https://example.edu/photos/ada-lin.jpg",
		"tags": [{"name": "Fintech", "category": "industry"}]
	}`

	// When: decoding the record
	var p Person
	require.NoError(t, json.Unmarshal([]byte(data), &p))

	// Then: all fields land and tags are canonical
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Ada Lin", p.Name)
	assert.Equal(t, "Professor of Management", p.Title)
	assert.Equal(t, "Finance", p.Unit)
	assert.Equal(t, "School of Business", p.Organization)
	assert.Equal(t, "faculty", p.PersonType)
	assert.Equal(t, "alin@example.edu", p.Email)
	assert.Equal(t, "https://example.edu/people/ada-lin", p.ProfileURL)
	assert.Equal(t, "https://example.edu/photos/ada-lin.jpg", p.PhotoURL)
	require.Len(t, p.Tags, 1)
	assert.Equal(t, Tag{Name: "Fintech", Category: "industry"}, p.Tags[0])
}

func TestPerson_UnmarshalJSON_CommaJoinedTags(t *testing.T) {
	data := `{"name": "Bo Chen", "tags": "Healthcare, Biotech"}`

	var p Person
	require.NoError(t, json.Unmarshal([]byte(data), &p))

	assert.Equal(t, []Tag{{Name: "Healthcare"}, {Name: "Biotech"}}, p.Tags)
}

func TestPerson_UnmarshalJSON_NoTags(t *testing.T) {
	data := `{"name": "Bo Chen"}`

	var p Person
	require.NoError(t, json.Unmarshal([]byte(data), &p))

	assert.Nil(t, p.Tags)
}

func TestPerson_TagNames(t *testing.T) {
	p := Person{Tags: []Tag{
		{Name: "Fintech", Category: "industry"},
		{Name: "AI"},
	}}

	assert.Equal(t, []string{"Fintech", "AI"}, p.TagNames())

	empty := Person{}
	assert.Nil(t, empty.TagNames())
}

func TestPerson_HasTag(t *testing.T) {
	p := Person{Tags: []Tag{{Name: "Fintech"}}}

	assert.True(t, p.HasTag("Fintech"))
	assert.False(t, p.HasTag("fintech")) // exact match only
	assert.False(t, p.HasTag("AI"))
}

func TestPerson_LexicalText(t *testing.T) {
	// Given: a fully populated record
	p := Person{
		Name:         "Ada Lin",
		Title:        "Professor",
		Bio:          "Studies fintech.",
		Unit:         "Finance",
		Organization: "School of Business",
	}

	// Then: name, title, bio, organization, unit in that order
	assert.Equal(t, "Ada Lin Professor Studies fintech. School of Business Finance", p.LexicalText())
}

func TestPerson_LexicalText_SkipsEmptyFields(t *testing.T) {
	p := Person{Name: "Ada Lin", Unit: "Finance"}

	assert.Equal(t, "Ada Lin Finance", p.LexicalText())
}

func TestPerson_EmbeddingText(t *testing.T) {
	p := Person{
		Name:         "Ada Lin",
		Title:        "Professor",
		Bio:          "Studies fintech.",
		Unit:         "Finance",
		Organization: "School of Business",
		Tags:         []Tag{{Name: "Fintech"}, {Name: "Emerging Markets"}},
	}

	want := "Ada Lin Professor Studies fintech. Unit: Finance " +
		"Organization: School of Business Tags: Fintech, Emerging Markets"
	assert.Equal(t, want, p.EmbeddingText())
}

func TestPerson_EmbeddingText_MinimalRecord(t *testing.T) {
	p := Person{Name: "Bo Chen"}
	assert.Equal(t, "Bo Chen", p.EmbeddingText())

	empty := Person{}
	assert.Equal(t, "", empty.EmbeddingText())
}
