package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopledex/peopledex/internal/people"
)

func testPeople() []people.Person {
	return []people.Person{
		{
			Name:       "Ada Lin",
			Title:      "Professor of Business Administration",
			Unit:       "Marketing",
			PersonType: "faculty",
			Bio:        "Ada Lin studies consumer pricing behavior in digital marketplaces.",
			Tags: []people.Tag{
				{Name: "Pricing"},
				{Name: "Consumer Behavior"},
			},
		},
		{
			Name:       "Bo Chen",
			Title:      "Senior Fellow",
			Unit:       "Strategy",
			PersonType: "fellow",
		},
	}
}

// chatServer fakes an OpenAI-compatible chat completion endpoint and records
// the last prompt it received.
func chatServer(t *testing.T, reply string) (*httptest.Server, *string) {
	t.Helper()
	var lastPrompt string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		lastPrompt = req.Messages[0].Content

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)

	return srv, &lastPrompt
}

func TestSummarizer_UnavailableWithoutKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	s := New(Config{Enabled: true})
	defer s.Close()

	assert.False(t, s.Available())
	assert.Empty(t, s.Summarize(context.Background(), "pricing experts", testPeople()))
}

func TestSummarizer_UnavailableWhenDisabled(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")

	s := New(Config{Enabled: false})
	defer s.Close()

	assert.False(t, s.Available())
}

func TestSummarizer_AvailableWithKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")

	s := New(Config{Enabled: true})
	defer s.Close()

	assert.True(t, s.Available())
}

func TestSummarizer_GeneratesSummary(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")
	srv, prompt := chatServer(t, "  Ada Lin is the leading pricing expert.  ")

	s := New(Config{Enabled: true, BaseURL: srv.URL})
	defer s.Close()

	got := s.Summarize(context.Background(), "who studies pricing?", testPeople())
	assert.Equal(t, "Ada Lin is the leading pricing expert.", got, "response is trimmed")

	assert.Contains(t, *prompt, "Query: who studies pricing?")
	assert.Contains(t, *prompt, "1. Ada Lin")
	assert.Contains(t, *prompt, "Title: Professor of Business Administration")
	assert.Contains(t, *prompt, "Expertise: Pricing, Consumer Behavior")
	assert.Contains(t, *prompt, "2. Bo Chen")
}

func TestSummarizer_EmptyQueryOrResults(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")
	srv, _ := chatServer(t, "unused")

	s := New(Config{Enabled: true, BaseURL: srv.URL})
	defer s.Close()

	assert.Empty(t, s.Summarize(context.Background(), "   ", testPeople()))
	assert.Empty(t, s.Summarize(context.Background(), "pricing", nil))
}

func TestSummarizer_ProviderFailureReturnsEmpty(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{Enabled: true, BaseURL: srv.URL})
	defer s.Close()

	// Failures are absorbed, never propagated
	assert.Empty(t, s.Summarize(context.Background(), "pricing", testPeople()))
}

func TestSummarizer_CapsProfilesInPrompt(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")
	srv, prompt := chatServer(t, "summary")

	s := New(Config{Enabled: true, BaseURL: srv.URL, MaxProfiles: 2})
	defer s.Close()

	many := []people.Person{
		{Name: "One"}, {Name: "Two"}, {Name: "Three"}, {Name: "Four"},
	}
	s.Summarize(context.Background(), "anyone", many)

	assert.Contains(t, *prompt, "1. One")
	assert.Contains(t, *prompt, "2. Two")
	assert.NotContains(t, *prompt, "Three")
	assert.NotContains(t, *prompt, "Four")
}

func TestSummarizer_TruncatesBioInPrompt(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")
	srv, prompt := chatServer(t, "summary")

	s := New(Config{Enabled: true, BaseURL: srv.URL, BioLimit: 20})
	defer s.Close()

	long := strings.Repeat("pricing research ", 10)
	s.Summarize(context.Background(), "anyone", []people.Person{{Name: "Ada Lin", Bio: long}})

	assert.Contains(t, *prompt, "Bio: "+long[:20]+"...")
	assert.NotContains(t, *prompt, long)
}

func TestFormatTags(t *testing.T) {
	tags := []people.Tag{
		{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}, {Name: "E"},
		{Name: "F"}, {Name: "G"},
	}

	tests := []struct {
		name string
		tags []people.Tag
		want string
	}{
		{name: "empty", tags: nil, want: ""},
		{name: "under cap", tags: tags[:3], want: "A, B, C"},
		{name: "at cap", tags: tags[:5], want: "A, B, C, D, E"},
		{name: "over cap gets suffix", tags: tags, want: "A, B, C, D, E (+2 more)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTags(tt.tags, DefaultMaxTags))
		})
	}
}
