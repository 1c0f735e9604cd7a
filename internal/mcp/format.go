package mcp

import (
	"fmt"
	"strings"

	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/internal/search"
)

// bioPreviewLimit bounds the bio text shown per result card.
const bioPreviewLimit = 300

// FormatPeopleResults formats lexical search results as markdown.
func FormatPeopleResults(query string, results []people.Person) string {
	if len(results) == 0 {
		if query == "" {
			return "No people in the directory."
		}
		return fmt.Sprintf("No people found for \"%s\"", query)
	}

	var sb strings.Builder
	if query == "" {
		sb.WriteString("## Directory\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("## People matching \"%s\"\n\n", query))
	}
	sb.WriteString(fmt.Sprintf("Found %d ", len(results)))
	if len(results) == 1 {
		sb.WriteString("person")
	} else {
		sb.WriteString("people")
	}
	sb.WriteString("\n\n")

	for i, p := range results {
		formatPerson(&sb, i+1, p, 0)
	}

	return sb.String()
}

// FormatSemanticResults formats a semantic response as markdown. An empty
// result set surfaces the reason verbatim when one is present.
func FormatSemanticResults(query string, resp *search.SemanticResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		if resp != nil && resp.Reason != "" {
			return resp.Reason
		}
		return fmt.Sprintf("No people found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Semantic matches for \"%s\"\n\n", query))

	if resp.Summary != "" {
		sb.WriteString(resp.Summary)
		sb.WriteString("\n\n---\n\n")
	}

	for i, r := range resp.Results {
		formatPerson(&sb, i+1, r.Person, r.Score)
	}

	return sb.String()
}

// formatPerson writes a single person card. A non-zero score is shown in
// the header.
func formatPerson(sb *strings.Builder, num int, p people.Person, score float64) {
	if score > 0 {
		fmt.Fprintf(sb, "### %d. %s (score: %.4f)\n", num, p.Name, score)
	} else {
		fmt.Fprintf(sb, "### %d. %s\n", num, p.Name)
	}

	var meta []string
	if p.Title != "" {
		meta = append(meta, p.Title)
	}
	if p.Unit != "" {
		meta = append(meta, p.Unit)
	}
	if p.PersonType != "" {
		meta = append(meta, p.PersonType)
	}
	if len(meta) > 0 {
		fmt.Fprintf(sb, "**%s**\n\n", strings.Join(meta, " · "))
	}

	if len(p.Tags) > 0 {
		names := make([]string, 0, len(p.Tags))
		for _, t := range p.Tags {
			names = append(names, fmt.Sprintf("`%s`", t.Name))
		}
		fmt.Fprintf(sb, "Tags: %s\n\n", strings.Join(names, ", "))
	}

	if p.Bio != "" {
		bio := p.Bio
		if len(bio) > bioPreviewLimit {
			bio = bio[:bioPreviewLimit] + "..."
		}
		sb.WriteString(bio)
		sb.WriteString("\n\n")
	}

	if p.ProfileURL != "" {
		fmt.Fprintf(sb, "[Profile](%s)\n\n", p.ProfileURL)
	}
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
