package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/output"
	"github.com/peopledex/peopledex/internal/people"
	"github.com/peopledex/peopledex/pkg/directory"
)

// searchOptions holds CLI flags for lexical search.
type searchOptions struct {
	limit      int
	personType string
	unit       string
	tags       []string
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the directory by name, title, or tag",
		Long: `Search the directory lexically.

Query words match name, title, unit, and bio by prefix; the query also
matches tag names by substring. Results are ordered by name. With no
query the command lists everyone who passes the filters.`,
		Example: `  peopledex search "pricing"
  peopledex search ada --type faculty --limit 5
  peopledex search --unit Marketing
  peopledex search "strategy" --tag Entrepreneurship --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.personType, "type", "t", "", "Filter by person type (e.g. faculty, fellow)")
	cmd.Flags().StringVarP(&opts.unit, "unit", "u", "", "Filter by unit")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Filter by tag (repeatable, all must match)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cleanup := setupCLILogging()
	defer cleanup()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))

	root := projectRoot()
	cfg := loadConfig(root)
	if err := requireData(root, cfg); err != nil {
		return err
	}

	dir, err := openDirectory(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	results, err := dir.Search(ctx, query, directory.Filters{
		PersonType: opts.personType,
		Unit:       opts.unit,
		Tags:       opts.tags,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}

	slog.Info("search_complete", slog.Int("results", len(results)))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		if query == "" {
			out.Status("🔍", "No people match the given filters")
		} else {
			out.Statusf("🔍", "No people found for %q", query)
		}
		return nil
	}

	if len(results) == 1 {
		out.Statusf("🔍", "Found 1 person")
	} else {
		out.Statusf("🔍", "Found %d people", len(results))
	}
	out.Newline()

	for i, p := range results {
		printPerson(out, i+1, p)
	}

	return nil
}

// printPerson writes one result in the text format shared by search and
// semantic output.
func printPerson(out *output.Writer, num int, p people.Person) {
	out.Statusf("", "%d. %s", num, p.Name)

	meta := make([]string, 0, 3)
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
		out.Statusf("", "   %s", strings.Join(meta, " · "))
	}
	if tags := p.TagNames(); len(tags) > 0 {
		out.Statusf("", "   tags: %s", strings.Join(tags, ", "))
	}
	out.Newline()
}
