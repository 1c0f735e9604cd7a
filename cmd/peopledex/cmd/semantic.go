package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/output"
	"github.com/peopledex/peopledex/internal/search"
)

func newSemanticCmd() *cobra.Command {
	var (
		k         int
		noSummary bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "semantic <query>",
		Short: "Search the directory by meaning",
		Long: `Search the directory semantically using embeddings.

The query is embedded and matched against the vector index by cosine
similarity. An AI summary of the matches is included when a chat model
is configured; use --no-summary to skip it.

Semantic search needs a built vector index ('peopledex index') and an
embedding provider. Without either, the command reports why instead of
returning results.`,
		Example: `  peopledex semantic "who works on pricing strategy"
  peopledex semantic "machine learning" -k 5 --no-summary`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSemantic(cmd.Context(), cmd, query, k, !noSummary, format)
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of results (default from config)")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "Skip the AI summary")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSemantic(ctx context.Context, cmd *cobra.Command, query string, k int, includeSummary bool, format string) error {
	cleanup := setupCLILogging()
	defer cleanup()

	slog.Info("semantic_search_started", slog.String("query", query), slog.Int("k", k))

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

	resp, err := dir.SemanticSearch(ctx, query, k, includeSummary)
	if err != nil {
		return fmt.Errorf("semantic search failed: %w", err)
	}

	slog.Info("semantic_search_complete",
		slog.Int("results", len(resp.Results)),
		slog.String("reason", resp.Reason))

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := output.New(cmd.OutOrStdout())

	if resp.Reason != "" {
		out.Warning(resp.Reason)
		if resp.Reason == search.ReasonUnavailable {
			out.Status("💡", "Run 'peopledex index' to build the vector index")
		}
		return nil
	}

	if len(resp.Results) == 0 {
		out.Statusf("🔍", "No semantic matches for %q", query)
		return nil
	}

	out.Statusf("🔍", "Top %d matches for %q", len(resp.Results), query)
	out.Newline()

	if resp.Summary != "" {
		out.Status("🤖", resp.Summary)
		out.Newline()
	}

	for i, r := range resp.Results {
		out.Statusf("", "%d. %s (%.4f)", i+1, r.Name, r.Score)

		meta := make([]string, 0, 3)
		if r.Title != "" {
			meta = append(meta, r.Title)
		}
		if r.Unit != "" {
			meta = append(meta, r.Unit)
		}
		if r.PersonType != "" {
			meta = append(meta, r.PersonType)
		}
		if len(meta) > 0 {
			out.Statusf("", "   %s", strings.Join(meta, " · "))
		}
		out.Newline()
	}

	return nil
}
