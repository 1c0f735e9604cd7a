package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/store"
	"github.com/peopledex/peopledex/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show directory statistics and telemetry",
		Long: `Display statistics about the directory contents:
  - People count, by person type and by unit
  - Distinct tags and the most-used ones

Use 'peopledex stats queries' for query telemetry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newStatsQueriesCmd())
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cleanup := setupCLILogging()
	defer cleanup()

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

	stats, err := dir.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read directory stats: %w", err)
	}

	if jsonOutput {
		return printStatsJSON(cmd, stats)
	}
	return printStatsFormatted(cmd, stats)
}

func printStatsJSON(cmd *cobra.Command, stats *store.DirectoryStats) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func printStatsFormatted(cmd *cobra.Command, stats *store.DirectoryStats) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Directory Statistics")
	fmt.Fprintln(w, "====================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "People:        %d\n", stats.Total)
	fmt.Fprintf(w, "Distinct tags: %d\n", stats.TagCount)
	fmt.Fprintln(w)

	if len(stats.ByType) > 0 {
		fmt.Fprintln(w, "By Person Type:")
		for pt, count := range stats.ByType {
			fmt.Fprintf(w, "  %s: %d\n", pt, count)
		}
		fmt.Fprintln(w)
	}

	if len(stats.ByUnit) > 0 {
		fmt.Fprintln(w, "By Unit:")
		for _, uc := range stats.ByUnit {
			fmt.Fprintf(w, "  %s: %d\n", uc.Unit, uc.Count)
		}
		fmt.Fprintln(w)
	}

	if len(stats.TopTags) > 0 {
		fmt.Fprintln(w, "Top Tags:")
		for i, tc := range stats.TopTags {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Name, tc.Count)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func newStatsQueriesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Show query pattern statistics",
		Long: `Display query pattern telemetry including:
  - Query type distribution (lexical/semantic)
  - Top query terms
  - Zero-result queries
  - Latency distribution`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsQueries(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatsQueries(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cleanup := setupCLILogging()
	defer cleanup()

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

	metrics := dir.Metrics()
	if metrics == nil {
		return fmt.Errorf("query telemetry is not available")
	}

	snapshot := metrics.Snapshot()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	return printQueryStats(cmd, snapshot)
}

func printQueryStats(cmd *cobra.Command, s *telemetry.QueryMetricsSnapshot) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Query Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total Queries: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "Zero Results:  %.1f%%\n", s.ZeroResultPercentage())
	fmt.Fprintln(w)

	if len(s.QueryTypeCounts) > 0 {
		fmt.Fprintln(w, "Query Type Distribution:")
		for qt, count := range s.QueryTypeCounts {
			fmt.Fprintf(w, "  %s: %d\n", qt, count)
		}
		fmt.Fprintln(w)
	}

	if len(s.TopTerms) > 0 {
		fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range s.TopTerms {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Top Query Terms: (none recorded yet)")
		fmt.Fprintln(w)
	}

	if len(s.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "Recent Zero-Result Queries:")
		for _, q := range s.ZeroResultQueries {
			fmt.Fprintf(w, "  - %q\n", q)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Recent Zero-Result Queries: (none)")
		fmt.Fprintln(w)
	}

	if len(s.LatencyDistribution) > 0 {
		fmt.Fprintln(w, "Latency Distribution:")
		for _, bucket := range []telemetry.LatencyBucket{
			telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
			telemetry.BucketP500, telemetry.BucketP1000,
		} {
			if count, ok := s.LatencyDistribution[bucket]; ok {
				fmt.Fprintf(w, "  %s: %d\n", bucket, count)
			}
		}
	}

	return nil
}
