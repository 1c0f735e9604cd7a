package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/config"
	"github.com/peopledex/peopledex/internal/output"
)

func newLoadCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "load [corpus.json]",
		Short: "Load a people corpus into the directory",
		Long: `Load a JSON corpus of people into the directory.

The corpus replaces the current directory contents and the lexical index
is rebuilt to match. The vector index is left untouched; run
'peopledex index' afterwards to refresh semantic search.

Without an argument the corpus path comes from storage.corpus_path in the
configuration, falling back to common names (people.json, corpus.json).`,
		Example: `  # Load an explicit corpus file
  peopledex load people.json

  # Load the configured corpus and keep re-syncing on change
  peopledex load --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runLoad(ctx, cmd, path, watch)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Watch the corpus file and re-sync on change")

	return cmd
}

func runLoad(ctx context.Context, cmd *cobra.Command, path string, watch bool) error {
	cleanup := setupCLILogging()
	defer cleanup()

	out := output.New(cmd.OutOrStdout())
	root := projectRoot()
	cfg := loadConfig(root)

	// Resolve the corpus file: explicit argument, configured path, or
	// discovery under common names.
	switch {
	case path != "":
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve corpus path: %w", err)
		}
		path = abs
		// Point the watcher and future reloads at the same file.
		cfg.Storage.CorpusPath = abs
	case fileExists(cfg.ResolveCorpusPath(root)):
		path = cfg.ResolveCorpusPath(root)
	default:
		discovered, ok := config.DiscoverCorpusFile(root)
		if !ok {
			return fmt.Errorf("no corpus file found in %s\nPass one explicitly: peopledex load <corpus.json>", root)
		}
		path = discovered
		cfg.Storage.CorpusPath = discovered
	}

	dir, err := openDirectory(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	count, err := dir.LoadCorpus(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	out.Successf("Loaded %d people from %s", count, path)

	status, err := dir.Status(ctx)
	if err == nil && status.IndexLoaded && status.IndexCount != count {
		out.Warningf("Vector index has %d entries for %d people; run 'peopledex index' to refresh", status.IndexCount, count)
	} else if !watch {
		out.Status("💡", "Run 'peopledex index' to enable semantic search")
	}

	if !watch {
		return nil
	}

	w, err := dir.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start corpus watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	out.Statusf("👀", "Watching %s for changes (Ctrl+C to stop)", path)
	slog.Info("corpus_watch_started", slog.String("path", path))

	<-ctx.Done()
	out.Newline()
	out.Status("👋", "Watcher stopped")
	return nil
}
