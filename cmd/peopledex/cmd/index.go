package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/ui"
	"github.com/peopledex/peopledex/pkg/directory"
)

func newIndexCmd() *cobra.Command {
	var (
		offline bool
		noTUI   bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index for semantic search",
		Long: `Embed every person in the directory and rebuild the vector index.

The finished index is swapped in atomically and persisted to disk, so
searches keep working on the previous index until the build completes.

Use --offline to build with the deterministic static embedder instead of
a remote provider. This needs no API key but gives weaker results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, offline, noTUI)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use the static embedder (no API key required)")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, offline, noTUI bool) error {
	cleanup := setupCLILogging()
	defer cleanup()

	root := projectRoot()
	cfg := loadConfig(root)
	if offline {
		cfg.Embeddings.Provider = "static"
	}

	if err := requireData(root, cfg); err != nil {
		return err
	}

	dir, err := openDirectory(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	modelName, dims, ok := dir.EmbedderInfo()
	if !ok {
		return fmt.Errorf("no embedding provider configured\n" +
			"Set VOYAGE_API_KEY or OPENAI_API_KEY, or run 'peopledex index --offline'")
	}

	stats, err := dir.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read directory stats: %w", err)
	}
	if stats.Total == 0 {
		return fmt.Errorf("the directory is empty\nRun 'peopledex load <corpus.json>' first")
	}

	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(noTUI), ui.WithProjectDir(root))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	tracker := newStageTimer()
	start := time.Now()

	built, err := dir.BuildVectorIndex(ctx, func(p directory.Progress) {
		stage := buildStage(p.Stage)
		tracker.observe(stage)
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   stage,
			Current: p.Current,
			Total:   p.Total,
		})
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return fmt.Errorf("index build failed: %w", err)
	}

	provider, model := splitModelName(modelName)
	renderer.Complete(ui.CompletionStats{
		People:   stats.Total,
		Vectors:  built,
		Duration: time.Since(start),
		Stages:   tracker.timings(),
		Embedder: ui.EmbedderInfo{
			Provider:   provider,
			Model:      model,
			Dimensions: dims,
		},
	})

	slog.Info("index_complete",
		slog.Int("people", stats.Total),
		slog.Int("vectors", built),
		slog.String("model", modelName))

	return nil
}

// buildStage maps facade build stages onto UI stages.
func buildStage(stage string) ui.Stage {
	switch stage {
	case directory.StageLoad:
		return ui.StageLoading
	case directory.StageEmbed:
		return ui.StageEmbedding
	case directory.StageIndex:
		return ui.StageIndexing
	case directory.StageSave:
		return ui.StageSaving
	default:
		return ui.StageLoading
	}
}

// stageTimer records how long each build stage ran. Progress callbacks may
// arrive from parallel embed workers, so access is serialized.
type stageTimer struct {
	mu      sync.Mutex
	current ui.Stage
	started time.Time
	seen    bool
	spent   map[ui.Stage]time.Duration
}

func newStageTimer() *stageTimer {
	return &stageTimer{spent: make(map[ui.Stage]time.Duration)}
}

func (t *stageTimer) observe(stage ui.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.seen {
		t.current, t.started, t.seen = stage, now, true
		return
	}
	if stage != t.current {
		t.spent[t.current] += now.Sub(t.started)
		t.current, t.started = stage, now
	}
}

func (t *stageTimer) timings() ui.StageTimings {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen {
		t.spent[t.current] += time.Since(t.started)
		t.started = time.Now()
	}
	return ui.StageTimings{
		Load:  t.spent[ui.StageLoading],
		Embed: t.spent[ui.StageEmbedding],
		Index: t.spent[ui.StageIndexing],
		Save:  t.spent[ui.StageSaving],
	}
}
