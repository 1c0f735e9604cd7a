package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/config"
	"github.com/peopledex/peopledex/internal/ui"
	"github.com/peopledex/peopledex/pkg/directory"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show directory health and status",
		Long: `Display information about the directory including:
  - Number of people and indexed vectors
  - Last index build time
  - Storage sizes (people DB, lexical index, vectors)
  - Embedder status (provider, model, availability)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
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

	info, err := collectStatus(ctx, root, cfg, dir)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, root string, cfg *config.Config, dir *directory.Directory) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		DirectoryName: filepath.Base(root),
		WatcherStatus: "n/a",
	}

	status, err := dir.Status(ctx)
	if err != nil {
		return info, err
	}
	info.TotalPeople = status.LexicalCount
	info.TotalVectors = status.IndexCount

	dataDir := cfg.ResolveDataDir(root)
	info.PeopleDBSize = getFileSize(filepath.Join(dataDir, "people.db"))

	// The lexical index lives in a single SQLite file or a Bleve directory,
	// depending on the configured backend.
	if size := getFileSize(filepath.Join(dataDir, "lexical.db")); size > 0 {
		info.LexicalSize = size
	} else {
		info.LexicalSize = getDirSize(filepath.Join(dataDir, "lexical.bleve"))
	}

	snapshotPath := dir.SnapshotPath()
	info.VectorSize = getFileSize(snapshotPath) + getFileSize(snapshotPath+".meta")
	info.TotalSize = info.PeopleDBSize + info.LexicalSize + info.VectorSize

	if st, err := os.Stat(snapshotPath); err == nil {
		info.LastIndexed = st.ModTime()
	}

	if model, _, ok := dir.EmbedderInfo(); ok {
		provider, modelName := splitModelName(model)
		info.EmbedderType = provider
		info.EmbedderModel = modelName
		info.EmbedderStatus = "ready"
	} else {
		info.EmbedderType = cfg.Embeddings.Provider
		if info.EmbedderType == "" {
			info.EmbedderType = "auto"
		}
		info.EmbedderStatus = "offline"
	}

	return info, nil
}

// getFileSize returns the size of a file in bytes, or 0 when absent.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files in a directory.
func getDirSize(path string) int64 {
	var size int64

	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size
}
