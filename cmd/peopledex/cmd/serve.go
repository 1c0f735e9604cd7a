package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peopledex/peopledex/internal/logging"
	"github.com/peopledex/peopledex/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory over the Model Context Protocol",
		Long: `Start the MCP server on stdio.

The server exposes search_people, semantic_search, and directory_status
tools plus person:// resource cards, for MCP clients such as Claude
Desktop and Claude Code.

Stdout carries JSON-RPC exclusively; all logging goes to the log file.`,
		Example: `  # Register with Claude Code
  claude mcp add peopledex -- peopledex serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, transport, watch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport to use (stdio)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-sync the directory when the corpus file changes")

	return cmd
}

func runServe(ctx context.Context, transport string, watch bool) error {
	// Stdout belongs to JSON-RPC from here on. Logging is file-only.
	cleanup, err := logging.SetupMCPMode()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	root := projectRoot()
	cfg := loadConfig(root)
	if transport == "" {
		transport = cfg.Server.Transport
	}

	if err := requireData(root, cfg); err != nil {
		return err
	}

	dir, err := openDirectory(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	server, err := mcp.NewServer(dir.Engine(), dir.PeopleStore(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()

	if m := dir.Metrics(); m != nil {
		server.SetMetrics(m)
	}

	if err := server.RegisterResources(ctx); err != nil {
		slog.Warn("resource_registration_failed", slog.String("error", err.Error()))
	}

	if watch {
		w, err := dir.Watch(ctx)
		if err != nil {
			slog.Warn("corpus_watch_failed", slog.String("error", err.Error()))
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	slog.Info("serve_started",
		slog.String("root", root),
		slog.String("transport", transport))

	return server.Serve(ctx, transport, "")
}
