package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peopledex/peopledex/internal/config"
	"github.com/peopledex/peopledex/internal/logging"
	"github.com/peopledex/peopledex/pkg/directory"
)

// projectRoot locates the project root from the current directory.
func projectRoot() string {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return root
}

// loadConfig loads the effective configuration for root, falling back to
// defaults when no config file exists.
func loadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		slog.Warn("config_load_failed", slog.String("error", err.Error()))
		return config.NewConfig()
	}
	return cfg
}

// openDirectory assembles the directory for root. The caller must Close it.
func openDirectory(root string, cfg *config.Config) (*directory.Directory, error) {
	dir, err := directory.Open(root, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	return dir, nil
}

// requireData errors when no people database exists yet, pointing the user
// at the load command instead of failing deeper in the stack.
func requireData(root string, cfg *config.Config) error {
	peoplePath := filepath.Join(cfg.ResolveDataDir(root), "people.db")
	if !fileExists(peoplePath) {
		return fmt.Errorf("no directory data found in %s\nRun 'peopledex load <corpus.json>' first", root)
	}
	return nil
}

// setupCLILogging routes slog to the log file only, keeping stdout clean for
// user-facing output. Failure to set up logging is not fatal for the CLI.
func setupCLILogging() func() {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// splitModelName splits an embedder model identifier like "voyage/voyage-3"
// into provider and model parts. Identifiers without a provider prefix, such
// as "static", serve as both.
func splitModelName(name string) (provider, model string) {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, name
}
