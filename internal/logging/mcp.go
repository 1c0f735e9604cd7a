package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for the MCP server.
//
// The MCP transport owns stdio: any stray write to stdout or stderr
// corrupts the JSON-RPC stream and the client reports a failed
// connection. So MCP-mode logs go to the file only, at debug level.
func SetupMCPMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("MCP mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
