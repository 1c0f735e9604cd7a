package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the log directory, ~/.peopledex/logs.
// Falls back to the temp directory when the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".peopledex", "logs")
	}
	return filepath.Join(home, ".peopledex", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "peopledex.log")
}

// EnsureLogDir creates the log directory if needed.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
