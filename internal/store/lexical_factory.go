package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// LexicalBackend represents the lexical index backend type.
type LexicalBackend string

const (
	// LexicalBackendSQLite uses SQLite FTS5 (default).
	// Enables concurrent multi-process access via WAL mode.
	LexicalBackendSQLite LexicalBackend = "sqlite"

	// LexicalBackendBleve uses Bleve v2.
	// Has exclusive file locking via BoltDB - single process only.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// NewLexicalIndexWithBackend creates a LexicalIndex using the specified
// backend. The path should be the base path without extension - the extension
// is added based on the backend type (.db for SQLite, .bleve for Bleve).
//
// If basePath is empty, creates an in-memory index for testing.
func NewLexicalIndexWithBackend(basePath string, backend string) (LexicalIndex, error) {
	switch backend {
	case string(LexicalBackendSQLite), "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteLexicalIndex(path)

	case string(LexicalBackendBleve):
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveLexicalIndex(path)

	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectLexicalBackend detects which backend an existing index uses based on
// file existence. Returns the detected backend or an empty string if no index
// exists. Used so an existing index keeps its backend across config changes.
func DetectLexicalBackend(basePath string) LexicalBackend {
	if fileExists(basePath + ".db") {
		return LexicalBackendSQLite
	}
	if dirExists(basePath + ".bleve") {
		return LexicalBackendBleve
	}
	return ""
}

// GetLexicalIndexPath returns the full path to the lexical index
// file/directory based on the backend type.
func GetLexicalIndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, "lexical")
	switch backend {
	case string(LexicalBackendBleve):
		return basePath + ".bleve"
	default:
		return basePath + ".db"
	}
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
