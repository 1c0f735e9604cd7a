package people

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	pderrors "github.com/peopledex/peopledex/internal/errors"
)

// LoadFile reads a JSON corpus file holding a top-level array of person
// records. Corpus order is preserved. Individual records that fail to decode
// or carry no name are skipped with a warning rather than failing the load.
func LoadFile(path string) ([]Person, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pderrors.New(pderrors.ErrCodeFileNotFound,
				fmt.Sprintf("corpus file not found: %s", path), err).
				WithSuggestion("check the path or set storage.corpus_path in config")
		}
		return nil, pderrors.IOError(fmt.Sprintf("read corpus file: %s", path), err)
	}

	persons, err := Parse(data)
	if err != nil {
		return nil, err
	}

	slog.Debug("corpus file loaded",
		slog.String("path", path),
		slog.Int("records", len(persons)),
	)
	return persons, nil
}

// LoadFiles reads several corpus files and concatenates their records in
// argument order. Directories that split the corpus by person type (one file
// per type) load through this path.
func LoadFiles(paths ...string) ([]Person, error) {
	var all []Person
	for _, path := range paths {
		persons, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, persons...)
	}
	return all, nil
}

// Parse decodes a corpus document. The document must be a JSON array; each
// element is decoded independently so one malformed record cannot poison the
// rest of the corpus.
func Parse(data []byte) ([]Person, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, pderrors.New(pderrors.ErrCodeInvalidInput,
			"corpus is not a JSON array of person records", err)
	}

	persons := make([]Person, 0, len(raw))
	for i, msg := range raw {
		var p Person
		if err := json.Unmarshal(msg, &p); err != nil {
			slog.Warn("skipping malformed corpus record",
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if strings.TrimSpace(p.Name) == "" {
			slog.Warn("skipping corpus record without a name",
				slog.Int("position", i),
			)
			continue
		}
		persons = append(persons, p)
	}
	return persons, nil
}
