package people

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pderrors "github.com/peopledex/peopledex/internal/errors"
)

func writeCorpus(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	// Given: a corpus file with two records
	path := writeCorpus(t, "people.json", `[
		{"id": 1, "name": "Ada Lin", "title": "Professor", "unit": "Finance",
		 "type": "faculty", "tags": [{"name": "Fintech", "category": "industry"}]},
		{"id": 2, "name": "Bo Chen", "title": "Executive Fellow", "type": "fellow",
		 "tags": "Healthcare, Biotech"}
	]`)

	// When: loading the file
	persons, err := LoadFile(path)

	// Then: both records load in corpus order with canonical tags
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, int64(1), persons[0].ID)
	assert.Equal(t, "Ada Lin", persons[0].Name)
	assert.Equal(t, []Tag{{Name: "Fintech", Category: "industry"}}, persons[0].Tags)
	assert.Equal(t, "Bo Chen", persons[1].Name)
	assert.Equal(t, []Tag{{Name: "Healthcare"}, {Name: "Biotech"}}, persons[1].Tags)
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
	assert.Equal(t, pderrors.ErrCodeFileNotFound, pderrors.GetCode(err))
}

func TestLoadFile_EmptyArray(t *testing.T) {
	path := writeCorpus(t, "people.json", `[]`)

	persons, err := LoadFile(path)

	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestLoadFiles_ConcatenatesInOrder(t *testing.T) {
	// Given: a corpus split across two files by person type
	faculty := writeCorpus(t, "faculty.json", `[{"name": "Ada Lin", "type": "faculty"}]`)
	fellows := writeCorpus(t, "fellows.json", `[{"name": "Bo Chen", "type": "fellow"}]`)

	// When: loading both
	persons, err := LoadFiles(faculty, fellows)

	// Then: records appear in argument order
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "Ada Lin", persons[0].Name)
	assert.Equal(t, "Bo Chen", persons[1].Name)
}

func TestLoadFiles_FailsOnMissingFile(t *testing.T) {
	faculty := writeCorpus(t, "faculty.json", `[{"name": "Ada Lin"}]`)

	_, err := LoadFiles(faculty, filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
}

func TestParse_NotAnArray(t *testing.T) {
	_, err := Parse([]byte(`{"name": "Ada Lin"}`))

	require.Error(t, err)
	assert.Equal(t, pderrors.ErrCodeInvalidInput, pderrors.GetCode(err))
}

func TestParse_SkipsNamelessRecords(t *testing.T) {
	// Given: a corpus with one nameless and one blank-named record
	persons, err := Parse([]byte(`[
		{"title": "Professor"},
		{"name": "   "},
		{"name": "Ada Lin"}
	]`))

	// Then: only the named record survives
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "Ada Lin", persons[0].Name)
}

func TestParse_SkipsMalformedRecords(t *testing.T) {
	// Given: one element that is not a person object
	persons, err := Parse([]byte(`[
		{"name": "Ada Lin"},
		"not a person",
		{"name": "Bo Chen"}
	]`))

	// Then: the malformed element is dropped, the rest load
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "Ada Lin", persons[0].Name)
	assert.Equal(t, "Bo Chen", persons[1].Name)
}

func TestParse_SkipsRecordWithBadTagShape(t *testing.T) {
	persons, err := Parse([]byte(`[
		{"name": "Ada Lin", "tags": 42},
		{"name": "Bo Chen"}
	]`))

	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "Bo Chen", persons[0].Name)
}
