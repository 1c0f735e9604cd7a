package store

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlatStore(t *testing.T, dims int) *FlatStore {
	t.Helper()
	s, err := NewFlatStore(FlatStoreConfig{Dimensions: dims, Provider: "static"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNormalizeVector_UnitNorm(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{name: "simple", vec: []float32{3, 4}},
		{name: "negative components", vec: []float32{-1, 2, -3}},
		{name: "already normalized", vec: []float32{1, 0, 0}},
		{name: "tiny values", vec: []float32{1e-6, 1e-6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.vec)

			var norm float64
			for _, v := range got {
				norm += float64(v) * float64(v)
			}
			assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
		})
	}
}

func TestNormalizeVector_ZeroStaysZero(t *testing.T) {
	got := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, got)
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	in := []float32{3, 4}
	_ = NormalizeVector(in)
	assert.Equal(t, []float32{3, 4}, in)
}

func TestFlatStore_AddValidatesDimensions(t *testing.T) {
	s := newTestFlatStore(t, 3)

	err := s.Add(1, []float32{1, 2})

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)
}

func TestFlatStore_SearchOrdersByScore(t *testing.T) {
	// Given: three vectors at different angles from the query direction
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Add(2, []float32{0, 1}))
	require.NoError(t, s.Add(3, []float32{1, 1}))

	// When: searching along the x axis
	results, err := s.Search([]float32{10, 0}, 3)
	require.NoError(t, err)

	// Then: exact match first, diagonal second, orthogonal last
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(3), results[1].ID)
	assert.Equal(t, int64(2), results[2].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.InDelta(t, 0.0, results[2].Score, 1e-5)
}

func TestFlatStore_SearchClampsK(t *testing.T) {
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Add(2, []float32{0, 1}))

	results, err := s.Search([]float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatStore_SearchTiesKeepInsertionOrder(t *testing.T) {
	// Given: identical vectors inserted in a known order
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(5, []float32{1, 0}))
	require.NoError(t, s.Add(2, []float32{1, 0}))
	require.NoError(t, s.Add(9, []float32{1, 0}))

	results, err := s.Search([]float32{1, 0}, 3)
	require.NoError(t, err)

	// Then: ties resolve to insertion order, not identifier order
	require.Len(t, results, 3)
	assert.Equal(t, int64(5), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(9), results[2].ID)
}

func TestFlatStore_SearchZeroQueryReturnsEmpty(t *testing.T) {
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))

	results, err := s.Search([]float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatStore_SearchEmptyStore(t *testing.T) {
	s := newTestFlatStore(t, 2)

	results, err := s.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatStore_SaveLoadRoundTrip(t *testing.T) {
	// Given: a built and persisted store
	path := filepath.Join(t.TempDir(), "vectors.dat")
	s := newTestFlatStore(t, 3)
	require.NoError(t, s.Add(1, []float32{1, 2, 3}))
	require.NoError(t, s.Add(2, []float32{-1, 0, 1}))
	require.NoError(t, s.Add(3, []float32{0.5, 0.5, 0}))
	require.NoError(t, s.Save(path))

	query := []float32{1, 1, 1}
	want, err := s.Search(query, 3)
	require.NoError(t, err)

	// When: a fresh instance loads the snapshot
	loaded := newTestFlatStore(t, 3)
	require.NoError(t, loaded.Load(path))

	// Then: search results are identical in order and score
	got, err := loaded.Search(query, 3)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
	}
	assert.Equal(t, s.IDs(), loaded.IDs())
	assert.Equal(t, "static", loaded.Provider())
}

func TestFlatStore_LoadFailsClosedOnMissingMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.dat")
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Save(path))
	require.NoError(t, os.Remove(path))

	loaded := newTestFlatStore(t, 2)
	err := loaded.Load(path)

	require.Error(t, err)
	assert.Equal(t, 0, loaded.Count())
}

func TestFlatStore_LoadFailsClosedOnMissingMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.dat")
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Save(path))
	require.NoError(t, os.Remove(path+".meta"))

	loaded := newTestFlatStore(t, 2)
	err := loaded.Load(path)

	require.Error(t, err)
	assert.Equal(t, 0, loaded.Count())
}

func TestFlatStore_LoadFailsClosedOnTruncatedMatrix(t *testing.T) {
	// Given: a snapshot whose matrix file was truncated after the fact
	path := filepath.Join(t.TempDir(), "vectors.dat")
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Add(2, []float32{0, 1}))
	require.NoError(t, s.Save(path))
	require.NoError(t, os.Truncate(path, 4))

	loaded := newTestFlatStore(t, 2)
	err := loaded.Load(path)

	// Then: the length mismatch is detected and nothing partial is loaded
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
	assert.Equal(t, 0, loaded.Count())
}

func TestFlatStore_LoadRejectsDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.dat")
	s := newTestFlatStore(t, 2)
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Save(path))

	loaded := newTestFlatStore(t, 4)
	err := loaded.Load(path)

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
}

func TestFlatStore_KeepRawWritesDebugFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.dat")
	s, err := NewFlatStore(FlatStoreConfig{Dimensions: 2, Provider: "static", KeepRaw: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(1, []float32{3, 4}))
	require.NoError(t, s.Save(path))

	assert.FileExists(t, RawPath(path))
}

func TestReadSnapshotInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.dat")

	// Fresh start: no snapshot yet
	dims, provider, err := ReadSnapshotInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
	assert.Equal(t, "", provider)

	s, err := NewFlatStore(FlatStoreConfig{Dimensions: 2, Provider: "voyage"})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Save(path))

	dims, provider, err = ReadSnapshotInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dims)
	assert.Equal(t, "voyage", provider)
}

func TestVectorHandle_EmptySearchesReturnEmpty(t *testing.T) {
	h := NewVectorHandle()

	assert.False(t, h.Ready())
	assert.Equal(t, 0, h.Count())

	results, err := h.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorHandle_SwapActivatesNewSnapshot(t *testing.T) {
	// Given: an active snapshot
	h := NewVectorHandle()
	old := newTestFlatStore(t, 2)
	require.NoError(t, old.Add(1, []float32{1, 0}))
	h.Swap(old)
	require.True(t, h.Ready())

	// When: a rebuild swaps in a fresh snapshot
	fresh := newTestFlatStore(t, 2)
	require.NoError(t, fresh.Add(2, []float32{0, 1}))
	prev := h.Swap(fresh)

	// Then: readers see only the new snapshot; the old one is returned
	assert.Same(t, old, prev)
	results, err := h.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}
