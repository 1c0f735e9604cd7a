package store

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// FlatStoreConfig configures a flat vector store.
type FlatStoreConfig struct {
	// Dimensions is the embedding dimension every vector must have.
	Dimensions int
	// Provider tags the snapshot with the embedding provider that built it,
	// so a reload with a different provider is refused.
	Provider string
	// KeepRaw retains unnormalized vectors and writes them to a debug-only
	// snapshot file alongside the normalized matrix.
	KeepRaw bool
}

// FlatStore is an exact nearest-neighbor vector store: unit-normalized
// float32 vectors in insertion order, searched by brute-force inner product.
// The corpus is small enough that a scan beats any approximate structure and
// keeps scores exact.
type FlatStore struct {
	mu      sync.RWMutex
	config  FlatStoreConfig
	ids     []int64
	vectors [][]float32 // unit-normalized, positionally paired with ids
	raw     [][]float32 // only populated when KeepRaw is set
	closed  bool
}

// flatMetadata is the snapshot companion file: the ordered identifier list
// and the build parameters. It must agree with the vector matrix in length.
type flatMetadata struct {
	IDs        []int64
	Provider   string
	Dimensions int
	Count      int
}

// NewFlatStore creates an empty flat vector store.
func NewFlatStore(cfg FlatStoreConfig) (*FlatStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	return &FlatStore{config: cfg}, nil
}

// Add normalizes vec to unit length and appends it under id, preserving
// insertion order. The input slice is not modified.
func (s *FlatStore) Add(id int64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if len(vec) != s.config.Dimensions {
		return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(vec)}
	}

	if s.config.KeepRaw {
		rawCopy := make([]float32, len(vec))
		copy(rawCopy, vec)
		s.raw = append(s.raw, rawCopy)
	}

	s.ids = append(s.ids, id)
	s.vectors = append(s.vectors, NormalizeVector(vec))
	return nil
}

// Search normalizes query and returns the top k stored vectors by descending
// inner product. k is clamped to the stored count; ties keep insertion order.
// A zero query (no signal) yields no results.
func (s *FlatStore) Search(query []float32, k int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || len(s.vectors) == 0 {
		return []VectorResult{}, nil
	}

	q := NormalizeVector(query)
	if isZeroVector(q) {
		return []VectorResult{}, nil
	}

	results := make([]VectorResult, len(s.vectors))
	for i, vec := range s.vectors {
		results[i] = VectorResult{ID: s.ids[i], Score: dotProduct(q, vec)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// IDs returns the stored identifiers in insertion order.
func (s *FlatStore) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, len(s.ids))
	copy(ids, s.ids)
	return ids
}

// Count returns the number of stored vectors.
func (s *FlatStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimensions returns the configured embedding dimension.
func (s *FlatStore) Dimensions() int {
	return s.config.Dimensions
}

// Provider returns the embedding provider tag recorded at build time.
func (s *FlatStore) Provider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Provider
}

// Save persists the snapshot: the normalized matrix at path, the identifier
// mapping at path+".meta", and (with KeepRaw) raw vectors at RawPath(path).
// The write holds a file lock and goes through temp files renamed into place.
func (s *FlatStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire snapshot lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release snapshot lock", slog.String("error", err.Error()))
		}
	}()

	if err := writeMatrix(path, s.vectors, s.config.Dimensions); err != nil {
		return fmt.Errorf("failed to write vector matrix: %w", err)
	}

	meta := flatMetadata{
		IDs:        s.ids,
		Provider:   s.config.Provider,
		Dimensions: s.config.Dimensions,
		Count:      len(s.vectors),
	}
	if err := writeMetadata(path+".meta", meta); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if s.config.KeepRaw && len(s.raw) > 0 {
		if err := writeMatrix(RawPath(path), s.raw, s.config.Dimensions); err != nil {
			// Debug artifact only; the snapshot itself is complete
			slog.Warn("failed to write raw embeddings", slog.String("error", err.Error()))
		}
	}

	return nil
}

// Load reads a snapshot written by Save. It fails closed: a missing,
// unreadable, or length-mismatched matrix or metadata file leaves the store
// unchanged and returns an error, never a partial load.
func (s *FlatStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("failed to acquire snapshot lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release snapshot lock", slog.String("error", err.Error()))
		}
	}()

	meta, err := readMetadata(path + ".meta")
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	if meta.Dimensions != s.config.Dimensions {
		return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: meta.Dimensions}
	}
	if len(meta.IDs) != meta.Count {
		return fmt.Errorf("snapshot metadata inconsistent: %d ids for %d vectors", len(meta.IDs), meta.Count)
	}

	vectors, err := readMatrix(path, meta.Count, meta.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to load vector matrix: %w", err)
	}

	s.ids = meta.IDs
	s.vectors = vectors
	s.raw = nil
	s.config.Provider = meta.Provider
	return nil
}

// Close releases resources. Subsequent operations fail.
func (s *FlatStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.ids = nil
	s.vectors = nil
	s.raw = nil
	return nil
}

// RawPath returns the debug-only raw embeddings path for a snapshot path.
func RawPath(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + ".raw" + ext
}

// ReadSnapshotInfo reads build parameters from an existing snapshot's
// metadata without loading the matrix. Returns (0, "", nil) if no snapshot
// exists (fresh start).
func ReadSnapshotInfo(path string) (dimensions int, provider string, err error) {
	meta, err := readMetadata(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, "", nil
		}
		return 0, "", err
	}
	return meta.Dimensions, meta.Provider, nil
}

// writeMatrix writes vectors as little-endian float32 rows to a temp file
// and renames it into place.
func writeMatrix(path string, vectors [][]float32, dimensions int) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp matrix file: %w", err)
	}

	for _, vec := range vectors {
		if err := binary.Write(file, binary.LittleEndian, vec); err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write vector row: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close matrix file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// readMatrix reads count rows of dimensions float32 values. The file size
// must match exactly; anything else is treated as corruption.
func readMatrix(path string, count, dimensions int) ([][]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat matrix file: %w", err)
	}
	expected := int64(count) * int64(dimensions) * 4
	if info.Size() != expected {
		return nil, fmt.Errorf("matrix file size %d does not match %d vectors of dimension %d", info.Size(), count, dimensions)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		row := make([]float32, dimensions)
		if err := binary.Read(file, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("read vector row %d: %w", i, err)
		}
		vectors[i] = row
	}
	return vectors, nil
}

// writeMetadata writes the gob metadata file via temp file + rename.
func writeMetadata(path string, meta flatMetadata) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func readMetadata(path string) (flatMetadata, error) {
	var meta flatMetadata

	file, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

// VectorHandle is the swappable reference to the active vector store. A
// rebuild produces a fresh store and swaps it in atomically; readers of the
// old store are never blocked. An empty handle means semantic search is
// unavailable and every query returns no results.
type VectorHandle struct {
	ptr atomic.Pointer[FlatStore]
}

// NewVectorHandle creates an empty handle.
func NewVectorHandle() *VectorHandle {
	return &VectorHandle{}
}

// Swap installs store as the active snapshot and returns the previous one
// (nil if the handle was empty).
func (h *VectorHandle) Swap(store *FlatStore) *FlatStore {
	return h.ptr.Swap(store)
}

// Get returns the active store, or nil when no snapshot is loaded.
func (h *VectorHandle) Get() *FlatStore {
	return h.ptr.Load()
}

// Ready reports whether a snapshot with at least one vector is active.
func (h *VectorHandle) Ready() bool {
	s := h.ptr.Load()
	return s != nil && s.Count() > 0
}

// Count returns the active snapshot's vector count, 0 when unloaded.
func (h *VectorHandle) Count() int {
	s := h.ptr.Load()
	if s == nil {
		return 0
	}
	return s.Count()
}

// Search queries the active snapshot. An empty handle returns no results,
// never an error: this is the degradation path when the snapshot is absent.
func (h *VectorHandle) Search(query []float32, k int) ([]VectorResult, error) {
	s := h.ptr.Load()
	if s == nil {
		return []VectorResult{}, nil
	}
	return s.Search(query, k)
}

// NormalizeVector returns a unit-length copy of v. Accumulation is in
// float64 so short vectors with large components keep precision. The zero
// vector is returned as a zero copy (no signal stays no signal).
func NormalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	out := make([]float32, len(v))
	if sumSquares == 0 {
		return out
	}

	invMagnitude := 1.0 / math.Sqrt(sumSquares)
	for i, val := range v {
		out[i] = float32(float64(val) * invMagnitude)
	}
	return out
}

func isZeroVector(v []float32) bool {
	for _, val := range v {
		if val != 0 {
			return false
		}
	}
	return true
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
