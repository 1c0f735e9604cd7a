package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/peopledex/peopledex/internal/embed"
	"github.com/peopledex/peopledex/internal/store"
)

// Build progress stages, in order.
const (
	StageLoad  = "load"
	StageEmbed = "embed"
	StageIndex = "index"
	StageSave  = "save"
)

// Progress is one build progress update.
type Progress struct {
	Stage   string
	Current int
	Total   int
}

// ProgressFunc receives build progress updates. May be nil.
type ProgressFunc func(Progress)

func (fn ProgressFunc) report(stage string, current, total int) {
	if fn != nil {
		fn(Progress{Stage: stage, Current: current, Total: total})
	}
}

// BuildVectorIndex embeds every record and replaces the vector snapshot.
// Batches run in parallel bounded by embeddings.workers; insertion order in
// the new snapshot follows record order regardless of batch completion
// order. The finished snapshot is swapped in atomically, then persisted.
//
// Without an embedding provider the build is a no-op that leaves any
// existing snapshot untouched. Returns the number of vectors built.
func (d *Directory) BuildVectorIndex(ctx context.Context, progress ProgressFunc) (int, error) {
	if d.embedder == nil {
		slog.Info("vector_build_skipped", slog.String("reason", "no embedding provider configured"))
		return 0, nil
	}

	start := time.Now()

	progress.report(StageLoad, 0, 0)
	persons, err := d.people.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load people: %w", err)
	}

	ids := make([]int64, 0, len(persons))
	texts := make([]string, 0, len(persons))
	for _, p := range persons {
		if p.ID == 0 {
			slog.Warn("vector_build_skipping_record", slog.String("name", p.Name),
				slog.String("reason", "missing identifier"))
			continue
		}
		ids = append(ids, p.ID)
		texts = append(texts, embed.PrepareText(p.EmbeddingText(), d.cfg.Embeddings.MaxChars))
	}

	vectors, err := d.embedAll(ctx, texts, progress)
	if err != nil {
		return 0, err
	}

	progress.report(StageIndex, 0, len(ids))
	flat, err := store.NewFlatStore(store.FlatStoreConfig{
		Dimensions: d.embedder.Dimensions(),
		Provider:   d.embedder.ModelName(),
	})
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := flat.Add(id, vectors[i]); err != nil {
			return 0, fmt.Errorf("add vector for person %d: %w", id, err)
		}
		progress.report(StageIndex, i+1, len(ids))
	}

	d.vectors.Swap(flat)

	progress.report(StageSave, 0, 1)
	if err := flat.Save(d.SnapshotPath()); err != nil {
		// The in-memory snapshot serves queries; only durability failed
		return flat.Count(), fmt.Errorf("persist vector snapshot: %w", err)
	}
	progress.report(StageSave, 1, 1)

	slog.Info("vector_index_built",
		slog.Int("vectors", flat.Count()),
		slog.String("provider", d.embedder.ModelName()),
		slog.Duration("elapsed", time.Since(start)))

	return flat.Count(), nil
}

// embedAll embeds texts in parallel batches, preserving input order. Empty
// texts get the zero vector without touching the provider.
func (d *Directory) embedAll(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	dims := d.embedder.Dimensions()
	batchSize := d.cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	workers := d.cfg.Embeddings.Workers
	if workers <= 0 {
		workers = 1
	}

	vectors := make([][]float32, len(texts))

	// Indexes of texts that actually need a provider call
	pending := make([]int, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			vectors[i] = make([]float32, dims)
			continue
		}
		pending = append(pending, i)
	}

	progress.report(StageEmbed, 0, len(pending))

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for batchStart := 0; batchStart < len(pending); batchStart += batchSize {
		batch := pending[batchStart:min(batchStart+batchSize, len(pending))]

		g.Go(func() error {
			batchTexts := make([]string, len(batch))
			for i, idx := range batch {
				batchTexts[i] = texts[idx]
			}

			embedded, err := d.embedder.EmbedBatch(gctx, batchTexts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			if len(embedded) != len(batch) {
				return fmt.Errorf("embed batch returned %d vectors for %d texts", len(embedded), len(batch))
			}

			mu.Lock()
			for i, idx := range batch {
				vectors[idx] = embedded[i]
			}
			done += len(batch)
			progress.report(StageEmbed, done, len(pending))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
