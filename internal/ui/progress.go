package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds the shared progress state for an index build.
// Both renderers read from it; the indexing goroutine writes to it.
// Safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentItem string
	startTime   time.Time
	stageStart  time.Time
	timings     StageTimings
	errors      []ErrorEvent
	warnings    []ErrorEvent

	// lastETA feeds exponential smoothing so the estimate does not jump
	// around between embedding batches.
	lastETA time.Duration
}

// ProgressStats is a point-in-time snapshot of the tracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentItem string
	ErrorCount  int
	WarnCount   int
}

// NewProgressTracker creates a tracker starting at the loading stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageLoading,
		startTime:  now,
		stageStart: now,
	}
}

// SetStage transitions to a new stage, recording how long the previous
// stage took.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.recordStageTime(now)

	p.stage = stage
	p.total = total
	p.current = 0
	p.currentItem = ""
	p.stageStart = now
	p.lastETA = 0
}

// recordStageTime accumulates elapsed time for the stage being left.
// Must be called with the lock held.
func (p *ProgressTracker) recordStageTime(now time.Time) {
	elapsed := now.Sub(p.stageStart)
	switch p.stage {
	case StageLoading:
		p.timings.Load += elapsed
	case StageEmbedding:
		p.timings.Embed += elapsed
	case StageIndexing:
		p.timings.Index += elapsed
	case StageSaving:
		p.timings.Save += elapsed
	}
}

// Update advances progress within the current stage.
func (p *ProgressTracker) Update(current int, item string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if item != "" {
		p.currentItem = item
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns completion of the current stage in [0.0, 1.0].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return clampProgress(p.current, p.total)
}

func clampProgress(current, total int) float64 {
	if total == 0 {
		return 0.0
	}
	progress := float64(current) / float64(total)
	if progress > 1.0 {
		return 1.0
	}
	return progress
}

// ETA estimates the remaining time for the current stage.
// Takes the write lock: smoothing updates lastETA.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns a snapshot of the current state.
// Takes the write lock: smoothing updates lastETA.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    clampProgress(p.current, p.total),
		ETA:         p.calculateETA(),
		CurrentItem: p.currentItem,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
	}
}

// Timings returns the per-stage durations recorded so far, including the
// time spent in the current stage.
func (p *ProgressTracker) Timings() StageTimings {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t := p.timings
	elapsed := time.Since(p.stageStart)
	switch p.stage {
	case StageLoading:
		t.Load += elapsed
	case StageEmbedding:
		t.Embed += elapsed
	case StageIndexing:
		t.Index += elapsed
	case StageSaving:
		t.Save += elapsed
	}
	return t
}

// etaSmoothingFactor weights new estimates: 0.3 new + 0.7 previous.
const etaSmoothingFactor = 0.3

// calculateETA estimates remaining stage time with exponential smoothing.
// Must be called with the write lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	progress := float64(p.current) / float64(p.total)
	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	rawRemaining := time.Duration(float64(elapsed)/progress) - elapsed
	if rawRemaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed
	return smoothed
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}
