package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_ReturnsNilForNonTTY(t *testing.T) {
	// Given: a non-TTY buffer
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf)

	// When: creating TUI renderer
	r, err := NewTUIRenderer(cfg)

	// Then: returns error (can't create TUI for non-TTY)
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestBuildModel_InitialView(t *testing.T) {
	// Given: a new build model with properly initialized tracker
	tracker := NewProgressTracker()
	model := newBuildModel(tracker, "")

	// When: getting initial view
	view := model.View()

	// Then: view contains stage indicators
	assert.Contains(t, view, "Load")
}

func TestBuildModel_StageIndicators(t *testing.T) {
	// Given: a model at different stages
	tracker := NewProgressTracker()
	model := newBuildModel(tracker, "")

	// When: rendering at loading stage
	tracker.SetStage(StageLoading, 100)
	view := model.View()

	// Then: all stage indicators are shown (short names)
	assert.Contains(t, view, "Load")
	assert.Contains(t, view, "Embed")
	assert.Contains(t, view, "Index")
	assert.Contains(t, view, "Save")
}

func TestBuildModel_ProgressDisplay(t *testing.T) {
	// Given: a model with progress
	tracker := NewProgressTracker()
	tracker.SetStage(StageLoading, 100)
	tracker.Update(50, "Ada Lin")

	model := newBuildModel(tracker, "")

	// When: rendering view
	view := model.View()

	// Then: progress is shown
	assert.Contains(t, view, "50")
	assert.Contains(t, view, "100")
}

func TestBuildModel_ItemDisplay(t *testing.T) {
	// Given: a model with a current record
	tracker := NewProgressTracker()
	tracker.SetStage(StageEmbedding, 100)
	tracker.Update(1, "Bo Chen")

	model := newBuildModel(tracker, "")

	// When: rendering view
	view := model.View()

	// Then: record name is shown
	assert.Contains(t, view, "Bo Chen")
}

func TestBuildModel_ErrorDisplay(t *testing.T) {
	// Given: a model with errors
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{
		Item:   "Ada Lin",
		Err:    assert.AnError,
		IsWarn: false,
	})
	tracker.AddError(ErrorEvent{
		Item:   "Carla Diaz",
		Err:    assert.AnError,
		IsWarn: true,
	})

	model := newBuildModel(tracker, "")

	// When: rendering view
	view := model.View()

	// Then: error count is shown
	assert.Contains(t, view, "1")
}

func TestBuildModel_CompletionState(t *testing.T) {
	// Given: a completed model
	tracker := NewProgressTracker()
	tracker.SetStage(StageComplete, 0)

	model := newBuildModel(tracker, "")
	model.complete = true
	model.stats = CompletionStats{
		People:  100,
		Vectors: 100,
		Stages: StageTimings{
			Load:  2 * time.Second,
			Embed: 30 * time.Second,
		},
		Embedder: EmbedderInfo{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536},
	}

	// When: rendering view
	view := model.View()

	// Then: shows completion with the stage breakdown and provider
	assert.Contains(t, view, "Complete")
	assert.Contains(t, view, "Embed")
	assert.Contains(t, view, "openai")
}

func TestTruncateItem_Short(t *testing.T) {
	// Given: a short item
	item := "Ada Lin"

	// When: truncating
	result := truncateItem(item, 50)

	// Then: unchanged
	assert.Equal(t, item, result)
}

func TestTruncateItem_Long(t *testing.T) {
	// Given: a long item
	item := "Professor Bartholomew Fitzgerald-Montgomery III, Senior Fellow"

	// When: truncating to 30 chars
	result := truncateItem(item, 30)

	// Then: truncated with ellipsis
	assert.LessOrEqual(t, len(result), 30)
	assert.Contains(t, result, "...")
}

func TestTruncateItem_Empty(t *testing.T) {
	// Given: empty item
	item := ""

	// When: truncating
	result := truncateItem(item, 50)

	// Then: returns empty
	assert.Equal(t, "", result)
}

func TestTUIRenderer_InterfaceCompliance(t *testing.T) {
	// Ensure TUIRenderer implements Renderer
	var _ Renderer = (*TUIRenderer)(nil)
}
