package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStyles_RenderText(t *testing.T) {
	styles := DefaultStyles()

	// Rendered output must carry the text through regardless of the
	// terminal's color support.
	assert.Contains(t, styles.Header.Render("Peopledex"), "Peopledex")
	assert.Contains(t, styles.Label.Render("Provider"), "Provider")
	assert.Contains(t, styles.Error.Render("snapshot missing"), "snapshot missing")
}

func TestDefaultStyles_StageIndicators(t *testing.T) {
	styles := DefaultStyles()

	assert.Contains(t, styles.Active.Render("●"), "●")
	assert.Contains(t, styles.Dim.Render("○"), "○")
}

func TestNoColorStyles_PlainPassthrough(t *testing.T) {
	styles := NoColorStyles()

	// Without color the styles must be pure passthrough.
	assert.Equal(t, "42 people", styles.Success.Render("42 people"))
	assert.Equal(t, "embedding", styles.Stage.Render("embedding"))
	assert.Equal(t, "", styles.Warning.Render(""))
}

func TestGetStyles(t *testing.T) {
	plain := GetStyles(true)
	assert.Equal(t, "indexed", plain.Success.Render("indexed"))

	colored := GetStyles(false)
	assert.Contains(t, colored.Success.Render("indexed"), "indexed")
}
