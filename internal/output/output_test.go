package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer over a buffer
	var buf bytes.Buffer
	o := New(&buf)

	// When: printing a status line with an icon
	o.Status("📇", "loading corpus")

	// Then: icon and message appear on one line
	assert.Equal(t, "📇 loading corpus\n", buf.String())
}

func TestWriter_Status_EmptyIconIndents(t *testing.T) {
	// Given: a writer over a buffer
	var buf bytes.Buffer
	o := New(&buf)

	// When: printing a status line without an icon
	o.Status("", "2 people skipped")

	// Then: the line is indented to align with iconed lines
	assert.Equal(t, "   2 people skipped\n", buf.String())
}

func TestWriter_Successf_FormatsMessage(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Successf("Loaded %d people from %s", 42, "people.json")

	assert.Contains(t, buf.String(), "✅ Loaded 42 people from people.json")
}

func TestWriter_Warningf_FormatsMessage(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Warningf("lexical index has %d entries but corpus has %d", 3, 5)

	assert.Contains(t, buf.String(), "⚠️")
	assert.Contains(t, buf.String(), "lexical index has 3 entries but corpus has 5")
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Newline()

	assert.Equal(t, "\n", buf.String())
}

func TestWriter_Statusf_FormatsMessage(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Statusf("🔎", "searching %q", "pricing")

	assert.Equal(t, "🔎 searching \"pricing\"\n", buf.String())
}
