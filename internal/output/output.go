// Package output prints the human-readable result lines of peopledex
// commands. Diagnostics go through internal/logging; this writer is only for
// what the user asked to see.
package output

import (
	"fmt"
	"io"
)

// Icons prefixed to status lines. Iconless lines are indented to align.
const (
	iconSuccess = "✅"
	iconWarning = "⚠️ "
)

// Writer prints aligned status lines to a single destination.
type Writer struct {
	w io.Writer
}

// New creates a Writer. Write failures on console output are ignored.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Status prints msg behind an icon, or indented when icon is empty.
func (o *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(o.w, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(o.w, "%s %s\n", icon, msg)
}

// Statusf is Status with Printf formatting.
func (o *Writer) Statusf(icon, format string, args ...any) {
	o.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a checkmarked line.
func (o *Writer) Success(msg string) {
	o.Status(iconSuccess, msg)
}

// Successf is Success with Printf formatting.
func (o *Writer) Successf(format string, args ...any) {
	o.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (o *Writer) Warning(msg string) {
	o.Status(iconWarning, msg)
}

// Warningf is Warning with Printf formatting.
func (o *Writer) Warningf(format string, args ...any) {
	o.Warning(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (o *Writer) Newline() {
	_, _ = fmt.Fprintln(o.w)
}
