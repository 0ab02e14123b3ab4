// Package transcript records a supervised run's console output as finalized
// lines plus one partial line, and renders it with a bounded size.
package transcript

import (
	"strings"
	"sync"
)

// Display bounds. A rendering keeps the first and last KeepLines lines when
// the content exceeds MaxLines.
const (
	MaxLines  = 100
	KeepLines = 50
	Elision   = "... lines trimmed ..."
)

// QuitHeader introduces the quit reasons appended when a run ends.
const QuitHeader = "**Quit reason(s):**"

// Transcript is safe for one writer and any number of concurrent readers.
type Transcript struct {
	mu      sync.RWMutex
	lines   []string
	partial strings.Builder
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Write appends one decoded character to the partial line. A newline
// finalizes the partial line (trimmed) and returns it with done set.
func (t *Transcript) Write(r rune) (line string, done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial.WriteRune(r)
	if r != '\n' {
		return "", false
	}
	return t.finalizeLocked(), true
}

// Partial returns the current partial line, untrimmed.
func (t *Transcript) Partial() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.partial.String()
}

// Flush finalizes the partial line even when it has no newline, and returns
// the trimmed text. An empty partial line still produces an (empty) line.
func (t *Transcript) Flush() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalizeLocked()
}

// Close flushes the partial line and appends the quit reasons block.
func (t *Transcript) Close(reasons []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalizeLocked()
	t.lines = append(t.lines, QuitHeader)
	t.lines = append(t.lines, reasons...)
}

// Lines returns a copy of the finalized lines.
func (t *Transcript) Lines() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.lines...)
}

// Render returns head followed by the finalized lines and the trimmed
// partial line, one per row. Content over MaxLines rows is elided in the
// middle.
func (t *Transcript) Render(head string) string {
	t.mu.RLock()
	content := make([]string, 0, len(t.lines)+1)
	content = append(content, t.lines...)
	content = append(content, strings.TrimSpace(t.partial.String()))
	t.mu.RUnlock()

	return Format(head, content)
}

// Format joins head and content rows, eliding the middle of content when it
// has more than MaxLines rows.
func Format(head string, content []string) string {
	if len(content) > MaxLines {
		trimmed := make([]string, 0, 2*KeepLines+1)
		trimmed = append(trimmed, content[:KeepLines]...)
		trimmed = append(trimmed, Elision)
		trimmed = append(trimmed, content[len(content)-KeepLines:]...)
		content = trimmed
	}
	rows := make([]string, 0, len(content)+1)
	rows = append(rows, head)
	rows = append(rows, content...)
	return strings.Join(rows, "\n")
}

func (t *Transcript) finalizeLocked() string {
	line := strings.TrimSpace(t.partial.String())
	t.lines = append(t.lines, line)
	t.partial.Reset()
	return line
}
