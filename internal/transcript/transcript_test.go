package transcript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(t *Transcript, s string) {
	for _, r := range s {
		t.Write(r)
	}
}

func TestWrite_FinalizesOnNewline(t *testing.T) {
	tr := New()
	for _, r := range "  hello  " {
		_, done := tr.Write(r)
		assert.False(t, done)
	}
	line, done := tr.Write('\n')
	require.True(t, done)
	assert.Equal(t, "hello", line)
	assert.Equal(t, []string{"hello"}, tr.Lines())
	assert.Empty(t, tr.Partial())
}

func TestRender_IncludesPartialLine(t *testing.T) {
	tr := New()
	writeString(tr, "one\ntwo\nthr")
	got := tr.Render("Logs:\n")
	assert.Equal(t, "Logs:\n\none\ntwo\nthr", got)
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "Head\n", New().Render("Head"))
}

func TestClose_AppendsReasonsAfterLines(t *testing.T) {
	tr := New()
	writeString(tr, "line\ntail")
	tr.Close([]string{"[Error] Error log detected.", "[Exit] Assistant exited with code 1."})

	assert.Equal(t, []string{
		"line",
		"tail",
		QuitHeader,
		"[Error] Error log detected.",
		"[Exit] Assistant exited with code 1.",
	}, tr.Lines())
}

func TestFormat_NoElisionAtLimit(t *testing.T) {
	content := numbered(MaxLines)
	got := Format("H", content)
	assert.NotContains(t, got, Elision)
	assert.Len(t, strings.Split(got, "\n"), MaxLines+1)
}

func TestFormat_ElidesMiddle(t *testing.T) {
	for _, n := range []int{MaxLines + 1, 250, 1000} {
		content := numbered(n)
		rows := strings.Split(Format("H", content), "\n")

		require.Len(t, rows, 1+2*KeepLines+1, "n=%d", n)
		assert.Equal(t, "H", rows[0])
		assert.Equal(t, content[:KeepLines], rows[1:1+KeepLines])
		assert.Equal(t, Elision, rows[1+KeepLines])
		assert.Equal(t, content[n-KeepLines:], rows[2+KeepLines:])
	}
}

func TestRender_CountsPartialLine(t *testing.T) {
	tr := New()
	for i := range MaxLines {
		writeString(tr, fmt.Sprintf("line %d\n", i))
	}
	// 100 finalized lines plus the (empty) partial row exceed the limit.
	got := tr.Render("H")
	assert.Equal(t, 1, strings.Count(got, Elision))
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("line %d", i)
	}
	return out
}
