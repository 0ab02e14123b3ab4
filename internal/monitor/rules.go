package monitor

import "strings"

// ClosePrompt is printed by the assistant when it finishes and waits for a
// key press before closing its console window.
const ClosePrompt = "按回车键关闭窗口. . ."

// ErrorRule decides whether a finalized output line reports a fatal error.
// The assistant has no structured error channel, so this is a substring
// match on its log format with an allow-list of known benign sources.
type ErrorRule struct {
	Marker string
	Benign []string
}

// DefaultErrorRule matches "ERROR" lines except those logged by simul.py,
// whose errors are retried internally.
func DefaultErrorRule() ErrorRule {
	return ErrorRule{Marker: "ERROR", Benign: []string{"simul.py:"}}
}

// With returns a copy of r that also treats lines containing any of benign
// as harmless.
func (r ErrorRule) With(benign ...string) ErrorRule {
	out := ErrorRule{Marker: r.Marker}
	out.Benign = append(append(out.Benign, r.Benign...), benign...)
	return out
}

// Match reports whether line is a fatal error line.
func (r ErrorRule) Match(line string) bool {
	if r.Marker == "" || !strings.Contains(line, r.Marker) {
		return false
	}
	for _, b := range r.Benign {
		if b != "" && strings.Contains(line, b) {
			return false
		}
	}
	return true
}
