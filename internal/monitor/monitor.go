// Package monitor watches a supervised process's console output. A relay
// feeds decoded characters into a queue; the monitor rebuilds lines from it,
// applies the error and prompt rules and the inactivity timeout, and decides
// when supervision ends.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hsr-assistant/hsrdriver/internal/transcript"
)

// Defaults for the monitor's timing.
const (
	DefaultIdleTimeout = 900 * time.Second
	ExitCodeWait       = time.Second
)

// State is a monitor state. TimedOut, ErrorDetected and EOFReached are
// terminal.
type State int

const (
	AwaitingOutput State = iota
	Accumulating
	LineComplete
	TimedOut
	ErrorDetected
	EOFReached
)

func (s State) String() string {
	switch s {
	case AwaitingOutput:
		return "awaiting_output"
	case Accumulating:
		return "accumulating"
	case LineComplete:
		return "line_complete"
	case TimedOut:
		return "timed_out"
	case ErrorDetected:
		return "error_detected"
	case EOFReached:
		return "eof_reached"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends monitoring.
func (s State) Terminal() bool {
	return s == TimedOut || s == ErrorDetected || s == EOFReached
}

// Process is the supervised process as seen by the monitor.
type Process interface {
	// Stdin is the process's standard input.
	Stdin() io.Writer
	// ExitCode waits up to within for the process to exit.
	ExitCode(within time.Duration) (int, bool)
}

// Result is the outcome of a completed watch.
type Result struct {
	State   State
	Reasons []string
	// Output is the rendered transcript, quit reasons included.
	Output string
}

// Monitor consumes one run's character queue. The zero value is not usable;
// Queue, Transcript and Process must be set.
type Monitor struct {
	Queue       *Queue
	Transcript  *transcript.Transcript
	Process     Process
	IdleTimeout time.Duration
	Rule        ErrorRule
	Prompt      string
	Logger      *slog.Logger
}

// Watch runs the state machine until a terminal state is reached. It returns
// ctx.Err() without rendering when ctx is cancelled first.
func (m *Monitor) Watch(ctx context.Context) (Result, error) {
	log := m.logger()
	state := AwaitingOutput
	var reasons []string

	for !state.Terminal() {
		it, err := m.Queue.Pull(ctx, m.IdleTimeout)
		switch {
		case err == ErrIdle:
			log.InfoContext(ctx, "no output, stopping monitoring", "timeout", m.IdleTimeout)
			reasons = append(reasons, fmt.Sprintf("[Timeout] No output for %s seconds.", seconds(m.IdleTimeout)))
			state = TimedOut
		case err != nil:
			return Result{}, err
		case it.EOF:
			log.InfoContext(ctx, "end of output, stopping monitoring")
			state = EOFReached
		default:
			state = m.consume(ctx, it.Char)
			if state == ErrorDetected {
				log.InfoContext(ctx, "error log detected, stopping monitoring")
				reasons = append(reasons, "[Error] Error log detected.")
			}
		}
	}

	if code, ok := m.Process.ExitCode(ExitCodeWait); ok {
		reasons = append(reasons, fmt.Sprintf("[Exit] Assistant exited with code %d.", code))
	}
	m.Transcript.Close(reasons)

	return Result{
		State:   state,
		Reasons: reasons,
		Output:  m.Transcript.Render("Logs:\n"),
	}, nil
}

func (m *Monitor) consume(ctx context.Context, c rune) State {
	state := Accumulating
	if line, done := m.Transcript.Write(c); done {
		if m.Rule.Match(line) {
			return ErrorDetected
		}
		state = LineComplete
	}

	if m.Prompt != "" && strings.HasSuffix(m.Transcript.Partial(), m.Prompt) {
		m.logger().DebugContext(ctx, "dismissing close-window prompt")
		if _, err := io.WriteString(m.Process.Stdin(), "\n"); err != nil {
			m.logger().WarnContext(ctx, "answering close-window prompt", "error", err)
		}
		m.Transcript.Flush()
		state = LineComplete
	}

	if state == LineComplete {
		return AwaitingOutput
	}
	return state
}

func (m *Monitor) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
