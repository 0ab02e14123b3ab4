// Package reaper terminates a process tree: politely first, then by force.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultGrace is how long a process gets to exit after the terminate signal.
const DefaultGrace = 5 * time.Second

// Target is a process the caller started and reaps.
type Target interface {
	PID() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Reaper stops process trees. Its zero value uses DefaultGrace and the
// default logger.
type Reaper struct {
	Grace  time.Duration
	Logger *slog.Logger
}

// Terminate stops t and the descendants it had when Terminate was called.
// It sends a terminate signal, waits up to Grace, then kills t, waits for it
// and kills every snapshotted descendant. Failures are logged, never
// returned: Terminate runs on cleanup paths that must not fail.
//
// Terminate blocks until t has exited or ctx is done.
func (r *Reaper) Terminate(ctx context.Context, t Target) {
	log := r.logger().With("pid", t.PID())

	select {
	case <-t.Done():
		log.DebugContext(ctx, "process already exited")
		return
	default:
	}

	root, err := process.NewProcessWithContext(ctx, int32(t.PID()))
	if err != nil {
		if gone(err) {
			log.DebugContext(ctx, "process already exited")
		} else {
			log.ErrorContext(ctx, "looking up process", "error", err)
		}
		return
	}

	children := descendants(ctx, root)
	log.InfoContext(ctx, "terminating process tree", "descendants", pids(children))

	if err := root.TerminateWithContext(ctx); err != nil && !gone(err) {
		log.WarnContext(ctx, "sending terminate signal", "error", err)
	}

	grace := time.NewTimer(r.grace())
	defer grace.Stop()
	select {
	case <-t.Done():
		log.InfoContext(ctx, "process terminated gracefully", "grace", r.grace())
		return
	case <-ctx.Done():
		log.WarnContext(ctx, "abandoning termination", "error", ctx.Err())
		return
	case <-grace.C:
	}

	log.InfoContext(ctx, "process did not terminate gracefully, killing it")
	if err := root.KillWithContext(ctx); err != nil {
		if gone(err) {
			log.WarnContext(ctx, "process no longer exists")
		} else {
			log.ErrorContext(ctx, "killing process", "error", err)
		}
	}

	select {
	case <-t.Done():
	case <-ctx.Done():
		log.WarnContext(ctx, "abandoning termination", "error", ctx.Err())
		return
	}

	for _, child := range children {
		log.InfoContext(ctx, "killing descendant", "child", child.Pid)
		if err := child.KillWithContext(ctx); err != nil && !gone(err) {
			log.WarnContext(ctx, "killing descendant", "child", child.Pid, "error", err)
		}
	}
	log.InfoContext(ctx, "process tree terminated")
}

func (r *Reaper) grace() time.Duration {
	if r.Grace > 0 {
		return r.Grace
	}
	return DefaultGrace
}

func (r *Reaper) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// descendants walks the tree below p depth-first. Lookup errors end the walk
// of that branch.
func descendants(ctx context.Context, p *process.Process) []*process.Process {
	children, err := p.ChildrenWithContext(ctx)
	if err != nil {
		if !errors.Is(err, process.ErrorNoChildren) && !gone(err) {
			slog.DebugContext(ctx, "listing children", "pid", p.Pid, "error", err)
		}
		return nil
	}
	var out []*process.Process
	for _, c := range children {
		out = append(out, c)
		out = append(out, descendants(ctx, c)...)
	}
	return out
}

func gone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, syscall.ESRCH)
}

func pids(ps []*process.Process) []int32 {
	out := make([]int32, len(ps))
	for i, p := range ps {
		out[i] = p.Pid
	}
	return out
}
