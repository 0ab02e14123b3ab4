// Package supervisor owns the single assistant run: it launches the
// process, watches its output and answers run, wait and stop requests with
// the run's console transcript.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hsr-assistant/hsrdriver/internal/history"
	"github.com/hsr-assistant/hsrdriver/internal/monitor"
	"github.com/hsr-assistant/hsrdriver/internal/reaper"
	"github.com/hsr-assistant/hsrdriver/internal/runner"
	"github.com/hsr-assistant/hsrdriver/internal/task"
	"github.com/hsr-assistant/hsrdriver/internal/transcript"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("an assistant process is already running")

// Texts returned to callers.
const (
	MsgConflict     = "Error: An assistant process is already running. Use 'wait' or 'stop'."
	MsgInvalid      = "Invalid run config:\n"
	MsgLaunchFailed = "Failed to start assistant process:\n"
	MsgStopped      = "Process has been stopped."
	MsgCancelled    = "Assistant has been unexpectedly stopped."
	MsgUnexpected   = "An unexpected error occurred: "

	HeaderRunning      = "Assistant running in background.\nCurrent logs:\n"
	HeaderStillRunning = "Assistant is still running.\nCurrent logs:\n"
	HeaderNoWait       = "No running assistant to wait for.\nPrevious logs:\n"
	HeaderNoStop       = "No running assistant to stop.\nPrevious logs:\n"
	HeaderLogs         = "Logs:\n"
)

// CancelReason is recorded in the transcript of a stopped run.
const CancelReason = "[Cancelled] Assistant stopped on request."

// Launcher turns a raw run request into a launch plan. Request errors are
// *task.ValidationError.
type Launcher interface {
	Prepare(ctx context.Context, raw json.RawMessage) (task.Plan, error)
}

// Options tunes a Supervisor. Zero values mean defaults.
type Options struct {
	Timeout     time.Duration // how long Run and Wait block
	IdleTimeout time.Duration // inactivity window of the monitor
	Grace       time.Duration // terminate grace period of the reaper
	Rule        monitor.ErrorRule
	Env         []string      // added to the assistant's environment
	Tail        io.Writer     // receives the live output, may be nil
	History     history.Store // receives finished runs, may be nil
	Logger      *slog.Logger
}

// DefaultTimeout is how long Run and Wait block by default.
const DefaultTimeout = 120 * time.Second

// Supervisor runs at most one assistant process at a time. It is safe for
// concurrent use.
type Supervisor struct {
	launcher Launcher
	runner   *runner.Runner
	reaper   *reaper.Reaper
	opts     Options
	log      *slog.Logger

	mu     sync.Mutex
	active *run
	last   *transcript.Transcript
}

type run struct {
	id         string
	started    time.Time
	transcript *transcript.Transcript
	cancel     context.CancelFunc
	done       chan struct{}

	// Set before done is closed.
	result  string
	outcome history.Outcome
}

// New returns a Supervisor that launches runs planned by l.
func New(l Launcher, opts Options) *Supervisor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = monitor.DefaultIdleTimeout
	}
	if opts.Rule.Marker == "" {
		opts.Rule = monitor.DefaultErrorRule()
	}
	if opts.Env == nil {
		opts.Env = runner.DefaultEnv
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		launcher: l,
		runner:   &runner.Runner{Env: opts.Env},
		reaper:   &reaper.Reaper{Grace: opts.Grace, Logger: log},
		opts:     opts,
		log:      log,
		last:     transcript.New(),
	}
}

// Run starts a run of raw and waits for it up to the configured timeout.
// It answers with the final transcript when the run ends in time, and with
// the transcript so far otherwise; the run then continues in the background.
// ctx bounds only the caller's wait, never the run.
func (s *Supervisor) Run(ctx context.Context, raw json.RawMessage) (out string) {
	defer s.recoverTo(ctx, &out)
	s.log.InfoContext(ctx, "received run request", "run_config", string(raw))

	r, err := s.begin(ctx, raw)
	if errors.Is(err, ErrRunInProgress) {
		return MsgConflict
	}
	return s.observe(ctx, r, HeaderRunning)
}

// Wait observes the active run like Run does. Any number of callers may wait
// on the same run.
func (s *Supervisor) Wait(ctx context.Context) (out string) {
	defer s.recoverTo(ctx, &out)
	s.log.InfoContext(ctx, "received wait request")

	s.mu.Lock()
	r, last := s.active, s.last
	s.mu.Unlock()

	if r == nil {
		return last.Render(HeaderNoWait)
	}
	return s.observe(ctx, r, HeaderStillRunning)
}

// Stop cancels the active run and waits until its process tree is gone and
// the run slot is free. A run that finished on its own before it could be
// cancelled answers with its result.
func (s *Supervisor) Stop(ctx context.Context) (out string) {
	defer s.recoverTo(ctx, &out)
	s.log.InfoContext(ctx, "received stop request")

	s.mu.Lock()
	r, last := s.active, s.last
	s.mu.Unlock()

	if r == nil {
		return last.Render(HeaderNoStop)
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return MsgUnexpected + ctx.Err().Error()
	}
	if r.outcome == history.Cancelled {
		return MsgStopped
	}
	return r.result
}

// Shutdown stops the active run, if any.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	active := s.active != nil
	s.mu.Unlock()
	if active {
		s.log.InfoContext(ctx, "stopping active run before shutdown")
		s.Stop(ctx)
	}
}

// begin claims the run slot and starts the run's lifecycle goroutine. The
// lock covers only the check and registration.
func (s *Supervisor) begin(ctx context.Context, raw json.RawMessage) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrRunInProgress
	}

	lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		id:         uuid.New().String(),
		started:    time.Now(),
		transcript: transcript.New(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.active = r
	go s.supervise(lifeCtx, r, raw)
	return r, nil
}

// observe blocks until r finishes, the timeout elapses or the caller goes
// away, without affecting r.
func (s *Supervisor) observe(ctx context.Context, r *run, header string) string {
	t := time.NewTimer(s.opts.Timeout)
	defer t.Stop()

	select {
	case <-r.done:
		if r.outcome == history.Cancelled {
			return MsgCancelled
		}
		return r.result
	case <-t.C:
	case <-ctx.Done():
	}
	return r.transcript.Render(header)
}

// supervise is the lifecycle of one run. It always finishes the run, which
// frees the slot.
func (s *Supervisor) supervise(ctx context.Context, r *run, raw json.RawMessage) {
	log := s.log.With("run_id", r.id)
	var kind task.Kind
	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "run panicked", "panic", p)
			r.result, r.outcome = fmt.Sprintf("%s%v", MsgUnexpected, p), history.Failed
		}
		s.finish(ctx, r, kind)
	}()

	plan, err := s.launcher.Prepare(ctx, raw)
	if ctx.Err() != nil {
		log.InfoContext(ctx, "run stopped before launch")
		r.transcript.Close([]string{CancelReason})
		r.result, r.outcome = MsgCancelled, history.Cancelled
		return
	}
	if err != nil {
		var verr *task.ValidationError
		if errors.As(err, &verr) {
			log.InfoContext(ctx, "invalid run config", "error", err)
			r.result, r.outcome = MsgInvalid+verr.Error(), history.Invalid
			return
		}
		log.ErrorContext(ctx, "preparing run", "error", err)
		r.result, r.outcome = MsgUnexpected+err.Error(), history.Failed
		return
	}
	kind = plan.Task

	log.InfoContext(ctx, "starting assistant", "task", plan.Task, "argv", plan.Argv, "dir", plan.Dir)
	proc, err := s.runner.Start(plan.Argv, plan.Dir)
	if err != nil {
		log.ErrorContext(ctx, "starting assistant", "error", err)
		r.result, r.outcome = MsgLaunchFailed+err.Error(), history.Failed
		return
	}
	s.mu.Lock()
	s.last = r.transcript
	s.mu.Unlock()

	r.result, r.outcome = s.watch(ctx, r, proc, log.With("pid", proc.PID()))
}

// watch relays and monitors proc until the monitor reaches a terminal state
// or ctx is cancelled. On return the process tree is gone and both helper
// goroutines have exited.
func (s *Supervisor) watch(ctx context.Context, r *run, proc *runner.Process, log *slog.Logger) (result string, outcome history.Outcome) {
	auxCtx, cancelAux := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(auxCtx)

	q := monitor.NewQueue()
	m := &monitor.Monitor{
		Queue:       q,
		Transcript:  r.transcript,
		Process:     proc,
		IdleTimeout: s.opts.IdleTimeout,
		Rule:        s.opts.Rule,
		Prompt:      monitor.ClosePrompt,
		Logger:      log,
	}

	defer func() {
		if code, exited := proc.ExitCode(0); exited {
			log.InfoContext(ctx, "process already exited", "code", code)
		} else {
			s.reaper.Terminate(context.WithoutCancel(ctx), proc)
		}
		_ = proc.CloseOutput()
		log.DebugContext(ctx, "cancelling relay and monitor")
		cancelAux()
		_ = g.Wait()

		if outcome == history.Cancelled {
			r.transcript.Close([]string{CancelReason})
		}
	}()

	g.Go(func() error {
		monitor.Relay(gctx, proc.Output(), q, s.opts.Tail, log)
		return nil
	})

	var (
		res     monitor.Result
		werr    error
		watched = make(chan struct{})
	)
	g.Go(func() error {
		defer close(watched)
		res, werr = m.Watch(gctx)
		return werr
	})
	<-watched

	if werr != nil {
		log.InfoContext(ctx, "run cancelled", "error", werr)
		return MsgCancelled, history.Cancelled
	}
	log.InfoContext(ctx, "monitoring finished", "state", res.State, "reasons", res.Reasons)
	return res.Output, outcomeOf(res.State)
}

// finish records r, frees the slot and releases observers.
func (s *Supervisor) finish(ctx context.Context, r *run, kind task.Kind) {
	r.cancel()

	if s.opts.History != nil {
		text := r.result
		if r.outcome == history.Cancelled || text == "" {
			text = r.transcript.Render(HeaderLogs)
		}
		rec := &history.Record{
			ID:         r.id,
			Task:       string(kind),
			Outcome:    r.outcome,
			Started:    r.started,
			Stopped:    time.Now(),
			Transcript: text,
		}
		if err := s.opts.History.Save(rec); err != nil {
			s.log.WarnContext(ctx, "saving run history", "run_id", r.id, "error", err)
		}
	}

	s.mu.Lock()
	if s.active == r {
		s.active = nil
	}
	s.mu.Unlock()

	s.log.InfoContext(ctx, "run finished", "run_id", r.id, "outcome", r.outcome)
	close(r.done)
}

func (s *Supervisor) recoverTo(ctx context.Context, out *string) {
	if p := recover(); p != nil {
		s.log.ErrorContext(ctx, "request panicked", "panic", p)
		*out = fmt.Sprintf("%s%v", MsgUnexpected, p)
	}
}

func outcomeOf(st monitor.State) history.Outcome {
	switch st {
	case monitor.ErrorDetected:
		return history.Errored
	case monitor.TimedOut:
		return history.TimedOut
	default:
		return history.Completed
	}
}

// Errors returned by Call for malformed tool arguments.
var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrRunConfigMissing = errors.New("run_config is required when action is 'run'")
)

// Call dispatches one hsr_assistant action. runConfig is used by run only.
func (s *Supervisor) Call(ctx context.Context, action string, runConfig json.RawMessage) (string, error) {
	switch action {
	case task.ActionRun:
		if isNull(runConfig) {
			return "", ErrRunConfigMissing
		}
		return s.Run(ctx, runConfig), nil
	case task.ActionWait:
		return s.Wait(ctx), nil
	case task.ActionStop:
		return s.Stop(ctx), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
