// Package runner starts the assistant as a child process with its standard
// output and standard error merged into one stream.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ErrEmptyArgv is returned by Start when there is nothing to execute.
var ErrEmptyArgv = errors.New("empty argv")

// Runner launches child processes.
type Runner struct {
	// Env is appended to the parent's environment.
	Env []string
}

// DefaultEnv forces the assistant's Python runtime to write UTF-8 whatever
// the console code page is.
var DefaultEnv = []string{"PYTHONIOENCODING=utf-8"}

// Start launches argv in dir. The first element is the binary, resolved via
// PATH when it has no separator; the rest are arguments. The returned
// Process owns the read end of the merged output pipe.
//
// The process is not tied to any context: it is stopped explicitly through
// the reaper so that a caller going away never kills a shared run.
func (r *Runner) Start(argv []string, dir string) (*Process, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	out, w, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = out.Close()
		_ = w.Close()
		return nil, fmt.Errorf("executing %s: %w", argv[0], err)
	}
	// The child holds its own copy of the write end; EOF arrives once it and
	// every descendant sharing the handle are gone.
	_ = w.Close()

	p := &Process{
		Argv:    append([]string(nil), argv...),
		Started: time.Now(),
		cmd:     cmd,
		stdin:   stdin,
		output:  out,
		done:    make(chan struct{}),
	}
	go p.waitLoop()
	return p, nil
}

// Process is a started child process.
type Process struct {
	Argv    []string
	Started time.Time

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output *os.File
	done   chan struct{}

	// Set before done is closed.
	exitCode int
	waitErr  error
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Output is the merged stdout and stderr stream.
func (p *Process) Output() io.Reader {
	return p.output
}

// Stdin is the process's standard input.
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// CloseOutput closes the parent's end of the output pipe, unblocking any
// pending read. It is safe to call more than once.
func (p *Process) CloseOutput() error {
	err := p.output.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// ExitCode waits up to within for the process to exit and returns its exit
// code. ok is false when the process is still running.
func (p *Process) ExitCode(within time.Duration) (code int, ok bool) {
	if within <= 0 {
		select {
		case <-p.done:
			return p.exitCode, true
		default:
			return 0, false
		}
	}
	t := time.NewTimer(within)
	defer t.Stop()
	select {
	case <-p.done:
		return p.exitCode, true
	case <-t.C:
		return 0, false
	}
}

// Err returns the error reported by wait, if any, once the process is done.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Signal sends sig to the process. It returns os.ErrProcessDone after exit.
func (p *Process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *Process) waitLoop() {
	err := p.cmd.Wait()
	_ = p.stdin.Close()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			err = nil
		} else {
			code = -1
		}
	}
	p.exitCode = code
	p.waitErr = err
	close(p.done)
}
