package runner

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func start(t *testing.T, argv []string, dir string) *Process {
	t.Helper()
	r := &Runner{Env: DefaultEnv}
	p, err := r.Start(argv, dir)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = p.CloseOutput() })
	return p
}

func TestStart_MergesOutput(t *testing.T) {
	p := start(t, []string{"sh", "-c", "echo out; echo err >&2"}, "")
	data, err := io.ReadAll(p.Output())
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "out\n") || !strings.Contains(got, "err\n") {
		t.Errorf("output = %q, want both streams", got)
	}
	code, ok := p.ExitCode(5 * time.Second)
	if !ok || code != 0 {
		t.Errorf("ExitCode = %d, %v, want 0, true", code, ok)
	}
	if p.Started.IsZero() {
		t.Error("Started is zero")
	}
}

func TestStart_NonZeroExit(t *testing.T) {
	p := start(t, []string{"sh", "-c", "exit 3"}, "")
	code, ok := p.ExitCode(5 * time.Second)
	if !ok {
		t.Fatal("process did not exit")
	}
	if code != 3 {
		t.Errorf("ExitCode = %d, want 3", code)
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err = %v, want nil for a plain exit", err)
	}
}

func TestStart_Env(t *testing.T) {
	p := start(t, []string{"sh", "-c", "printf %s \"$PYTHONIOENCODING\""}, "")
	data, _ := io.ReadAll(p.Output())
	if string(data) != "utf-8" {
		t.Errorf("PYTHONIOENCODING = %q, want utf-8", data)
	}
}

func TestStart_Stdin(t *testing.T) {
	p := start(t, []string{"sh", "-c", "read line; echo got $line"}, "")
	if _, err := io.WriteString(p.Stdin(), "enter\n"); err != nil {
		t.Fatalf("writing stdin: %v", err)
	}
	data, _ := io.ReadAll(p.Output())
	if string(data) != "got enter\n" {
		t.Errorf("output = %q, want %q", data, "got enter\n")
	}
}

func TestStart_Dir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	p := start(t, []string{"pwd"}, sub)
	data, _ := io.ReadAll(p.Output())
	if !strings.Contains(string(data), "subdir") {
		t.Errorf("output = %q, want to contain 'subdir'", data)
	}
}

func TestStart_StillRunning(t *testing.T) {
	p := start(t, []string{"sleep", "10"}, "")
	if _, ok := p.ExitCode(50 * time.Millisecond); ok {
		t.Fatal("ExitCode reported exit for a running process")
	}
	if _, ok := p.ExitCode(0); ok {
		t.Fatal("ExitCode(0) reported exit for a running process")
	}
	if err := p.Signal(os.Kill); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process not reaped after kill")
	}
	if err := p.Signal(os.Kill); !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("Signal after exit = %v, want os.ErrProcessDone", err)
	}
}

func TestCloseOutput_Twice(t *testing.T) {
	p := start(t, []string{"true"}, "")
	if err := p.CloseOutput(); err != nil {
		t.Fatalf("first CloseOutput: %v", err)
	}
	if err := p.CloseOutput(); err != nil {
		t.Errorf("second CloseOutput: %v", err)
	}
}

func TestStart_BinaryNotFound(t *testing.T) {
	r := &Runner{}
	_, err := r.Start([]string{"nonexistent-binary-xyz-123"}, "")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
}

func TestStart_EmptyArgv(t *testing.T) {
	r := &Runner{}
	_, err := r.Start(nil, "")
	if !errors.Is(err, ErrEmptyArgv) {
		t.Fatalf("err = %v, want ErrEmptyArgv", err)
	}
}
