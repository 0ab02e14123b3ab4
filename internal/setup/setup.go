// Package setup installs the assistant projects the driver launches: each is
// cloned at a pinned commit, patched, and synced with uv.
package setup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hsr-assistant/hsrdriver/internal/config"
	"github.com/hsr-assistant/hsrdriver/internal/runner"
)

// Project is an upstream repository pinned to a known-good commit.
type Project struct {
	Name   string
	URL    string
	Commit string
	Patch  string // file name inside the patch directory

	// Post returns extra commands run in the project directory after uv sync.
	Post func(dir string) [][]string
}

// Pinned upstream projects.
var (
	March7thAssistant = Project{
		Name:   "March7thAssistant",
		URL:    "https://github.com/moesnow/March7thAssistant.git",
		Commit: "cb278086562b77f5687e1233020e3b9178d7b957",
		Patch:  "march-7th-assistant.patch",
		Post: func(dir string) [][]string {
			return [][]string{{config.VenvPython(dir), "import_ocr.py"}}
		},
	}
	AutoSimulatedUniverse = Project{
		Name:   "Auto_Simulated_Universe",
		URL:    "https://github.com/CHNZYX/Auto_Simulated_Universe.git",
		Commit: "bf091321db2dd8c7063d66d88eaf8e2d4f1db066",
		Patch:  "auto-simulated-universe.patch",
	}
)

// ErrPatchMissing is returned when a project's patch is not in the patch directory.
var ErrPatchMissing = errors.New("patch file not found")

// Installer prepares projects. Zero Git and UV mean the binaries on PATH.
type Installer struct {
	Runner   *runner.Runner
	PatchDir string
	Git      string
	UV       string

	// Verbose receives command output as it runs. When nil, output is kept
	// and reported only for failing commands.
	Verbose io.Writer
	Logger  *slog.Logger
}

// Prepare installs p into dir. An existing dir is left alone.
func (in *Installer) Prepare(ctx context.Context, p Project, dir string) error {
	log := in.logger().With("project", p.Name, "dir", dir)
	if _, err := os.Stat(dir); err == nil {
		log.WarnContext(ctx, "project directory already exists, skipping; delete it to set up again")
		return nil
	}

	patch, err := filepath.Abs(filepath.Join(in.PatchDir, p.Patch))
	if err != nil {
		return fmt.Errorf("resolving patch for %s: %w", p.Name, err)
	}
	if _, err := os.Stat(patch); err != nil {
		return fmt.Errorf("%s: %w: %s", p.Name, ErrPatchMissing, patch)
	}

	steps := []step{
		{[]string{in.git(), "clone", p.URL, dir}, ""},
		{[]string{in.git(), "checkout", p.Commit}, dir},
		{[]string{in.git(), "apply", "-p1", patch}, dir},
		{[]string{in.uv(), "sync"}, dir},
	}
	if p.Post != nil {
		for _, argv := range p.Post(dir) {
			steps = append(steps, step{argv, dir})
		}
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.InfoContext(ctx, "executing", "argv", strings.Join(s.argv, " "))
		if err := in.run(ctx, s.argv, s.dir); err != nil {
			return fmt.Errorf("setting up %s: %w", p.Name, err)
		}
	}
	log.InfoContext(ctx, "setup complete")
	return nil
}

type step struct {
	argv []string
	dir  string
}

// run executes argv to completion and fails on a non-zero exit code.
func (in *Installer) run(ctx context.Context, argv []string, dir string) error {
	proc, err := in.Runner.Start(argv, dir)
	if err != nil {
		return err
	}
	defer func() { _ = proc.CloseOutput() }()

	var captured bytes.Buffer
	out := io.Writer(&captured)
	if in.Verbose != nil {
		out = in.Verbose
	}

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = io.Copy(out, proc.Output())
	}()

	select {
	case <-proc.Done():
	case <-ctx.Done():
		_ = proc.Signal(os.Kill)
		<-proc.Done()
		_ = proc.CloseOutput()
		<-copied
		return ctx.Err()
	}
	<-copied

	if err := proc.Err(); err != nil {
		return fmt.Errorf("waiting for %s: %w", argv[0], err)
	}
	if code, _ := proc.ExitCode(0); code != 0 {
		if captured.Len() > 0 {
			return fmt.Errorf("%s exited with code %d:\n%s", strings.Join(argv, " "), code, captured.String())
		}
		return fmt.Errorf("%s exited with code %d", strings.Join(argv, " "), code)
	}
	return nil
}

func (in *Installer) git() string {
	if in.Git != "" {
		return in.Git
	}
	return "git"
}

func (in *Installer) uv() string {
	if in.UV != "" {
		return in.UV
	}
	return "uv"
}

func (in *Installer) logger() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return slog.Default()
}
