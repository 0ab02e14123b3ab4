//go:build unix

package reaper

import (
	"bufio"
	"context"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsr-assistant/hsrdriver/internal/runner"
)

// startTree launches a shell that prints the pid of a background sleep.
func startTree(t *testing.T, script string) (*runner.Process, int32) {
	t.Helper()
	r := &runner.Runner{}
	p, err := r.Start([]string{"sh", "-c", "sleep 30 & echo $!; " + script}, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.CloseOutput() })

	line, err := bufio.NewReader(p.Output()).ReadString('\n')
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	return p, int32(pid)
}

func dead(pid int32) bool {
	p, err := process.NewProcess(pid)
	if err != nil {
		return true
	}
	st, err := p.Status()
	if err != nil {
		return true
	}
	return slices.Contains(st, process.Zombie)
}

func TestTerminate_Graceful(t *testing.T) {
	p, _ := startTree(t, "wait")

	start := time.Now()
	(&Reaper{Grace: 5 * time.Second}).Terminate(context.Background(), p)

	select {
	case <-p.Done():
	default:
		t.Fatal("process still running after Terminate")
	}
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTerminate_KillsStubbornTree(t *testing.T) {
	p, child := startTree(t, `trap "" TERM; while :; do sleep 1; done`)
	require.False(t, dead(child))

	start := time.Now()
	(&Reaper{Grace: 200 * time.Millisecond}).Terminate(context.Background(), p)

	select {
	case <-p.Done():
	default:
		t.Fatal("process still running after Terminate")
	}
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Eventually(t, func() bool { return dead(child) }, 5*time.Second, 20*time.Millisecond)
}

func TestTerminate_AlreadyExited(t *testing.T) {
	r := &runner.Runner{}
	p, err := r.Start([]string{"true"}, "")
	require.NoError(t, err)
	defer p.CloseOutput()
	<-p.Done()

	// Must neither block nor panic.
	(&Reaper{}).Terminate(context.Background(), p)
}

func TestTerminate_ContextDone(t *testing.T) {
	p, _ := startTree(t, `trap "" TERM; while :; do sleep 1; done`)
	t.Cleanup(func() {
		(&Reaper{Grace: time.Millisecond}).Terminate(context.Background(), p)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	(&Reaper{Grace: time.Minute}).Terminate(ctx, p)

	select {
	case <-p.Done():
		t.Fatal("process should have survived an abandoned termination")
	default:
	}
}
