//go:build linux

package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/google/skia-buildbot/fiddle_run/rlimit"
)

// TestRunMissingExecveTargetDies is an integration test: it forks a real
// child, drives the minimal ptrace continue sequence a supervisor would
// (WaitInitialStop then PtraceCont — package supervisor owns the full
// loop; this test drives only the steps it needs), and confirms the child dies by signal rather than exiting
// cleanly when its execve target does not exist. Skipped under -short
// since it touches real process primitives.
func TestRunMissingExecveTargetDies(t *testing.T) {
	if testing.Short() {
		t.Skip("forks a real process; skipped under -short")
	}

	target := "/nonexistent/not-a-real-binary"
	pid, err := Run(target, []string{target}, nil, rlimit.Limits{}, nil)
	require.NoError(t, err, "fork itself must succeed")
	require.NotZero(t, pid)

	var wstatus unix.WaitStatus
	_, err = unix.Wait4(pid, &wstatus, 0, nil)
	require.NoError(t, err)
	require.True(t, wstatus.Stopped(), "child must stop at its self-raised SIGSTOP first")

	require.NoError(t, unix.PtraceSetOptions(pid, unix.PTRACE_O_TRACEEXEC|unix.PTRACE_O_EXITKILL))
	require.NoError(t, unix.PtraceCont(pid, 0))

	_, err = unix.Wait4(pid, &wstatus, 0, nil)
	require.NoError(t, err)

	assert.True(t, wstatus.Signaled(), "missing execve target must kill the child, not exit it cleanly")
	if wstatus.Signaled() {
		assert.Equal(t, unix.SIGKILL, wstatus.Signal())
	}
}
