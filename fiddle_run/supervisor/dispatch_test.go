package supervisor

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/skia-buildbot/fiddle_run/policy"
)

func newCtx(sysno uint64) *Context {
	return &Context{Pid: 0, regs: syscall.PtraceRegs{Orig_rax: sysno}}
}

func TestDispatchUnknownSyscallNumber(t *testing.T) {
	s := New(policy.Webtry, "/opt/fiddle_run")
	// A syscall number absent from the architecture's table.
	err := s.dispatch(newCtx(999999))
	require.Error(t, err)
	var v *Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, TraceCodeViolation, v.Code)
}

func TestCheckExecveRejectsSecondCall(t *testing.T) {
	s := New(policy.Webtry, "/opt/fiddle_run")
	s.execved = true
	err := s.checkExecve(newCtx(59)) // amd64 execve syscall number
	require.Error(t, err)
	var v *Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "execve", v.Syscall)
	assert.Contains(t, v.Reason, "second execve")
}
