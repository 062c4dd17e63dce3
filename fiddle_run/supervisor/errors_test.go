package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViolationError(t *testing.T) {
	v := &Violation{Code: TraceCodeViolation, Syscall: "open", Arg: "/etc/passwd", Reason: "not permitted by policy"}
	assert.Equal(t, `policy violation: open("/etc/passwd"): not permitted by policy`, v.Error())

	v2 := &Violation{Code: TraceCodeSignaled, Syscall: "SIGSYS", Reason: "tracee terminated by signal"}
	assert.Equal(t, "tracee signaled: SIGSYS: tracee terminated by signal", v2.Error())
}

func TestTraceCodeString(t *testing.T) {
	assert.Equal(t, "normal", TraceCodeNormal.String())
	assert.Equal(t, "setup failure", TraceCodeSetupFailure.String())
	assert.Equal(t, "unknown", TraceCode(99).String())
}
