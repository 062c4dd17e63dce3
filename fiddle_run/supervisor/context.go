package supervisor

import "syscall"

// Context wraps the ptrace register snapshot taken when a tracee traps
// into the supervisor, exposing the syscall number and its arguments
// through architecture-specific accessors (context_amd64.go).
type Context struct {
	Pid  int
	regs syscall.PtraceRegs
}

func getTrapContext(pid int) (*Context, error) {
	var regs syscall.PtraceRegs
	if err := syscall.PtraceGetRegs(pid, &regs); err != nil {
		return nil, err
	}
	return &Context{Pid: pid, regs: regs}, nil
}
