//go:build amd64

package supervisor

import "syscall"

// SyscallNo returns the syscall number the tracee trapped on.
func (c *Context) SyscallNo() uint { return uint(c.regs.Orig_rax) }

// Arg0 through Arg5 return the six syscall argument registers in the
// x86-64 System V calling convention order.
func (c *Context) Arg0() uint { return uint(c.regs.Rdi) }
func (c *Context) Arg1() uint { return uint(c.regs.Rsi) }
func (c *Context) Arg2() uint { return uint(c.regs.Rdx) }
func (c *Context) Arg3() uint { return uint(c.regs.R10) }
func (c *Context) Arg4() uint { return uint(c.regs.R8) }
func (c *Context) Arg5() uint { return uint(c.regs.R9) }

// SetReturnValue sets the value the kernel will return from the pending
// syscall once skipSyscall takes effect.
func (c *Context) SetReturnValue(retval int) {
	c.regs.Rax = uint64(retval)
}

// skipSyscall rewrites the syscall number to -1, the documented way to
// make the kernel skip the pending syscall while returning whatever value
// SetReturnValue placed in the return register.
// https://www.kernel.org/doc/Documentation/prctl/seccomp_filter.txt
func (c *Context) skipSyscall() error {
	c.regs.Orig_rax = ^uint64(0)
	return syscall.PtraceSetRegs(c.Pid, &c.regs)
}
