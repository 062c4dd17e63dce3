// Package supervisor implements the parent-side ptrace debugger loop: it
// waits on a freshly bootstrapped tracee, decodes every seccomp trap,
// validates the offending syscall's path arguments against a policy.Table,
// and resumes or kills the tracee accordingly.
package supervisor

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/google/skia-buildbot/fiddle_run/policy"
	"github.com/google/skia-buildbot/fiddle_run/seccompfilter"
)

// ShowDetails turns on the debug trace log written to standard error.
// It is a package variable rather than a Supervisor field so the earliest
// setup steps, before a Supervisor exists, can also honor it.
var ShowDetails bool

// Supervisor runs the WaitInitialStop -> WaitEvent -> HandleTrap loop
// against a single tracee.
type Supervisor struct {
	table  policy.Table
	target string
	paths  pathChecker

	// Unsafe soft-bans a disallowed syscall (returns EACCES to the
	// tracee) instead of killing it, for policy-table development only;
	// this must never be set in production, where a violation always
	// ends the run.
	Unsafe bool

	execved bool
}

// New constructs a Supervisor for table, which will only accept target as
// the tracee's first execve argument.
func New(table policy.Table, target string) *Supervisor {
	return &Supervisor{
		table:  table,
		target: target,
		paths:  pathChecker{table: table},
	}
}

func (s *Supervisor) syscallName(no uint) (string, bool) {
	return seccompfilter.SyscallName(no)
}

func debugf(format string, v ...interface{}) {
	if ShowDetails {
		fmt.Fprintf(os.Stderr, format+"\n", v...)
	}
}

// Run drives the supervisor loop for the tracee at pid, which must already
// have called PTRACE_TRACEME and raised SIGSTOP on itself (bootstrap.Run
// does both). It blocks until the tracee exits, is signaled, or is killed
// for a policy violation, and returns the process exit code: 0 on clean
// exit, 1 otherwise.
func (s *Supervisor) Run(pid int) (exitCode int, err error) {
	// ptrace is thread-affine; the whole loop must run on the OS thread
	// that owns the trace relationship.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var wstatus unix.WaitStatus

	// WaitInitialStop.
	if _, werr := unix.Wait4(pid, &wstatus, 0, nil); werr != nil {
		return 1, fmt.Errorf("supervisor: waiting for initial stop: %w", werr)
	}
	if !wstatus.Stopped() {
		return 1, fmt.Errorf("supervisor: tracee did not stop as expected, status=%v", wstatus)
	}
	if err := unix.PtraceSetOptions(pid, unix.PTRACE_O_TRACESECCOMP|unix.PTRACE_O_TRACEEXEC|unix.PTRACE_O_EXITKILL); err != nil {
		return 1, fmt.Errorf("supervisor: PtraceSetOptions: %w", err)
	}
	if err := unix.PtraceCont(pid, 0); err != nil {
		return 1, fmt.Errorf("supervisor: initial PtraceCont: %w", err)
	}

	// WaitEvent / HandleTrap.
	for {
		wpid, werr := unix.Wait4(pid, &wstatus, 0, nil)
		if werr != nil {
			return 1, fmt.Errorf("supervisor: wait4: %w", werr)
		}
		debugf("wait4: pid=%d status=%v", wpid, wstatus)

		switch {
		case wstatus.Exited():
			if !s.execved {
				// The tracee exited before its execve of the target was
				// validated. Failed bootstrap steps normally end in
				// childDie's self-SIGKILL (the Signaled case below); an
				// exit here means childDie fell back to exit_group.
				return 1, &Violation{Code: TraceCodeSetupFailure, Reason: "tracee exited before execve"}
			}
			return 0, nil

		case wstatus.Signaled():
			debugf("tracee terminated by signal %v", wstatus.Signal())
			return 1, &Violation{
				Code:    TraceCodeSignaled,
				Syscall: wstatus.Signal().String(),
				Reason:  "tracee terminated by signal",
			}

		case wstatus.Stopped():
			stopSig := wstatus.StopSignal()
			if stopSig == unix.SIGTRAP && wstatus.TrapCause() == unix.PTRACE_EVENT_SECCOMP {
				ctx, cerr := getTrapContext(pid)
				if cerr != nil {
					return 1, fmt.Errorf("supervisor: PtraceGetRegs: %w", cerr)
				}
				if verr := s.dispatch(ctx); verr != nil {
					if s.Unsafe {
						debugf("unsafe mode: soft-banning: %v", verr)
						ctx.SetReturnValue(-int(unix.EACCES))
						if serr := ctx.skipSyscall(); serr != nil {
							return 1, fmt.Errorf("supervisor: skipSyscall: %w", serr)
						}
					} else {
						debugf("violation: %v", verr)
						_ = unix.Kill(pid, unix.SIGKILL)
						return 1, verr
					}
				}
			} else if stopSig == unix.SIGTRAP && wstatus.TrapCause() == unix.PTRACE_EVENT_EXEC {
				debugf("tracee execve'd")
			}
			if err := unix.PtraceCont(pid, 0); err != nil {
				return 1, fmt.Errorf("supervisor: PtraceCont: %w", err)
			}
		}
	}
}
