// Package bootstrap forks the tracee and runs the short, failure-sensitive
// sequence inside it before the target program's image replaces it:
// PTRACE_TRACEME, a self-raised SIGSTOP, rlimit installation, NO_NEW_PRIVS,
// the seccomp filter load, and finally execve. It is a trimmed,
// single-purpose descendant of a general-purpose fork/exec runner:
// namespaces, mounts, pivot_root, cgroups, and credential-switching are
// out of scope (an external container runtime is assumed to handle
// isolation) and are not implemented here.
package bootstrap

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/google/skia-buildbot/fiddle_run/rlimit"
)

// ErrorLocation names the bootstrap step a child-side failure occurred at.
type ErrorLocation int

const (
	LocClone ErrorLocation = iota + 1
	LocPtraceMe
	LocStop
	LocSetRlimit
	LocSetNoNewPrivs
	LocSeccomp
	LocExecve
)

var locToString = [...]string{
	"unknown",
	"clone",
	"ptrace_me",
	"stop",
	"set_rlimit",
	"set_no_new_privs",
	"seccomp",
	"execve",
}

func (l ErrorLocation) String() string {
	if int(l) >= 1 && int(l) < len(locToString) {
		return locToString[l]
	}
	return "unknown"
}

// ChildError reports that the child failed a bootstrap step. Only the
// clone step itself can report one synchronously through Run's return
// value — every later step happens only once the supervisor's ptrace loop
// continues the tracee past its self-raised SIGSTOP, so those failures
// surface as a signal death the supervisor's wait4 observes, not as a Go
// error value.
type ChildError struct {
	Location ErrorLocation
	Errno    syscall.Errno
}

func (e ChildError) Error() string {
	return fmt.Sprintf("bootstrap: %s: %s", e.Location, e.Errno.Error())
}

// Run forks the tracee and starts the in-child bootstrap sequence,
// returning as soon as the fork itself succeeds or fails. The child
// proceeds concurrently and independently: it calls PTRACE_TRACEME, then
// raises SIGSTOP on itself and blocks there until supervisor.Run's
// WaitInitialStop state observes the stop and continues it. Only then do
// rlimits, NO_NEW_PRIVS, the seccomp load, and execve happen. Run must
// therefore be followed by a supervisor.Run call against the returned
// pid; a pid with nobody driving its ptrace loop stays stopped forever.
//
// Run must not be called from a goroutine that might migrate between OS
// threads mid-call; callers are expected to have already locked the
// calling goroutine to its OS thread, matching ptrace's thread affinity.
func Run(argv0 string, argv, env []string, limits rlimit.Limits, seccompProg []unix.SockFilter) (pid int, err error) {
	argv0Bytes, err := syscall.BytePtrFromString(argv0)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: argv0: %w", err)
	}
	argvBytes, err := syscall.SlicePtrFromStrings(argv)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: argv: %w", err)
	}
	envBytes, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: env: %w", err)
	}

	pairs := limits.PrepareRLimit()

	syscall.ForkLock.Lock()
	childPid, errno := forkAndRunChild(argv0Bytes, argvBytes, envBytes, pairs, seccompProg)
	syscall.ForkLock.Unlock()
	if errno != 0 {
		return 0, ChildError{Location: LocClone, Errno: errno}
	}
	return int(childPid), nil
}
