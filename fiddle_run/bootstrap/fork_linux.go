package bootstrap

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/google/skia-buildbot/fiddle_run/rlimit"
)

// forkAndRunChild forks and, in the child, runs the bootstrap sequence:
// PTRACE_TRACEME, a self-raised SIGSTOP, rlimits, NO_NEW_PRIVS, the
// seccomp load, then execve. Past the clone syscall, the child branch
// must not call any Go runtime function that might allocate or take a
// lock — only raw syscalls and pre-allocated values are touched, since the
// child is a single-threaded copy of a possibly multi-threaded process and
// only async-signal-safe operations are valid until execve.
//
//go:norace
func forkAndRunChild(argv0 *byte, argv, env []*byte, limits []rlimit.Pair, seccompProg []unix.SockFilter) (pid uintptr, errno syscall.Errno) {
	var (
		err1     syscall.Errno
		selfPid  uintptr
		sockProg unix.SockFprog
	)
	if len(seccompProg) > 0 {
		sockProg = unix.SockFprog{Len: uint16(len(seccompProg)), Filter: &seccompProg[0]}
	}

	r1, _, cloneErrno := syscall.RawSyscall6(syscall.SYS_CLONE, uintptr(syscall.SIGCHLD), 0, 0, 0, 0, 0)
	if cloneErrno != 0 || r1 != 0 {
		// Parent: r1 is the child's pid (or the clone error).
		return r1, cloneErrno
	}

	// From here on: child. No more Go allocations.

	// 1. PTRACE_TRACEME.
	_, _, err1 = syscall.RawSyscall(syscall.SYS_PTRACE, uintptr(unix.PTRACE_TRACEME), 0, 0)
	if err1 != 0 {
		childDie()
	}

	// 2. Raise SIGSTOP on self; the parent observes this in
	// WaitInitialStop and does not continue the child until it has set
	// trace options. Everything below this line runs only once resumed.
	selfPid, _, err1 = syscall.RawSyscall(syscall.SYS_GETPID, 0, 0, 0)
	if err1 != 0 {
		childDie()
	}
	_, _, err1 = syscall.RawSyscall(syscall.SYS_KILL, selfPid, uintptr(syscall.SIGSTOP), 0)
	if err1 != 0 {
		childDie()
	}

	// 3. Resource limits. A single rlimit failure is not fatal here: the
	// child proceeds with whatever limits did apply rather than aborting
	// a sandboxed run over a prlimit64 rejection.
	for i := range limits {
		syscall.RawSyscall6(unix.SYS_PRLIMIT64, 0, uintptr(limits[i].Res),
			uintptr(unsafe.Pointer(&limits[i].Rlim)), 0, 0, 0)
	}

	// 4. NO_NEW_PRIVS.
	_, _, err1 = syscall.RawSyscall6(syscall.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0, 0)
	if err1 != 0 {
		childDie()
	}

	// 5. Install the seccomp-BPF program.
	if len(seccompProg) > 0 {
		_, _, err1 = syscall.RawSyscall(unix.SYS_SECCOMP, unix.SECCOMP_SET_MODE_FILTER, 0, uintptr(unsafe.Pointer(&sockProg)))
		if err1 != 0 {
			childDie()
		}
	}

	// 6. execve the target. argv always has at least argv0 itself (the
	// caller-supplied argv slice mirrors tracedArgv, which always starts
	// with the target), but env may legitimately be empty, so its
	// pointer must not be taken through a zero-length slice index.
	var argvPtr, envPtr unsafe.Pointer
	if len(argv) > 0 {
		argvPtr = unsafe.Pointer(&argv[0])
	}
	if len(env) > 0 {
		envPtr = unsafe.Pointer(&env[0])
	}
	syscall.RawSyscall(syscall.SYS_EXECVE, uintptr(unsafe.Pointer(argv0)),
		uintptr(argvPtr), uintptr(envPtr))

	// 7. execve only returns on failure: SIGKILL self so the parent's
	// wait4 observes a signal death, not a clean exit.
	childDie()
	panic("unreachable")
}

// childDie terminates the child by SIGKILL. The parent is the real
// process parent regardless of whether PTRACE_TRACEME has succeeded yet,
// so the signal death is always observable through its wait4 loop.
//
//go:norace
func childDie() {
	selfPid, _, _ := syscall.RawSyscall(syscall.SYS_GETPID, 0, 0, 0)
	syscall.RawSyscall(syscall.SYS_KILL, selfPid, uintptr(syscall.SIGKILL), 0)
	for {
		syscall.RawSyscall(syscall.SYS_EXIT_GROUP, 1, 0, 0)
	}
}
