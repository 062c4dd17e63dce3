// Package seccompfilter assembles a policy.Table into a loadable BPF
// seccomp program using github.com/elastic/go-seccomp-bpf's declarative
// Policy builder, rather than hand-written BPF jump offsets or a CGO
// libseccomp binding.
package seccompfilter

import (
	"fmt"
	"unsafe"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/google/skia-buildbot/fiddle_run/policy"
)

// ErrFilterUnavailable wraps the kernel's EINVAL return from seccomp(2)
// when SECCOMP_FILTER is not compiled into the running kernel.
type ErrFilterUnavailable struct {
	Err error
}

func (e *ErrFilterUnavailable) Error() string {
	return fmt.Sprintf("SECCOMP_FILTER unavailable: %v", e.Err)
}

func (e *ErrFilterUnavailable) Unwrap() error { return e.Err }

// Builder translates a policy.Table into an assembled BPF program.
type Builder struct {
	Table policy.Table
}

// info is resolved once for the running architecture. Only amd64 is
// exercised today, but the library's own arch-gate machinery is left
// general rather than hard-coding amd64.
var info, errInfo = arch.GetInfo("")

// nameToNumber is built lazily from info.SyscallNumbers (number -> name)
// the first time a Builder needs a reverse lookup.
var nameToNumber map[string]int

func syscallNumber(name string) (int, bool) {
	if nameToNumber == nil {
		nameToNumber = make(map[string]int, len(info.SyscallNumbers))
		for num, n := range info.SyscallNumbers {
			nameToNumber[n] = num
		}
	}
	n, ok := nameToNumber[name]
	return n, ok
}

// Assemble builds the BPF program for b.Table. It returns an error if the
// running architecture's syscall table could not be resolved, or if any
// policy syscall name is not recognized on this architecture — a
// misconfigured Table should fail at build time, not silently admit
// nothing.
func (b Builder) Assemble() ([]unix.SockFilter, error) {
	if errInfo != nil {
		return nil, fmt.Errorf("seccompfilter: resolve architecture info: %w", errInfo)
	}

	allowNames, err := namesOf(b.Table.Allow)
	if err != nil {
		return nil, err
	}
	traceNames, err := namesOf(b.Table.Trace)
	if err != nil {
		return nil, err
	}

	pol := libseccomp.Policy{
		DefaultAction: libseccomp.ActionKillProcess,
		Syscalls: []libseccomp.SyscallGroup{
			{Action: libseccomp.ActionAllow, Names: allowNames},
			{Action: libseccomp.ActionTrace, Names: traceNames},
		},
	}

	insns, err := pol.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccompfilter: assemble BPF program: %w", err)
	}
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, fmt.Errorf("seccompfilter: encode raw BPF instructions: %w", err)
	}
	return toSockFilter(raw), nil
}

// toSockFilter converts the portable x/net/bpf raw instruction form to the
// kernel's sock_filter layout accepted by SECCOMP_SET_MODE_FILTER.
func toSockFilter(raw []bpf.RawInstruction) []unix.SockFilter {
	prog := make([]unix.SockFilter, 0, len(raw))
	for _, ins := range raw {
		prog = append(prog, unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		})
	}
	return prog
}

// namesOf converts policy.Syscall values to plain strings, rejecting any
// name the running architecture's syscall table does not recognize.
func namesOf(syscalls []policy.Syscall) ([]string, error) {
	names := make([]string, 0, len(syscalls))
	for _, s := range syscalls {
		if _, ok := syscallNumber(string(s)); !ok {
			return nil, fmt.Errorf("seccompfilter: unknown syscall %q on %s", s, info.Name)
		}
		names = append(names, string(s))
	}
	return names, nil
}

// SyscallName resolves a syscall number to its symbolic name on the
// running architecture, for the supervisor's HandleTrap dispatch.
func SyscallName(no uint) (string, bool) {
	if errInfo != nil {
		return "", false
	}
	name, ok := info.SyscallNumbers[int(no)]
	return name, ok
}

// Load installs prog as the calling thread's seccomp filter via
// SECCOMP_SET_MODE_FILTER. Callers must already hold PR_SET_NO_NEW_PRIVS,
// since the kernel otherwise refuses the filter install outright. The
// bootstrap package does not call Load: its child issues that prctl and
// the same seccomp(2) call itself as raw syscalls.
// EINVAL is reported as ErrFilterUnavailable so callers can distinguish
// "kernel lacks seccomp" from other setup failures.
func Load(prog []unix.SockFilter) error {
	if len(prog) == 0 {
		return fmt.Errorf("seccompfilter: load: empty program")
	}
	sockProg := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	_, _, errno := unix.RawSyscall(unix.SYS_SECCOMP, unix.SECCOMP_SET_MODE_FILTER, 0, uintptr(unsafe.Pointer(&sockProg)))
	if errno != 0 {
		if errno == unix.EINVAL {
			return &ErrFilterUnavailable{Err: errno}
		}
		return fmt.Errorf("seccompfilter: load: %w", errno)
	}
	return nil
}
