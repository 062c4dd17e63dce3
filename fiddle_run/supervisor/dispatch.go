package supervisor

import (
	"fmt"

	"github.com/google/skia-buildbot/fiddle_run/policy"
)

// dispatch decodes the tracee's pending syscall from ctx and judges it
// against s's policy.Table and expected execve target. A nil return means
// resume the tracee; a non-nil return is always a *Violation naming why
// the tracee must be killed.
func (s *Supervisor) dispatch(ctx *Context) error {
	name, ok := s.syscallName(ctx.SyscallNo())
	if !ok {
		return &Violation{
			Code:    TraceCodeViolation,
			Syscall: fmt.Sprintf("#%d", ctx.SyscallNo()),
			Reason:  "unrecognized syscall number reached HandleTrap",
		}
	}

	switch policy.Syscall(name) {
	case policy.Execve:
		return s.checkExecve(ctx)
	case policy.Open:
		return s.checkOpen(ctx, name, ctx.Arg0(), ctx.Arg1())
	case policy.Openat:
		return s.checkOpen(ctx, name, ctx.Arg1(), ctx.Arg2())
	case policy.Mkdir:
		return s.checkPath(ctx, name, ctx.Arg0(), s.paths.checkMkdir)
	case policy.Unlink:
		return s.checkPath(ctx, name, ctx.Arg0(), s.paths.checkUnlink)
	case policy.Mknod:
		return s.checkPath(ctx, name, ctx.Arg0(), s.paths.checkMknod)
	case policy.Link:
		return s.checkTwoPaths(ctx, name, ctx.Arg0(), ctx.Arg1(), s.paths.checkLink)
	case policy.Rename:
		return s.checkTwoPaths(ctx, name, ctx.Arg0(), ctx.Arg1(), s.paths.checkRename)
	default:
		// The BPF program should never have traced anything else; a trap
		// reaching here means the filter and this dispatch have drifted
		// out of sync with each other.
		return &Violation{
			Code:    TraceCodeViolation,
			Syscall: name,
			Reason:  "traced syscall has no HandleTrap case",
		}
	}
}

func (s *Supervisor) checkExecve(ctx *Context) error {
	if s.execved {
		// Only the tracee's first execve is validated against the
		// supervisor's target path; the BPF policy still traces every
		// later one, but the sandboxed renderer never re-execs, so
		// treat a second sighting the same as any other unexpected
		// syscall: reject it.
		return &Violation{Code: TraceCodeViolation, Syscall: "execve", Reason: "unexpected second execve"}
	}
	// Compared byte for byte with the target, without cwd resolution.
	path, _ := readCString(ctx.Pid, uintptr(ctx.Arg0()))
	if path != s.target {
		return &Violation{
			Code:    TraceCodeViolation,
			Syscall: "execve",
			Arg:     path,
			Reason:  fmt.Sprintf("does not match supervisor target %q", s.target),
		}
	}
	s.execved = true
	return nil
}

func (s *Supervisor) checkOpen(ctx *Context, name string, pathAddr, flags uint) error {
	p := s.readPath(ctx, pathAddr)
	if !s.paths.checkOpen(p, flags) {
		return &Violation{Code: TraceCodeViolation, Syscall: name, Arg: p, Reason: "not permitted by policy"}
	}
	return nil
}

func (s *Supervisor) checkPath(ctx *Context, name string, addr uint, accept func(string) bool) error {
	p := s.readPath(ctx, addr)
	if !accept(p) {
		return &Violation{Code: TraceCodeViolation, Syscall: name, Arg: p, Reason: "not permitted by policy"}
	}
	return nil
}

func (s *Supervisor) checkTwoPaths(ctx *Context, name string, addr0, addr1 uint, accept func(string) bool) error {
	p0 := s.readPath(ctx, addr0)
	if !accept(p0) {
		return &Violation{Code: TraceCodeViolation, Syscall: name, Arg: p0, Reason: "not permitted by policy"}
	}
	p1 := s.readPath(ctx, addr1)
	if !accept(p1) {
		return &Violation{Code: TraceCodeViolation, Syscall: name, Arg: p1, Reason: "not permitted by policy"}
	}
	return nil
}

// readPath reads a NUL-terminated string out of the tracee at addr and
// resolves it against the tracee's cwd if relative. A peek error at any
// word is not itself fatal to the supervisor process: an unreadable
// argument is returned as the empty string, unresolved, which only an
// accept-any empty-string prefix matches; under any other list the check
// fails and the tracee is killed rather than acted on with a
// partially-read path.
func (s *Supervisor) readPath(ctx *Context, addr uint) string {
	raw, err := readCString(ctx.Pid, uintptr(addr))
	if err != nil {
		return ""
	}
	return absPath(ctx.Pid, raw)
}
