// Package policy holds the constant data a sandboxed fiddle-rendering
// process is judged against: the syscall allow/trace sets and the ordered
// path-prefix lists consulted for every traced filesystem syscall.
package policy

import "strings"

// Verdict is the outcome a syscall policy lookup yields.
type Verdict int

// The three verdicts a Table entry can produce. The zero value is Kill,
// so an unrecognized or unlisted syscall defaults to termination.
const (
	Kill Verdict = iota
	Allow
	Trace
)

// Syscall identifies a syscall by its symbolic, architecture-independent
// name. The numeric identifier is resolved at filter-build time.
type Syscall string

// These constants name the path-bearing syscalls the supervisor decodes
// arguments for. Every member of this list must also appear in a Table's Trace set.
const (
	Open    Syscall = "open"
	Openat  Syscall = "openat"
	Mkdir   Syscall = "mkdir"
	Unlink  Syscall = "unlink"
	Mknod   Syscall = "mknod"
	Link    Syscall = "link"
	Rename  Syscall = "rename"
	Execve  Syscall = "execve"
)

// Table is a Policy Table: a syscall allow/trace classification plus the
// named path-prefix lists for every traced path-bearing syscall.
type Table struct {
	Name string

	// Allow lists syscalls resolved in-kernel with no supervisor round trip.
	Allow []Syscall
	// Trace lists syscalls that stop the tracee for a supervisor decision.
	// A syscall in neither set is Kill by default: the Policy Table's
	// default terminal action is always Kill.
	Trace []Syscall

	// ReadOnlyOpen and WritableOpen are the two prefix lists open/openat
	// select between by masking the flags argument against O_ACCMODE.
	ReadOnlyOpen PrefixList
	WritableOpen PrefixList

	Mkdir  PrefixList
	Unlink PrefixList
	Mknod  PrefixList
	Link   PrefixList
	Rename PrefixList

	// Limits are the CPU/address-space rlimits applied before execve.
	CPUSeconds        uint64
	AddressSpaceBytes uint64
}

// PrefixList is an ordered sequence of byte-string prefixes. A path is
// accepted by the list iff it does not contain the substring "../" and at
// least one prefix in the list is a byte-exact prefix of it. An
// empty-string element matches every path — a deliberate accept-any
// sentinel; see Accepts' doc comment.
type PrefixList []string

// Accepts reports whether path is permitted by the list. This is a coarse,
// non-canonicalizing check: it rejects "../" anywhere in the path, then
// looks for the first prefix (in declaration order) that is a byte-exact
// prefix of path. An empty-string prefix silently accepts every path —
// callers building a PrefixList should not add one unless that is the
// intended policy.
func (pl PrefixList) Accepts(path string) bool {
	if strings.Contains(path, "../") {
		return false
	}
	for _, prefix := range pl {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Verdict returns the Table's classification for a syscall name.
func (t Table) Verdict(name Syscall) Verdict {
	for _, s := range t.Allow {
		if s == name {
			return Allow
		}
	}
	for _, s := range t.Trace {
		if s == name {
			return Trace
		}
	}
	return Kill
}

// commonAllow is the syscall allow set shared by both deployments: process
// lifecycle, memory management, I/O on already-open descriptors, metadata,
// synchronization/signals, process identity, time/randomness, and startup
// plumbing.
var commonAllow = []Syscall{
	// process lifecycle
	"exit", "exit_group", "clone", "wait4", "tgkill",
	// memory
	"mmap", "mprotect", "munmap", "brk", "mremap",
	// I/O on already-open descriptors
	"read", "write", "lseek", "fstat", "close", "pread64", "ftruncate",
	"fcntl", "dup", "ioctl", "fadvise64", "getdents", "getdents64",
	// metadata
	"stat", "statfs", "fstatfs", "access", "readlink", "newfstatat",
	// synchronization and signals
	"futex", "rt_sigaction", "rt_sigprocmask", "sched_yield",
	// process identity
	"getpid", "gettid", "getuid", "geteuid", "getgid", "getegid",
	// time / randomness
	"clock_gettime", "sysinfo", "getrandom",
	// startup plumbing
	"set_tid_address", "set_robust_list", "arch_prctl", "getrlimit", "prlimit64",
	// filesystem permission bits the renderer needs
	"chmod", "chown", "shmctl",
}

// commonTrace is the syscall trace set shared by both deployments.
// Per-argument checks are infeasible in BPF for path strings, so every
// path-bearing call is demoted to Trace and resolved in userspace.
var commonTrace = []Syscall{Execve, Open, Openat, Mkdir, Unlink, Mknod, Link, Rename}

// Ingest is the batch-ingest deployment's policy table: it pre-renders a
// corpus of known-good fiddles from a trusted source tree, so its readonly
// list carries the accept-any empty-string sentinel and its resource
// envelope is the larger of the two (20s CPU, 1GiB AS).
var Ingest = Table{
	Name:  "ingest",
	Allow: commonAllow,
	Trace: commonTrace,

	ReadOnlyOpen: PrefixList{""},
	WritableOpen: PrefixList{"/tmp/", "/var/cache/fontconfig"},

	Mkdir:  PrefixList{"/tmp/", "/var/cache/fontconfig"},
	Unlink: PrefixList{"/tmp/"},
	Mknod:  PrefixList{"/tmp/"},
	Link:   PrefixList{"/tmp/"},
	Rename: PrefixList{"/tmp/"},

	CPUSeconds:        20,
	AddressSpaceBytes: 1 << 30,
}

// Webtry is the public interactive fiddle.skia.org deployment's policy
// table. It does not trust arbitrary readonly opens — no accept-any
// sentinel — and runs with the smaller resource envelope (5s CPU, 150MiB
// AS) since it serves untrusted requests directly.
var Webtry = Table{
	Name:  "webtry",
	Allow: commonAllow,
	Trace: commonTrace,

	ReadOnlyOpen: PrefixList{
		"/usr/share/fonts/",
		"/etc/fonts/",
		"/var/cache/fontconfig",
		"/etc/ld.so.cache",
		"/usr/lib/",
		"/lib/",
	},
	WritableOpen: PrefixList{"/tmp/"},

	Mkdir:  PrefixList{"/tmp/"},
	Unlink: PrefixList{"/tmp/"},
	Mknod:  PrefixList{"/tmp/"},
	Link:   PrefixList{"/tmp/"},
	Rename: PrefixList{"/tmp/"},

	CPUSeconds:        5,
	AddressSpaceBytes: 150 << 20,
}

// ByMode looks up a named Table, for CLI/config wiring.
func ByMode(mode string) (Table, bool) {
	switch mode {
	case "ingest":
		return Ingest, true
	case "webtry":
		return Webtry, true
	default:
		return Table{}, false
	}
}
