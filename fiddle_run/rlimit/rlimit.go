// Package rlimit describes the resource limits applied to the sandboxed
// tracee before it execs, by setrlimit/prlimit64.
package rlimit

import (
	"fmt"
	"syscall"
)

// Limits is the resource-limit record applied to a sandboxed tracee: CPU
// seconds and address-space bytes. Both are enforced by the kernel on
// behalf of the tracee and inherited across execve.
type Limits struct {
	CPUSeconds        uint64
	AddressSpaceBytes uint64
}

// Pair is a single (resource, limit) pair ready for PRLIMIT64/SETRLIMIT.
type Pair struct {
	Res  int
	Rlim syscall.Rlimit
}

// PrepareRLimit produces the pairs bootstrap.Run installs in the child.
// Unset (zero) fields are omitted rather than installed as a zero limit,
// so a Limits{} applies no restriction at all.
func (l Limits) PrepareRLimit() []Pair {
	var out []Pair
	if l.CPUSeconds > 0 {
		out = append(out, Pair{
			Res:  syscall.RLIMIT_CPU,
			Rlim: syscall.Rlimit{Cur: l.CPUSeconds, Max: l.CPUSeconds},
		})
	}
	if l.AddressSpaceBytes > 0 {
		out = append(out, Pair{
			Res:  syscall.RLIMIT_AS,
			Rlim: syscall.Rlimit{Cur: l.AddressSpaceBytes, Max: l.AddressSpaceBytes},
		})
	}
	return out
}

func (p Pair) String() string {
	name := "RLIMIT"
	switch p.Res {
	case syscall.RLIMIT_CPU:
		name = "CPU"
	case syscall.RLIMIT_AS:
		name = "AddressSpace"
	}
	return fmt.Sprintf("%s[%d:%d]", name, p.Rlim.Cur, p.Rlim.Max)
}

func (l Limits) String() string {
	return fmt.Sprintf("Limits{cpu=%ds as=%dB}", l.CPUSeconds, l.AddressSpaceBytes)
}
