package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixListAccepts(t *testing.T) {
	tests := []struct {
		name   string
		list   PrefixList
		path   string
		expect bool
	}{
		{name: "exact prefix", list: PrefixList{"/tmp/"}, path: "/tmp/foo.png", expect: true},
		{name: "no matching prefix", list: PrefixList{"/tmp/"}, path: "/etc/passwd", expect: false},
		{name: "dotdot rejected even with prefix", list: PrefixList{"/tmp/"}, path: "/tmp/../etc/passwd", expect: false},
		{name: "empty list rejects everything", list: PrefixList{}, path: "/tmp/foo", expect: false},
		{name: "accept-any sentinel", list: PrefixList{""}, path: "/etc/passwd", expect: true},
		{name: "accept-any sentinel still rejects dotdot", list: PrefixList{""}, path: "/tmp/../etc/passwd", expect: false},
		{name: "first matching prefix order independent", list: PrefixList{"/var/", "/tmp/"}, path: "/tmp/x", expect: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.list.Accepts(tt.path))
		})
	}
}

func TestTableVerdict(t *testing.T) {
	tbl := Table{
		Allow: []Syscall{"read", "write"},
		Trace: []Syscall{Open, Execve},
	}
	assert.Equal(t, Allow, tbl.Verdict("read"))
	assert.Equal(t, Trace, tbl.Verdict(Open))
	assert.Equal(t, Kill, tbl.Verdict("ptrace"))
	assert.Equal(t, Kill, tbl.Verdict("socket"))
}

func TestIngestVsWebtryReadOnly(t *testing.T) {
	assert.True(t, Ingest.ReadOnlyOpen.Accepts("/etc/passwd"), "ingest trusts its corpus tree via the accept-any sentinel")
	assert.False(t, Webtry.ReadOnlyOpen.Accepts("/etc/passwd"), "webtry never trusts arbitrary readonly opens")
	assert.True(t, Webtry.ReadOnlyOpen.Accepts("/usr/share/fonts/truetype/foo.ttf"))
}

func TestNamedTablesDefaultToKill(t *testing.T) {
	for _, tbl := range []Table{Ingest, Webtry} {
		assert.Equal(t, Kill, tbl.Verdict("ptrace"), "%s must kill on unlisted syscalls", tbl.Name)
		assert.Equal(t, Kill, tbl.Verdict("socket"), "%s must kill on unlisted syscalls", tbl.Name)
	}
}

func TestNamedTablesResourceEnvelopes(t *testing.T) {
	assert.Equal(t, uint64(20), Ingest.CPUSeconds)
	assert.Equal(t, uint64(1<<30), Ingest.AddressSpaceBytes)
	assert.Equal(t, uint64(5), Webtry.CPUSeconds)
	assert.Equal(t, uint64(150<<20), Webtry.AddressSpaceBytes)
}

func TestByMode(t *testing.T) {
	tbl, ok := ByMode("ingest")
	assert.True(t, ok)
	assert.Equal(t, "ingest", tbl.Name)

	tbl, ok = ByMode("webtry")
	assert.True(t, ok)
	assert.Equal(t, "webtry", tbl.Name)

	_, ok = ByMode("bogus")
	assert.False(t, ok)
}

func TestTracedSyscallsAreInTraceSet(t *testing.T) {
	traced := []Syscall{Open, Openat, Mkdir, Unlink, Mknod, Link, Rename, Execve}
	for _, tbl := range []Table{Ingest, Webtry} {
		for _, s := range traced {
			assert.Equal(t, Trace, tbl.Verdict(s), "%s: %s must be traced", tbl.Name, s)
		}
	}
}
