package supervisor

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/google/skia-buildbot/fiddle_run/policy"
)

// pathChecker judges a path, already resolved by absPath, against the
// byte-exact ordered-prefix lists of a policy.Table.
// It is deliberately narrower than a hierarchical directory-membership
// model: no wildcard expansion, no symlink resolution, just an ordered
// byte-exact prefix match.
type pathChecker struct {
	table policy.Table
}

// absPath prefixes p with the tracee's current working directory when p
// is not already absolute. It is deliberately non-canonicalizing: unlike
// path.Clean/path.Join, it never collapses a "../" component, because the
// PrefixList substring check downstream depends on "../" surviving in the
// string it inspects — the traversal defense is coarse by design, not a
// real canonicalization.
func absPath(pid int, p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	cwd, err := procCwd(pid)
	if err != nil || cwd == "" {
		return p
	}
	return strings.TrimSuffix(cwd, "/") + "/" + p
}

func procCwd(pid int) (string, error) {
	return syscallReadlink(fmt.Sprintf("/proc/%d/cwd", pid))
}

// syscallReadlink is a thin indirection over syscall.Readlink kept in its own
// function so tests can substitute it without touching /proc.
var syscallReadlink = func(name string) (string, error) {
	buf := make([]byte, 4096)
	n, err := syscall.Readlink(name, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (c pathChecker) checkOpen(path string, flags uint) bool {
	if flags&syscall.O_ACCMODE == syscall.O_RDONLY {
		return c.table.ReadOnlyOpen.Accepts(path)
	}
	return c.table.WritableOpen.Accepts(path)
}

func (c pathChecker) checkMkdir(p string) bool  { return c.table.Mkdir.Accepts(p) }
func (c pathChecker) checkUnlink(p string) bool { return c.table.Unlink.Accepts(p) }
func (c pathChecker) checkMknod(p string) bool  { return c.table.Mknod.Accepts(p) }
func (c pathChecker) checkLink(p string) bool   { return c.table.Link.Accepts(p) }
func (c pathChecker) checkRename(p string) bool { return c.table.Rename.Accepts(p) }
