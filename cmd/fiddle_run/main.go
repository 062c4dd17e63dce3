// Command fiddle_run is the syscall-filtering supervisor: it launches a
// single target executable under a seccomp-BPF + ptrace sandbox and
// enforces the path-prefix policy of the selected deployment mode before
// letting any traced syscall through.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/google/skia-buildbot/fiddle_run/bootstrap"
	"github.com/google/skia-buildbot/fiddle_run/policy"
	"github.com/google/skia-buildbot/fiddle_run/rlimit"
	"github.com/google/skia-buildbot/fiddle_run/seccompfilter"
	"github.com/google/skia-buildbot/fiddle_run/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("fiddle_run", flag.ContinueOnError)
	mode := fs.String("mode", "webtry", "policy table to enforce: ingest or webtry")
	showTraceDetails := fs.Bool("show-trace-details", false, "log every traced syscall and verdict to stderr")
	unsafeFlag := fs.Bool("unsafe", false, "soft-ban disallowed syscalls instead of killing the tracee (policy development only, never for production use)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	positional := fs.Args()
	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "usage: fiddle_run [-mode=ingest|webtry] [-show-trace-details] [-unsafe] <executable> [args...]")
		return 2
	}
	target := positional[0]
	tracedArgv := positional

	table, ok := policy.ByMode(*mode)
	if !ok {
		fmt.Fprintf(os.Stderr, "fiddle_run: unknown mode %q\n", *mode)
		return 2
	}

	supervisor.ShowDetails = *showTraceDetails

	prog, err := (seccompfilter.Builder{Table: table}).Assemble()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	limits := rlimit.Limits{CPUSeconds: table.CPUSeconds, AddressSpaceBytes: table.AddressSpaceBytes}
	pid, err := bootstrap.Run(target, tracedArgv, os.Environ(), limits, prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sup := supervisor.New(table, target)
	sup.Unsafe = *unsafeFlag
	exitCode, err := sup.Run(pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}
