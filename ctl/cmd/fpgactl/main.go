package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/thinkparq/fpgakit/ctl/internal/cmd"
)

func main() {
	if os.Geteuid() == 0 {
		// Packaged binaries are installed setgid so non-root users can read device nodes owned by
		// the fpga group. The Go runtime then behaves as if GOTRACEBACK=none was set, which hides
		// the stack of a panic. Root can see everything anyway so restore the default.
		debug.SetTraceback("single")
	} else if os.Getegid() != os.Getgid() || os.Geteuid() != os.Getuid() {
		// Running setgid as a regular user. A panic will not print a traceback so at least say why.
		defer func() {
			// Only catches panics from the main goroutine.
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "panic: %s (stack traces are suppressed since the effective user or group differs)\n", r)
			}
		}()
	}
	os.Exit(cmd.Execute())
}
