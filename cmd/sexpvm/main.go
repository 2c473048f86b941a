// Command sexpvm is the host CLI for the embeddable core: it reads
// source text with internal/reader, drives internal/vm through
// Compile/Run, and exposes the operator-facing surface a long-running
// embedder would otherwise build itself (a REPL, a disassembler, GC
// counters). Its subcommand shape is grounded on cmd/viewcore/objref.go,
// the teacher's one example of a cobra.Command built against this
// core, generalized from a single leaf command into a full command
// tree the way cobra's own root/subcommand convention expects.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sexpvm",
		Short: "Compile and run programs on the register-based sexpvm core",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newGCStatsCmd())
	return root
}

// exitf reports a fatal CLI error and terminates with a non-zero
// status, the pattern cmd/viewcore/objref.go's own exitf helper
// follows but which the retrieved copy of that package never defines
// alongside it (see DESIGN.md).
func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sexpvm: "+format+"\n", args...)
	os.Exit(1)
}
