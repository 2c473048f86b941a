package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sexpvm/sexpvm/internal/reader"
	"github.com/sexpvm/sexpvm/internal/vm"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read, compile, and run forms interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl()
		},
	}
}

// runRepl implements the loop the core's Non-goals push out of scope
// ("the REPL shell", §1) and leave to cmd/sexpvm: readline for line
// editing and history, internal/reader to parse one form at a time,
// and one long-lived vm.VM shared by every line. Each line compiles
// as its own top-level form and `def` binds lexically, so a definition
// made on one line is not visible on later ones (the standalone `run`
// command instead folds a whole file into one `do`).
func runRepl() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "sexpvm> ",
		HistoryFile: "",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	v := vm.New()
	var pending strings.Builder

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if pending.Len() == 0 {
					continue
				}
				pending.Reset()
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		pending.WriteString(line)
		pending.WriteByte('\n')

		src := pending.String()
		form, consumed, err := reader.ReadOne(src)
		if err != nil {
			// Likely an unterminated form; keep accumulating lines.
			continue
		}
		pending.Reset()
		pending.WriteString(src[consumed:])

		result, err := v.CompileAndRun(nil, form)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if !result.IsNil() {
			fmt.Println(formatResult(result))
		}
	}
}
