package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sexpvm/sexpvm/internal/forms"
	"github.com/sexpvm/sexpvm/internal/reader"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vm"
)

func newRunCmd() *cobra.Command {
	var gcTrigger int64
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and run a source file to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			top, err := reader.ReadAll(string(src))
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			v := vm.New()
			if gcTrigger > 0 {
				v.Heap().SetGCTrigger(gcTrigger)
			}
			program := wrapProgram(top)
			result, err := v.CompileAndRun(nil, program)
			if err != nil {
				return err
			}
			if !result.IsNil() {
				fmt.Fprintln(os.Stdout, formatResult(result))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&gcTrigger, "gc-trigger", vm.DefaultGCTrigger, "bytes allocated between GC safe-point checks")
	return cmd
}

// wrapProgram folds a file's top-level forms into one `(do ...)` tuple
// so later forms see earlier `def`s, matching what a single REPL line
// spanning several definitions would mean (§4.5 "do": "the last
// expression of a sequence in tail position").
func wrapProgram(top []forms.Form) forms.Form {
	if len(top) == 1 {
		return top[0]
	}
	doSym := forms.Atom(value.Of(value.NewSymbol([]byte("do"))), forms.Span{})
	elems := append([]forms.Form{doSym}, top...)
	return forms.Tuple(elems, forms.Span{})
}

func formatResult(v value.Value) string {
	switch v.Tag() {
	case value.TagBool:
		return fmt.Sprintf("%v", v.AsBool())
	case value.TagInt:
		return fmt.Sprintf("%d", v.AsInt())
	case value.TagReal:
		return fmt.Sprintf("%g", v.AsReal())
	case value.TagString:
		return string(v.AsObj().(*value.String).Bytes)
	case value.TagSymbol:
		return string(v.AsObj().(*value.Symbol).Bytes)
	default:
		return fmt.Sprintf("<%s>", v.Tag())
	}
}
