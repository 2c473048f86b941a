package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sexpvm/sexpvm/internal/bytecode"
	"github.com/sexpvm/sexpvm/internal/reader"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vm"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Compile a source file and print its bytecode",
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
			fn, err := v.Compile(nil, wrapProgram(top))
			if err != nil {
				return err
			}
			printDef(os.Stdout, fn.Def, fn.Def.Name)
			return nil
		},
	}
}

// printDef renders one FuncDefObj's instruction stream, then recurses
// into any nested FuncDefObj literals its `closure` instructions
// reference, the way objref.go walks a referrer graph breadth-first
// from a root object rather than printing one flat listing.
func printDef(w *os.File, def *value.FuncDefObj, name string) {
	fmt.Fprintf(w, "== %s (arity=%d locals=%d vararg=%v) ==\n", name, def.Arity, def.NumLocals, def.Vararg)
	code := bytecode.Code(def.Code)
	var nested []*value.FuncDefObj
	for pc := int64(0); pc < int64(len(code)); {
		d := bytecode.Decode(code, pc)
		fmt.Fprintf(w, "  %4d  %s\n", pc, disasmLine(d))
		if d.Op == bytecode.OpClosure {
			if lit := def.Literals[d.Const]; lit.Tag() == value.TagFuncDef {
				nested = append(nested, lit.AsObj().(*value.FuncDefObj))
			}
		}
		pc += int64(d.Width)
	}
	for i, n := range nested {
		fmt.Fprintln(w)
		printDef(w, n, fmt.Sprintf("%s/fn%d", name, i))
	}
}

func disasmLine(d bytecode.Decoded) string {
	switch d.Op {
	case bytecode.OpLdNil, bytecode.OpLdFalse, bytecode.OpLdTrue, bytecode.OpReturn, bytecode.OpReturnNil:
		return fmt.Sprintf("%-10s r%d", d.Op, d.A)
	case bytecode.OpLdI16, bytecode.OpLdI32, bytecode.OpLdI64:
		return fmt.Sprintf("%-10s r%d, %d", d.Op, d.A, d.Imm)
	case bytecode.OpLdF64:
		return fmt.Sprintf("%-10s r%d, bits=%#x", d.Op, d.A, d.Bits)
	case bytecode.OpLdConst:
		return fmt.Sprintf("%-10s r%d, k%d", d.Op, d.A, d.Const)
	case bytecode.OpMove, bytecode.OpSwap:
		return fmt.Sprintf("%-10s r%d, r%d", d.Op, d.A, d.B)
	case bytecode.OpLdUpv, bytecode.OpStUpv:
		return fmt.Sprintf("%-10s r%d, e%d, r%d", d.Op, d.A, d.Env, d.C)
	case bytecode.OpJmp:
		return fmt.Sprintf("%-10s %+d", d.Op, d.Label)
	case bytecode.OpJif:
		return fmt.Sprintf("%-10s r%d, %+d", d.Op, d.A, d.Label)
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpBand, bytecode.OpBor, bytecode.OpBxor, bytecode.OpShl, bytecode.OpShr, bytecode.OpAshr,
		bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		return fmt.Sprintf("%-10s r%d, r%d, r%d", d.Op, d.A, d.B, d.C)
	case bytecode.OpTypecheck:
		return fmt.Sprintf("%-10s r%d, mask=%#x", d.Op, d.A, d.Mask)
	case bytecode.OpPush1, bytecode.OpPush2, bytecode.OpPush3, bytecode.OpPushArray:
		return fmt.Sprintf("%-10s r%d, r%d, r%d", d.Op, d.A, d.B, d.C)
	case bytecode.OpCall:
		if d.C < 0 {
			return fmt.Sprintf("%-10s r%d, dest=r%d", d.Op, d.A, d.B)
		}
		return fmt.Sprintf("%-10s r%d, dest=r%d, err=r%d", d.Op, d.A, d.B, d.C)
	case bytecode.OpTailCall:
		return fmt.Sprintf("%-10s r%d", d.Op, d.A)
	case bytecode.OpClosure:
		return fmt.Sprintf("%-10s r%d, k%d", d.Op, d.A, d.Const)
	case bytecode.OpTransfer:
		return fmt.Sprintf("%-10s r%d, r%d, r%d", d.Op, d.A, d.B, d.C)
	case bytecode.OpSyscall:
		return fmt.Sprintf("%-10s r%d, %s, r%d, r%d", d.Op, d.A, d.Syscall, d.B, d.C)
	default:
		return d.Op.String()
	}
}
