// Package compiler implements §4.5: a form tree (package forms) is
// walked into a FuncDef suitable for the `closure` bytecode
// instruction. Its recursive-descent shape and its compile-error
// style (a message plus the offending form, §4.5 "Failure semantics")
// are grounded on debug/dwarf's recursive type-tree walk and
// internal/gocore/dwarf.go's entry-walking compile passes.
package compiler

import (
	"math"

	"github.com/sexpvm/sexpvm/internal/bytecode"
	"github.com/sexpvm/sexpvm/internal/forms"
	"github.com/sexpvm/sexpvm/internal/heap"
	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// Host is the subset of *vm.VM the compiler needs. Declared locally
// to avoid an import cycle (vm.Compile wraps this package).
//
// Macros and Invoke back macro expansion (§4.5 "Macro expansion is a
// pre-compilation pass"): Macros is the symbol -> macro-function
// table defmacro installs into, and Invoke is how the compiler runs a
// macro's body to produce its expansion, without importing package vm
// or interp itself.
type Host interface {
	Globals() *value.Table
	Intern() *intern.Cache
	Heap() *heap.Heap
	Macros() *value.Table
	Invoke(fn value.Value, args []value.Value) (value.Value, error)
}

const maxMacroDepth = 64

// Compile turns a top-level form into a zero-argument FuncDef whose
// body is the form, wrapped in a Function with no captures (§6
// "Compile: (env, form) -> function-or-error"). `env` augments the
// host's Globals lookup with compile-time-only bindings (e.g. a
// module's private definitions); pass nil to use Globals alone.
func Compile(host Host, env *value.Table, form forms.Form) (*value.Function, error) {
	c := &compilerState{host: host, env: env}
	sc := newRootScope()
	e := &emitter{}

	dest := sc.declare("%result")
	if err := c.compileExpr(sc, e, form, int8(dest), true); err != nil {
		return nil, err
	}
	e.emit(bytecode.EncodeS(bytecode.OpReturn, int8(dest)))

	def := &value.FuncDefObj{
		Name:           "<toplevel>",
		Arity:          0,
		NumLocals:      sc.fn.nextSlot,
		Vararg:         false,
		NeedsParentEnv: sc.fn.needsOwnEnv,
		Literals:       sc.fn.literals,
		Code:           e.code,
		Captures:       nil,
	}
	host.Heap().Register(def, 64+int64(len(def.Code))*4)
	fn := &value.Function{Def: def}
	host.Heap().Register(fn, 16)
	return fn, nil
}

type compilerState struct {
	host Host
	env  *value.Table
}

// compileExpr compiles form f so its value ends up in slot dest. tail
// marks whether f is in tail position (§4.5 "Tail-call marking").
func (c *compilerState) compileExpr(sc *scope, e *emitter, f forms.Form, dest int8, tail bool) error {
	switch f.Kind {
	case forms.KindAtom:
		return c.compileAtom(sc, e, f, dest)
	case forms.KindArray:
		return c.compileArrayLiteral(sc, e, f, dest)
	case forms.KindDict:
		return c.compileDictLiteral(sc, e, f, dest)
	case forms.KindTuple:
		return c.compileTuple(sc, e, f, dest, tail)
	default:
		return vmerr.Compilef(f.String(), "malformed form")
	}
}

func (c *compilerState) compileAtom(sc *scope, e *emitter, f forms.Form, dest int8) error {
	v := f.Atom
	switch v.Tag() {
	case value.TagNil:
		e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
		return nil
	case value.TagBool:
		if v.AsBool() {
			e.emit(bytecode.EncodeS(bytecode.OpLdTrue, dest))
		} else {
			e.emit(bytecode.EncodeS(bytecode.OpLdFalse, dest))
		}
		return nil
	case value.TagInt:
		n := v.AsInt()
		if n >= -32768 && n <= 32767 {
			e.emit(bytecode.EncodeLdI16(dest, int16(n)))
		} else if n >= -(1<<31) && n < (1<<31) {
			e.emitAll(bytecode.EncodeLdI32(dest, int32(n)))
		} else {
			e.emitAll(bytecode.EncodeLdI64(dest, n))
		}
		return nil
	case value.TagReal:
		e.emitAll(bytecode.EncodeLdF64Bits(dest, math.Float64bits(v.AsReal())))
		return nil
	case value.TagSymbol:
		// A leading ':' marks a keyword, which evaluates to itself
		// rather than naming a binding.
		if sym := v.AsObj().(*value.Symbol); len(sym.Bytes) > 0 && sym.Bytes[0] == ':' {
			canon, installed := c.host.Intern().Add(sym)
			if installed {
				c.host.Heap().Register(canon, 16+int64(len(sym.Bytes)))
			}
			idx := sc.addLiteral(value.Of(canon))
			e.emit(bytecode.EncodeSC(bytecode.OpLdConst, dest, uint16(idx)))
			return nil
		}
		return c.compileSymbolRef(sc, e, f, dest)
	default:
		idx := sc.addLiteral(v)
		e.emit(bytecode.EncodeSC(bytecode.OpLdConst, dest, uint16(idx)))
		return nil
	}
}

func (c *compilerState) compileSymbolRef(sc *scope, e *emitter, f forms.Form, dest int8) error {
	name, _ := f.IsSymbol()

	if slot, ok := sc.resolveLocal(name); ok {
		e.emit(bytecode.EncodeSS(bytecode.OpMove, dest, int8(slot)))
		return nil
	}
	if envIdx, ok := resolveUpvalue(sc, name); ok {
		varSlot := sc.fn.captureVarSlot[envIdx]
		e.emit(bytecode.EncodeSES(bytecode.OpLdUpv, dest, uint8(envIdx), int8(varSlot)))
		return nil
	}

	sym, found := c.host.Intern().LookupBytes(value.TagSymbol, []byte(name))
	if found {
		if c.env != nil {
			if v, ok := c.env.Get(value.Of(sym)); ok {
				idx := sc.addLiteral(v)
				e.emit(bytecode.EncodeSC(bytecode.OpLdConst, dest, uint16(idx)))
				return nil
			}
		}
		if v, ok := c.host.Globals().Get(value.Of(sym)); ok {
			idx := sc.addLiteral(v)
			e.emit(bytecode.EncodeSC(bytecode.OpLdConst, dest, uint16(idx)))
			return nil
		}
	}
	return vmerr.Compilef(f.String(), "unknown symbol %q", name)
}
