// Package interp implements the fetch-decode-execute loop of §4.4: a
// switch-per-opcode dispatch over internal/bytecode words, arithmetic
// promotion, comparison/equality/hash via internal/value, and a
// syscall table for the primitive operations embedders reach through
// `syscall`. Its shape mirrors program/server/server.go's
// command-dispatch loop: one exported entry point drives a stream of
// decoded operations against shared VM state until a terminal
// condition (return, error, transfer) is reached.
package interp

import (
	"math"

	"github.com/sexpvm/sexpvm/internal/bytecode"
	"github.com/sexpvm/sexpvm/internal/frame"
	"github.com/sexpvm/sexpvm/internal/heap"
	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// VM is the subset of *vm.VM the interpreter needs. Declared locally
// (rather than importing package vm) to avoid an import cycle, since
// vm wires Compile and Run on top of this package.
type VM interface {
	CurrentThread() *value.ThreadObj
	SetCurrentThread(*value.ThreadObj)
	SafePoint()
	Intern() *intern.Cache
	Heap() *heap.Heap
	Globals() *value.Table
	EnterRecursion() error
	ExitRecursion()
}

// pendingArgs is per-call staging state for push1/push2/push3/
// push-array, cleared by the next `call`/`tail-call` (§4.4 table:
// "push1/push2/push3/push-array: prepare arguments to next call").
type pendingArgs struct {
	vals []value.Value
}

func (p *pendingArgs) push(v value.Value) { p.vals = append(p.vals, v) }
func (p *pendingArgs) clear()             { p.vals = p.vals[:0] }

// Run executes fn as the body of a fresh root-level call on th,
// running until the thread's outermost frame returns (or errors),
// and reports the result or propagated error value (§6 "Run: a
// function -> result-or-error, creating a root thread").
func Run(m VM, th *value.ThreadObj, fn *value.Function, args []value.Value) (value.Value, error) {
	th.Status = value.Alive
	f := frame.BeginFrame(th, value.Of(fn), len(args), -1, -1)
	for i, a := range args {
		f.Set(int64(i), a)
	}
	frame.EndFrame(f, fn.Def, len(args), m.Heap(), m.Intern())

	result, err := loop(m, th, &pendingArgs{})
	if err != nil {
		th.Status = value.Error
		return value.NilValue, err
	}
	th.Status = value.Dead
	return result, nil
}

// loop is the fetch-decode-execute core. It returns when the frame
// chain started by Run's BeginFrame unwinds below its starting depth.
func loop(m VM, th *value.ThreadObj, pending *pendingArgs) (value.Value, error) {
	baseDepth := th.CurFrameBase
	for {
		m.SafePoint() // safe point: "between bytecode instructions" (§5)

		f := frame.Frame{Th: th, Base: th.CurFrameBase}
		callee := f.Callee()
		fn, ok := callee.AsObj().(*value.Function)
		if !ok {
			err := vmerr.Runtimef("current frame's callee is not a function")
			if raised(m, th, baseDepth, err) {
				continue
			}
			return value.NilValue, err
		}
		def := fn.Def
		pc := f.PC()
		if pc < 0 || pc >= int64(len(def.Code)) {
			err := vmerr.Runtimef("program counter out of range")
			if raised(m, th, baseDepth, err) {
				continue
			}
			return value.NilValue, err
		}
		d := bytecode.Decode(def.Code, pc)
		next := pc + int64(d.Width)

		switch d.Op {
		case bytecode.OpLdNil:
			f.Set(int64(d.A), value.NilValue)
		case bytecode.OpLdFalse:
			f.Set(int64(d.A), value.MakeBool(false))
		case bytecode.OpLdTrue:
			f.Set(int64(d.A), value.MakeBool(true))
		case bytecode.OpLdI16, bytecode.OpLdI32, bytecode.OpLdI64:
			f.Set(int64(d.A), value.MakeInt(d.Imm))
		case bytecode.OpLdF64:
			f.Set(int64(d.A), value.MakeReal(math.Float64frombits(d.Bits)))
		case bytecode.OpLdConst:
			f.Set(int64(d.A), def.Literals[d.Const])
		case bytecode.OpMove:
			f.Set(int64(d.A), f.Get(int64(d.B)))
		case bytecode.OpSwap:
			a, b := f.Get(int64(d.A)), f.Get(int64(d.B))
			f.Set(int64(d.A), b)
			f.Set(int64(d.B), a)
		case bytecode.OpLdUpv:
			env, e := envAt(fn, int(d.Env))
			if e != nil {
				if raised(m, th, baseDepth, e) {
					continue
				}
				return value.NilValue, e
			}
			f.Set(int64(d.A), env.Get(int64(d.C)))
		case bytecode.OpStUpv:
			env, e := envAt(fn, int(d.Env))
			if e != nil {
				if raised(m, th, baseDepth, e) {
					continue
				}
				return value.NilValue, e
			}
			env.Set(int64(d.C), f.Get(int64(d.A)))
		case bytecode.OpJmp:
			next = pc + int64(d.Label)
		case bytecode.OpJif:
			if f.Get(int64(d.A)).Truthy() {
				next = pc + int64(d.Label)
			}
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			v, err := arith(d.Op, f.Get(int64(d.B)), f.Get(int64(d.C)))
			if err != nil {
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
			f.Set(int64(d.A), v)
		case bytecode.OpBand, bytecode.OpBor, bytecode.OpBxor, bytecode.OpShl, bytecode.OpShr, bytecode.OpAshr:
			v, err := bitwise(d.Op, f.Get(int64(d.B)), f.Get(int64(d.C)))
			if err != nil {
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
			f.Set(int64(d.A), v)
		case bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			f.Set(int64(d.A), compareOp(d.Op, f.Get(int64(d.B)), f.Get(int64(d.C))))
		case bytecode.OpTypecheck:
			v := f.Get(int64(d.A))
			if d.Mask&(1<<uint(v.Tag())) == 0 {
				err := vmerr.Runtimef("typecheck failed on slot %d (tag %s)", d.A, v.Tag())
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
		case bytecode.OpPush1:
			pending.push(f.Get(int64(d.A)))
		case bytecode.OpPush2:
			pending.push(f.Get(int64(d.A)))
			pending.push(f.Get(int64(d.B)))
		case bytecode.OpPush3:
			pending.push(f.Get(int64(d.A)))
			pending.push(f.Get(int64(d.B)))
			pending.push(f.Get(int64(d.C)))
		case bytecode.OpPushArray:
			arr, ok := f.Get(int64(d.A)).AsObj().(*value.Array)
			if !ok {
				err := vmerr.Runtimef("push-array: slot %d is not an array", d.A)
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
			for i := int64(0); i < arr.Count; i++ {
				v, _ := arr.Get(i)
				pending.push(v)
			}
		case bytecode.OpCall, bytecode.OpTailCall:
			calleeVal := f.Get(int64(d.A))
			args := append([]value.Value(nil), pending.vals...)
			pending.clear()

			if cfn := calleeVal; cfn.Tag() == value.TagCFunction {
				res, errored := callNative(m, cfn, args)
				if errored {
					err := vmerr.Runtimef("%v", valueString(res))
					if raised(m, th, baseDepth, err) {
						continue
					}
					return value.NilValue, err
				}
				if d.Op == bytecode.OpCall {
					f.Set(int64(d.B), res)
				} else {
					return res, nil
				}
				f.SetPC(next)
				continue
			}

			callFn, ok := calleeVal.AsObj().(*value.Function)
			if !ok {
				err := vmerr.Runtimef("call: slot %d is not callable", d.A)
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}

			if d.Op == bytecode.OpTailCall {
				f.SetPC(next) // commit pc before rewriting in place
				nf := frame.TailRewrite(th, calleeVal, len(args))
				for i, a := range args {
					nf.Set(int64(i), a)
				}
				frame.EndFrame(nf, callFn.Def, len(args), m.Heap(), m.Intern())
				continue
			}

			f.SetPC(next)
			nf := frame.BeginFrame(th, calleeVal, len(args), int32(d.B), int32(d.C))
			for i, a := range args {
				nf.Set(int64(i), a)
			}
			frame.EndFrame(nf, callFn.Def, len(args), m.Heap(), m.Intern())
			continue
		case bytecode.OpClosure:
			lit := def.Literals[d.Const]
			childDef, ok := lit.AsObj().(*value.FuncDefObj)
			if !ok {
				err := vmerr.Runtimef("closure: literal %d is not a funcdef", d.Const)
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
			envs := captureEnvs(f, fn, childDef)
			fnObj := &value.Function{Def: childDef, Envs: envs}
			m.Heap().Register(fnObj, 16+int64(len(envs))*8)
			f.Set(int64(d.A), value.Of(fnObj))
		case bytecode.OpReturn:
			result := f.Get(int64(d.A))
			ret, _ := retErr(f)
			isEntry := f.Base == baseDepth
			frame.PopFrame(f)
			if isEntry {
				return result, nil
			}
			caller := frame.Frame{Th: th, Base: th.CurFrameBase}
			if ret >= 0 {
				caller.Set(int64(ret), result)
			}
			continue
		case bytecode.OpReturnNil:
			ret, _ := retErr(f)
			isEntry := f.Base == baseDepth
			frame.PopFrame(f)
			if isEntry {
				return value.NilValue, nil
			}
			caller := frame.Frame{Th: th, Base: th.CurFrameBase}
			if ret >= 0 {
				caller.Set(int64(ret), value.NilValue)
			}
			continue
		case bytecode.OpTransfer:
			// A single Run call drives one thread to completion; a
			// transfer yields control back to the embedder rather than
			// running an internal scheduler loop across threads (the
			// embedder resumes the target with its own Run call, whose
			// entry argument is target.RetSlot). §5 only requires that
			// the transferring thread become pending and the target
			// become alive with the passed value in its return slot —
			// it does not require transfer to stay within one call.
			target, ok := f.Get(int64(d.A)).AsObj().(*value.ThreadObj)
			if !ok {
				err := vmerr.Runtimef("transfer: slot %d is not a thread", d.A)
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
			passed := f.Get(int64(d.B))
			f.SetPC(next)
			th.Status = value.Pending
			target.Status = value.Alive
			target.RetSlot = passed
			m.SetCurrentThread(target)
			return passed, nil
		case bytecode.OpSyscall:
			v, err := dispatchSyscall(m, f, d)
			if err != nil {
				if raised(m, th, baseDepth, err) {
					continue
				}
				return value.NilValue, err
			}
			f.Set(int64(d.A), v)
		default:
			err := vmerr.Runtimef("unimplemented opcode %s", d.Op)
			if raised(m, th, baseDepth, err) {
				continue
			}
			return value.NilValue, err
		}

		f.SetPC(next)
	}
}

func retErr(f frame.Frame) (ret, errS int32) {
	return f.ReturnSlot(), f.ErrorSlot()
}

// raised converts err to a value and tries to deliver it to a handler
// frame, reporting whether one absorbed it (§7 "Propagation policy").
func raised(m VM, th *value.ThreadObj, baseDepth int64, err error) bool {
	return unwindError(th, baseDepth, errorValue(m, err))
}

// unwindError walks the frame chain starting at the currently
// executing frame, popping each in turn, until it finds one whose
// caller installed a handler slot (a `try`'s protected call, §7 "a
// compiler-inserted scope for try-like forms") or reaches baseDepth,
// the root of this loop call, with no handler found.
//
// A frame's own ErrorSlot names where, in ITS CALLER, a raised error
// should land — the same slot-in-the-caller convention ReturnSlot
// uses for a normal return (§4.3). Once a handler absorbs the error,
// execution resumes one instruction past the handler's protected
// call: compileTry always emits a jmp there that only the success
// path is meant to execute, so skipping it lands exactly on the
// handler code (§4.5).
func unwindError(th *value.ThreadObj, baseDepth int64, errVal value.Value) bool {
	for {
		f := frame.Frame{Th: th, Base: th.CurFrameBase}
		isEntry := f.Base == baseDepth
		errS := f.ErrorSlot()
		frame.PopFrame(f)
		if isEntry {
			return false
		}
		if errS >= 0 {
			caller := frame.Frame{Th: th, Base: th.CurFrameBase}
			caller.Set(int64(errS), errVal)
			caller.SetPC(caller.PC() + 1)
			return true
		}
	}
}

// errorValue extracts the value a handler should bind for err: the
// value an explicit `raise` carried (vmerr.Raise), or a String built
// from the error's message for errors the interpreter raised itself
// (div-by-zero, a failed typecheck, ...).
func errorValue(m VM, err error) value.Value {
	if ve, ok := err.(*vmerr.Error); ok && !ve.Raised.IsNil() {
		return ve.Raised
	}
	str := value.NewString([]byte(err.Error()))
	m.Heap().Register(str, 24+int64(len(str.Bytes)))
	return value.Of(str)
}

// envAt resolves ld-upv/st-upv's E operand: the currently-executing
// function's Envs array index, flattened at compile time so runtime
// lookup never chases more than one indirection regardless of lexical
// nesting depth (§4.5 "Upvalues": "the FuncDef records an env capture
// (N, S)" — N,S are compiled into a flat per-function Envs list, not
// walked live).
func envAt(fn *value.Function, idx int) (*value.FuncEnvObj, *vmerr.Error) {
	if idx < 0 || idx >= len(fn.Envs) {
		return nil, vmerr.Runtimef("ld-upv/st-upv: env index %d out of range", idx)
	}
	env := fn.Envs[idx]
	if env == nil {
		return nil, vmerr.Runtimef("ld-upv/st-upv: env index %d not captured", idx)
	}
	return env, nil
}

// captureEnvs builds a child closure's Envs array when `closure`
// executes: each entry of def.Captures is either a direct capture of
// the currently-executing frame's own environment (materializing it
// on first capture, §4.3 "funcenv... stack-resident... detached"), or
// a forwarded capture of one of the current function's own Envs
// (re-exporting a grandparent's upvalue without walking scope depth
// at runtime, §4.5 "Upvalues").
func captureEnvs(f frame.Frame, fn *value.Function, childDef *value.FuncDefObj) []*value.FuncEnvObj {
	if len(childDef.Captures) == 0 {
		return nil
	}
	envs := make([]*value.FuncEnvObj, len(childDef.Captures))
	for i, c := range childDef.Captures {
		if c.FromFrame {
			env := f.Env()
			if env == nil {
				env = &value.FuncEnvObj{Thread: f.Th, StackOffset: f.Base + HeaderSlots, Size: f.Size() - HeaderSlots}
				f.SetEnv(env)
			}
			envs[i] = env
		} else if c.Slot >= 0 && c.Slot < len(fn.Envs) {
			envs[i] = fn.Envs[c.Slot]
		}
	}
	return envs
}

// HeaderSlots mirrors frame.HeaderSize; kept as a separate constant so
// this package doesn't need an unexported import for one integer.
const HeaderSlots = 5

func valueString(v value.Value) string {
	switch v.Tag() {
	case value.TagString:
		return string(v.AsObj().(*value.String).Bytes)
	default:
		return "error"
	}
}
