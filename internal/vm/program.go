package vm

import (
	"github.com/sexpvm/sexpvm/internal/compiler"
	"github.com/sexpvm/sexpvm/internal/forms"
	"github.com/sexpvm/sexpvm/internal/interp"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// Compile turns a form into a callable Function (§6 "Compile: (env,
// form) -> function-or-error"). env augments Globals with
// compile-time-only bindings; pass nil to resolve symbols against
// Globals alone.
func (v *VM) Compile(env *value.Table, form forms.Form) (*value.Function, error) {
	return compiler.Compile(v, env, form)
}

// Run invokes fn on a fresh root-level call on the VM's current
// thread, driving the interpreter to completion (§6 "Run: (function)
// -> result-or-error, creating a root thread").
func (v *VM) Run(fn *value.Function, args []value.Value) (value.Value, error) {
	th := v.CurrentThread()
	result, err := interp.Run(v, th, fn, args)
	if err != nil {
		var errVal value.Value
		if ve, ok := err.(*vmerr.Error); ok && !ve.Raised.IsNil() {
			errVal = ve.Raised
		} else {
			str := value.NewString([]byte(err.Error()))
			v.heap.Register(str, 24+int64(len(str.Bytes)))
			errVal = value.Of(str)
		}
		v.SetReturnSlot(errVal)
		return value.NilValue, err
	}
	v.SetReturnSlot(result)
	return result, nil
}

// Invoke runs fn on a fresh green thread to completion and returns its
// result, the way a macro's body is evaluated at compile time (§4.5
// "Macro expansion is a pre-compilation pass") without disturbing the
// thread any in-progress compilation eventually runs on.
func (v *VM) Invoke(fn value.Value, args []value.Value) (value.Value, error) {
	fnObj, ok := fn.AsObj().(*value.Function)
	if !ok {
		return value.NilValue, vmerr.Runtimef("invoke: value is not a function")
	}
	th := v.NewThread(nil)
	return interp.Run(v, th, fnObj, args)
}

// CompileAndRun is the common embedder entry point: compile form
// against env (nil for Globals alone) and run it immediately.
func (v *VM) CompileAndRun(env *value.Table, form forms.Form) (value.Value, error) {
	fn, err := v.Compile(env, form)
	if err != nil {
		return value.NilValue, err
	}
	return v.Run(fn, nil)
}
