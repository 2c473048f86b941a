package vm

import "github.com/sexpvm/sexpvm/internal/value"

// nativeCall implements value.NativeContext for one invocation of a
// cfunction: args read from the callee's frame slots, result/error
// written back into the interpreter's return/error slots (§6
// "C-function protocol").
type nativeCall struct {
	args    []value.Value
	result  value.Value
	errVal  value.Value
	errored bool
}

func newNativeCall(args []value.Value) *nativeCall {
	return &nativeCall{args: args}
}

func (c *nativeCall) NumArgs() int { return len(c.args) }

func (c *nativeCall) Arg(i int) value.Value {
	if i < 0 || i >= len(c.args) {
		return value.NilValue
	}
	return c.args[i]
}

func (c *nativeCall) Return(v value.Value) { c.result = v }

func (c *nativeCall) Raise(v value.Value) {
	c.errored = true
	c.errVal = v
}

// CallNative invokes a cfunction value with the given arguments under
// the VM's recursion guard, returning its result or the raised error
// value (§6 "C-function protocol: (vm) -> status in {ok, error}").
func (v *VM) CallNative(fn value.Value, args []value.Value) (value.Value, bool) {
	if err := v.EnterRecursion(); err != nil {
		return value.Of(value.NewString([]byte(err.Error()))), true
	}
	defer v.ExitRecursion()

	ctx := newNativeCall(args)
	v.SafePoint() // before a C-call allocation, per §5 "Suspension points"
	value.CallCFunction(fn, ctx)
	if ctx.errored {
		return ctx.errVal, true
	}
	return ctx.result, false
}

// NewUserData is a thin helper embedders use to build values
// of a userdata type descriptor (§6 "Userdata registration").
func (v *VM) NewUserData(desc *value.UserDataType, payload any) value.Value {
	ud := &value.UserData{Desc: desc, Payload: payload}
	v.heap.Register(ud, 32)
	return value.Of(ud)
}
