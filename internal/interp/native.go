package interp

import "github.com/sexpvm/sexpvm/internal/value"

// nativeCall implements value.NativeContext for one cfunction
// invocation (§6 "C-function protocol").
type nativeCall struct {
	args    []value.Value
	result  value.Value
	errVal  value.Value
	errored bool
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

// callNative invokes a cfunction value under the VM's recursion guard
// and the "safe point before a C-call allocation" rule (§5).
func callNative(m VM, fn value.Value, args []value.Value) (value.Value, bool) {
	if err := m.EnterRecursion(); err != nil {
		return value.Of(value.NewString([]byte(err.Error()))), true
	}
	defer m.ExitRecursion()

	m.SafePoint()
	ctx := &nativeCall{args: args}
	value.CallCFunction(fn, ctx)
	if ctx.errored {
		return ctx.errVal, true
	}
	return ctx.result, false
}
