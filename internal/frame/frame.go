// Package frame implements the green-thread call model of §4.3: a
// contiguous value stack partitioned into frames by fixed-size
// headers, with begin/end/pop-frame transitions, variadic argument
// packing, closure-environment detachment, and the tail-call stack
// rewrite that lets self-recursive tail calls run in constant space.
package frame

import "github.com/sexpvm/sexpvm/internal/value"

// HeaderSize is the number of value-sized slots reserved at the base
// of every frame (§4.3: "a fixed-size header (five value-sized
// slots)"). Two header concepts are bit-packed per slot (current size
// with previous size, and return-slot index with error-slot index) so
// that seven logical fields fit in five slots.
const HeaderSize = 5

const (
	hCallee = iota // the Function/CFunction value being invoked
	hSizes         // packed (currentFrameSize, previousFrameSize)
	hRetErr        // packed (returnSlotIndex, errorSlotIndex)
	hPC            // saved program counter
	hEnv           // this frame's FuncEnvObj once materialized, else nil
)

func pack(hi, lo int32) int64 {
	return int64(hi)<<32 | int64(uint32(lo))
}

func unpack(x int64) (hi, lo int32) {
	return int32(x >> 32), int32(uint32(x))
}

// Frame is a handle onto one activation record living on a thread's
// stack. It is cheap to copy; all state lives in the thread.
type Frame struct {
	Th   *value.ThreadObj
	Base int64
}

func (f Frame) Callee() value.Value { return f.Th.Stack[f.Base+hCallee] }

func (f Frame) sizes() (cur, prev int32) { return unpack(f.Th.Stack[f.Base+hSizes].AsInt()) }

func (f Frame) Size() int64 { cur, _ := f.sizes(); return int64(cur) }

func (f Frame) PrevSize() int64 { _, prev := f.sizes(); return int64(prev) }

func (f Frame) setSize(cur int32) {
	_, prev := f.sizes()
	f.Th.Stack[f.Base+hSizes] = value.MakeInt(pack(cur, prev))
}

func (f Frame) retErr() (ret, errS int32) { return unpack(f.Th.Stack[f.Base+hRetErr].AsInt()) }

func (f Frame) ReturnSlot() int32 { r, _ := f.retErr(); return r }
func (f Frame) ErrorSlot() int32  { _, e := f.retErr(); return e }

func (f Frame) PC() int64 { return f.Th.Stack[f.Base+hPC].AsInt() }
func (f Frame) SetPC(pc int64) {
	f.Th.Stack[f.Base+hPC] = value.MakeInt(pc)
}

func (f Frame) Env() *value.FuncEnvObj {
	v := f.Th.Stack[f.Base+hEnv]
	if v.IsNil() {
		return nil
	}
	return v.AsObj().(*value.FuncEnvObj)
}

func (f Frame) SetEnv(e *value.FuncEnvObj) {
	if e == nil {
		f.Th.Stack[f.Base+hEnv] = value.NilValue
		return
	}
	f.Th.Stack[f.Base+hEnv] = value.Of(e)
}

// Slot returns the thread-stack index of local slot i in this frame.
func (f Frame) Slot(i int64) int64 { return f.Base + HeaderSize + i }

func (f Frame) Get(i int64) value.Value { return f.Th.Stack[f.Slot(i)] }
func (f Frame) Set(i int64, v value.Value) { f.Th.Stack[f.Slot(i)] = v }
