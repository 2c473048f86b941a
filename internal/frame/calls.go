package frame

import "github.com/sexpvm/sexpvm/internal/value"

// Allocator is the subset of *heap.Heap the frame package needs: every
// vararg tuple built while packing surplus call arguments must be
// registered with the collector like any other aggregate.
type Allocator interface {
	Register(value.Obj, int64)
}

// Interner is the subset of *intern.Cache the frame package needs to
// canonicalize the vararg tuple it builds.
type Interner interface {
	Add(value.Obj) (value.Obj, bool)
}

// BeginFrame reserves a header plus argc argument slots above the
// thread's current top, initializes the header, and nils the
// argument slots. The caller then writes actual arguments into those
// slots before calling EndFrame (§4.3 step 1-2).
func BeginFrame(th *value.ThreadObj, callee value.Value, argc int, returnSlot, errorSlot int32) Frame {
	base := th.Count
	prevSize := int32(0)
	if th.Count > 0 {
		prevSize = int32(Frame{Th: th, Base: th.CurFrameBase}.Size())
	}
	total := int64(HeaderSize + argc)
	th.EnsureCapacity(total)

	f := Frame{Th: th, Base: base}
	th.Stack[base+hCallee] = callee
	th.Stack[base+hSizes] = value.MakeInt(pack(int32(total), prevSize))
	th.Stack[base+hRetErr] = value.MakeInt(pack(returnSlot, errorSlot))
	th.Stack[base+hPC] = value.MakeInt(0)
	th.Stack[base+hEnv] = value.NilValue
	for i := int64(0); i < int64(argc); i++ {
		th.Stack[base+HeaderSize+i] = value.NilValue
	}
	th.Count = base + total
	th.CurFrameBase = base
	return f
}

// EndFrame adjusts the frame to match the callee's FuncDefObj: if the
// function is variadic, slots beyond its fixed arity are packed into
// a single interned tuple at slot `arity`; otherwise the frame is
// padded (or, for more args than locals, truncated) up to NumLocals.
// argc is the number of argument slots BeginFrame actually reserved
// (the call site's argument count, which may exceed def.Arity).
func EndFrame(f Frame, def *value.FuncDefObj, argc int, alloc Allocator, interner Interner) {
	th := f.Th
	if def.Vararg {
		extraN := argc - def.Arity
		if extraN < 0 {
			extraN = 0
		}
		extra := make([]value.Value, extraN)
		copy(extra, th.Stack[f.Slot(int64(def.Arity)):f.Slot(int64(def.Arity)+int64(extraN))])
		tup := value.NewTuple(extra)
		canon, installed := interner.Add(tup)
		if installed {
			alloc.Register(canon, 16+int64(len(extra))*8)
		}
		// Resize to NumLocals (the fixed arity, the one vararg tuple
		// slot, plus any further locals), then write the tuple and pad
		// whatever remains.
		th.EnsureCapacity(int64(def.NumLocals))
		th.Count = f.Base + int64(HeaderSize) + int64(def.NumLocals)
		f.Set(int64(def.Arity), value.Of(canon))
		for i := def.Arity + 1; i < def.NumLocals; i++ {
			f.Set(int64(i), value.NilValue)
		}
	} else {
		th.EnsureCapacity(int64(def.NumLocals))
		th.Count = f.Base + int64(HeaderSize) + int64(def.NumLocals)
		for i := argc; i < def.NumLocals; i++ {
			f.Set(int64(i), value.NilValue)
		}
	}
	f.setSize(int32(HeaderSize + def.NumLocals))
	f.SetPC(0)
	th.CurFrameBase = f.Base
}

// PopFrame restores the thread's top to just below the frame, using
// the frame's own stored size, and detaches the frame's environment
// if one was materialized (§4.3 "Return").
func PopFrame(f Frame) {
	th := f.Th
	if env := f.Env(); env != nil {
		env.Detach()
	}
	th.Count = f.Base
	th.CurFrameBase = f.Base - f.PrevSize()
}

// TailRewrite implements the tail-call stack rewrite of §4.3: detach
// the current frame's env if any, then overwrite the current frame's
// own header fields (callee, env, pc, size) in place with the new
// call's values, copying argument slots down, while keeping the
// frame's already-stored return-slot and previous-size untouched —
// those describe how to return to *this* frame's caller, which the
// substitution doesn't change. Because the frame base never moves,
// unbounded self-tail-recursion runs in constant stack space (§8
// property 6). The caller must follow up with EndFrame using the new
// callee's FuncDefObj, exactly as for an ordinary call.
func TailRewrite(th *value.ThreadObj, callee value.Value, argc int) Frame {
	cur := Frame{Th: th, Base: th.CurFrameBase}
	if env := cur.Env(); env != nil {
		env.Detach()
	}
	_, prevSize := cur.sizes()
	ret, errS := cur.retErr()

	// Copy argument values into a scratch buffer first: the new
	// argument region may overlap the old local/env region.
	args := make([]value.Value, argc)
	copy(args, th.Stack[cur.Slot(0):cur.Slot(0)+int64(argc)])

	newTotal := int64(HeaderSize + argc)
	th.EnsureCapacity(cur.Base + newTotal - th.Count)

	th.Stack[cur.Base+hCallee] = callee
	th.Stack[cur.Base+hSizes] = value.MakeInt(pack(int32(newTotal), prevSize))
	th.Stack[cur.Base+hRetErr] = value.MakeInt(pack(ret, errS))
	th.Stack[cur.Base+hPC] = value.MakeInt(0)
	th.Stack[cur.Base+hEnv] = value.NilValue
	for i, v := range args {
		cur.Set(int64(i), v)
	}
	th.Count = cur.Base + newTotal
	return cur
}
