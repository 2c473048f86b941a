package frame

import (
	"testing"

	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
)

func TestBeginEndPopRoundTrip(t *testing.T) {
	th := value.NewThread(64)
	ic := intern.New()

	f := BeginFrame(th, value.NilValue, 2, 5, 6)
	f.Set(0, value.MakeInt(10))
	f.Set(1, value.MakeInt(20))

	def := &value.FuncDefObj{Name: "f", Arity: 2, NumLocals: 3}
	EndFrame(f, def, 2, nil, ic)

	if f.ReturnSlot() != 5 || f.ErrorSlot() != 6 {
		t.Fatalf("retErr = (%d,%d), want (5,6)", f.ReturnSlot(), f.ErrorSlot())
	}
	if f.Get(0).AsInt() != 10 || f.Get(1).AsInt() != 20 {
		t.Fatal("existing argument slots clobbered by EndFrame padding")
	}
	if !f.Get(2).IsNil() {
		t.Fatal("slot beyond argc should be padded with nil")
	}
	if f.Size() != int64(HeaderSize+def.NumLocals) {
		t.Fatalf("frame size = %d, want %d", f.Size(), HeaderSize+def.NumLocals)
	}
	if th.Count != f.Base+f.Size() {
		t.Fatalf("thread Count = %d, want %d", th.Count, f.Base+f.Size())
	}

	PopFrame(f)
	if th.Count != f.Base {
		t.Fatalf("Count after pop = %d, want %d (back to base)", th.Count, f.Base)
	}
}

func TestNestedFramesReconstructChain(t *testing.T) {
	th := value.NewThread(64)
	ic := intern.New()

	outer := BeginFrame(th, value.NilValue, 0, -1, -1)
	EndFrame(outer, &value.FuncDefObj{NumLocals: 1}, 0, nil, ic)

	inner := BeginFrame(th, value.NilValue, 0, 0, 1)
	EndFrame(inner, &value.FuncDefObj{NumLocals: 2}, 0, nil, ic)

	if inner.PrevSize() != outer.Size() {
		t.Fatalf("inner.PrevSize() = %d, want outer.Size() = %d", inner.PrevSize(), outer.Size())
	}

	PopFrame(inner)
	if th.CurFrameBase != outer.Base {
		t.Fatalf("CurFrameBase after pop = %d, want outer.Base = %d", th.CurFrameBase, outer.Base)
	}
	if th.Count != inner.Base {
		t.Fatalf("Count after pop = %d, want inner.Base = %d", th.Count, inner.Base)
	}
}

// TestVarargPacking mirrors the §8 scenario: calling a variadic
// function (fn [x & xs] (length xs)) with four arguments packs the
// three surplus arguments into a single interned tuple at slot 1.
func TestVarargPacking(t *testing.T) {
	th := value.NewThread(64)
	ic := intern.New()

	f := BeginFrame(th, value.NilValue, 4, -1, -1)
	f.Set(0, value.MakeInt(1))
	f.Set(1, value.MakeInt(2))
	f.Set(2, value.MakeInt(3))
	f.Set(3, value.MakeInt(4))

	def := &value.FuncDefObj{Name: "f", Arity: 1, NumLocals: 2, Vararg: true}
	EndFrame(f, def, 4, nopAllocator{}, ic)

	if f.Get(0).AsInt() != 1 {
		t.Fatalf("fixed arg slot = %v, want 1", f.Get(0))
	}
	tupObj, ok := f.Get(1).AsObj().(*value.Tuple)
	if !ok {
		t.Fatalf("vararg slot is not a tuple: %#v", f.Get(1))
	}
	if len(tupObj.Elems) != 3 {
		t.Fatalf("vararg tuple length = %d, want 3", len(tupObj.Elems))
	}
	want := []int64{2, 3, 4}
	for i, w := range want {
		if tupObj.Elems[i].AsInt() != w {
			t.Fatalf("vararg elem %d = %v, want %d", i, tupObj.Elems[i], w)
		}
	}
}

func TestVarargPackingNoSurplus(t *testing.T) {
	th := value.NewThread(64)
	ic := intern.New()

	f := BeginFrame(th, value.NilValue, 1, -1, -1)
	f.Set(0, value.MakeInt(7))

	def := &value.FuncDefObj{Name: "f", Arity: 1, NumLocals: 2, Vararg: true}
	EndFrame(f, def, 1, nopAllocator{}, ic)

	tupObj, ok := f.Get(1).AsObj().(*value.Tuple)
	if !ok {
		t.Fatalf("vararg slot is not a tuple: %#v", f.Get(1))
	}
	if len(tupObj.Elems) != 0 {
		t.Fatalf("vararg tuple length = %d, want 0", len(tupObj.Elems))
	}
}

// TestTailRewriteConstantDepth exercises self-tail-recursion: repeated
// TailRewrite + EndFrame calls on the same thread must never grow
// the frame's base beyond the original frame (§8 property 6).
func TestTailRewriteConstantDepth(t *testing.T) {
	th := value.NewThread(16)
	ic := intern.New()

	f := BeginFrame(th, value.NilValue, 1, 0, 1)
	f.Set(0, value.MakeInt(100))
	def := &value.FuncDefObj{Name: "loop", Arity: 1, NumLocals: 1}
	EndFrame(f, def, 1, nil, ic)
	base := f.Base

	for i := 0; i < 1000; i++ {
		cur := Frame{Th: th, Base: th.CurFrameBase}
		nf := TailRewrite(th, value.NilValue, 1)
		if nf.Base != base {
			t.Fatalf("iteration %d: frame base moved from %d to %d", i, base, nf.Base)
		}
		if nf.ReturnSlot() != cur.ReturnSlot() || nf.ErrorSlot() != cur.ErrorSlot() {
			t.Fatalf("iteration %d: return/error slot not preserved across tail call", i)
		}
		EndFrame(nf, def, 1, nil, ic)
	}

	if th.CurFrameBase != base {
		t.Fatalf("CurFrameBase drifted to %d, want %d", th.CurFrameBase, base)
	}
}

func TestTailRewritePreservesPrevSize(t *testing.T) {
	th := value.NewThread(16)
	ic := intern.New()

	outer := BeginFrame(th, value.NilValue, 0, -1, -1)
	EndFrame(outer, &value.FuncDefObj{NumLocals: 2}, 0, nil, ic)

	inner := BeginFrame(th, value.NilValue, 1, 0, 1)
	def := &value.FuncDefObj{Name: "g", Arity: 1, NumLocals: 1}
	EndFrame(inner, def, 1, nil, ic)

	nf := TailRewrite(th, value.NilValue, 1)
	EndFrame(nf, def, 1, nil, ic)

	if nf.PrevSize() != outer.Size() {
		t.Fatalf("PrevSize after tail rewrite = %d, want %d (unchanged)", nf.PrevSize(), outer.Size())
	}
}

type nopAllocator struct{}

func (nopAllocator) Register(value.Obj, int64) {}
