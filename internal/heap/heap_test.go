package heap

import (
	"testing"

	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
)

type fakeRoots struct {
	vals []value.Value
}

func (f fakeRoots) GCRoots(yield func(value.Value)) {
	for _, v := range f.vals {
		yield(v)
	}
}

func TestSweepReclaimsUnreachable(t *testing.T) {
	ic := intern.New()
	h := New(ic, 0)

	kept := value.NewArray(0)
	h.Register(kept, 32)
	kept.Push(value.MakeInt(1))

	garbage := value.NewArray(0)
	h.Register(garbage, 32)

	roots := fakeRoots{vals: []value.Value{value.Of(kept)}}
	stats := h.Collect(roots)

	if stats.LiveObjects != 1 {
		t.Fatalf("live objects = %d, want 1", stats.LiveObjects)
	}
	if stats.BytesReclaimed < 32 {
		t.Fatalf("expected garbage array's bytes reclaimed, got %d", stats.BytesReclaimed)
	}
}

func TestSweepPurgesInternCache(t *testing.T) {
	ic := intern.New()
	h := New(ic, 0)

	s := value.NewString([]byte("temp"))
	canon, _ := ic.Add(s)
	h.Register(canon, 16)

	h.Collect(fakeRoots{}) // no roots: string is garbage

	if _, found := ic.LookupBytes(value.TagString, []byte("temp")); found {
		t.Fatal("intern cache entry should have been purged on sweep")
	}
}

func TestCycleDoesNotHang(t *testing.T) {
	ic := intern.New()
	h := New(ic, 0)

	th := value.NewThread(8)
	h.Register(th, 64)
	fn := &value.Function{Def: &value.FuncDefObj{Name: "loop"}}
	h.Register(fn.Def, 16)
	h.Register(fn, 16)
	env := &value.FuncEnvObj{Thread: th, StackOffset: 0, Size: 1}
	h.Register(env, 16)
	fn.Envs = []*value.FuncEnvObj{env}
	// Cycle: thread's stack holds the function, function's env points
	// back at the thread.
	th.Stack[0] = value.Of(fn)
	th.Count = 1

	roots := fakeRoots{vals: []value.Value{value.Of(th)}}
	stats := h.Collect(roots)
	if stats.LiveObjects != 4 {
		t.Fatalf("live objects = %d, want 4 (cycle must not be collected while rooted)", stats.LiveObjects)
	}
}
