package value

import "testing"

func TestInternLawWithinContent(t *testing.T) {
	a := NewString([]byte("hello"))
	b := NewString([]byte("hello"))
	if a == b {
		t.Fatal("scratch strings should not be the same object before interning")
	}
	if !a.EqualBytes(b.Bytes) {
		t.Fatal("content should match")
	}
	if HashOf(Of(a)) != HashOf(Of(b)) {
		t.Fatal("equal content must hash equal")
	}
}

func TestIntEqualsReal(t *testing.T) {
	if !Equal(MakeInt(3), MakeReal(3.0)) {
		t.Fatal("3 == 3.0 should hold")
	}
	if Equal(MakeInt(3), MakeReal(3.5)) {
		t.Fatal("3 == 3.5 should not hold")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NilValue, false},
		{MakeBool(false), false},
		{MakeBool(true), true},
		{MakeInt(0), true},
		{MakeReal(0), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestArrayPushPop(t *testing.T) {
	a := NewArray(0)
	for i := int64(0); i < 10; i++ {
		a.Push(MakeInt(i))
	}
	if a.Count != 10 {
		t.Fatalf("count = %d, want 10", a.Count)
	}
	for i := int64(9); i >= 0; i-- {
		v := a.Pop()
		if v.AsInt() != i {
			t.Fatalf("pop = %d, want %d", v.AsInt(), i)
		}
	}
	if a.Count != 0 {
		t.Fatalf("count after draining = %d, want 0", a.Count)
	}
	if v := a.Pop(); !v.IsNil() {
		t.Fatal("pop on empty array must return nil")
	}
	if a.Count != 0 {
		t.Fatal("pop on empty array must leave count at zero")
	}
}

func TestTablePutGetDelete(t *testing.T) {
	tb := NewTable(0)
	k1 := Of(NewSymbol([]byte("a")))
	k2 := Of(NewSymbol([]byte("b")))
	tb.Put(k1, MakeInt(1))
	tb.Put(k2, MakeInt(2))
	if v, ok := tb.Get(k1); !ok || v.AsInt() != 1 {
		t.Fatal("expected a -> 1")
	}
	tb.Delete(k1)
	if _, ok := tb.Get(k1); ok {
		t.Fatal("a should be gone")
	}
	if v, ok := tb.Get(k2); !ok || v.AsInt() != 2 {
		t.Fatal("b should still be present after deleting a")
	}
}

func TestStructNilKeysAndValuesAbsent(t *testing.T) {
	k := Of(NewSymbol([]byte("x")))
	s := NewStruct([]KV{
		{NilValue, MakeInt(1)},
		{k, NilValue},
		{Of(NewSymbol([]byte("y"))), MakeInt(2)},
	})
	if s.Length != 1 {
		t.Fatalf("length = %d, want 1 (only y:2 should survive)", s.Length)
	}
	if _, ok := s.Get(k); ok {
		t.Fatal("x should be absent (its value was nil)")
	}
}

func TestStructContentHashOrderIndependent(t *testing.T) {
	a := Of(NewSymbol([]byte("a")))
	b := Of(NewSymbol([]byte("b")))
	s1 := NewStruct([]KV{{a, MakeInt(1)}, {b, MakeInt(2)}})
	s2 := NewStruct([]KV{{b, MakeInt(2)}, {a, MakeInt(1)}})
	if s1.Hash != s2.Hash {
		t.Fatal("structurally equal structs built in different order must hash equal")
	}
	if !s1.EqualPairs(s2.Pairs()) {
		t.Fatal("pairs should match regardless of insertion order")
	}
}

func TestFuncEnvDetach(t *testing.T) {
	th := NewThread(16)
	th.Stack[2] = MakeInt(42)
	th.Count = 4
	env := &FuncEnvObj{Thread: th, StackOffset: 2, Size: 2}
	env.Detach()
	if env.Thread != nil {
		t.Fatal("thread must be cleared after detach")
	}
	if env.StackOffset != env.Size {
		t.Fatal("stack_offset must equal size after detach")
	}
	if env.Get(0).AsInt() != 42 {
		t.Fatal("detached values must preserve stack contents")
	}
	env.Detach() // idempotent
	if env.Get(0).AsInt() != 42 {
		t.Fatal("second detach must be a no-op")
	}
}
