package wire_test

import (
	"bytes"
	"testing"

	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/wire"
)

func roundTrip(t *testing.T, cache *intern.Cache, v value.Value) value.Value {
	t.Helper()
	var buf bytes.Buffer
	if err := wire.NewWriter(&buf).WriteValue(v); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	got, err := wire.NewReader(&buf, cache).ReadValue()
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cache := intern.New()
	cases := []value.Value{
		value.NilValue,
		value.MakeBool(true),
		value.MakeBool(false),
		value.MakeInt(0),
		value.MakeInt(-100),
		value.MakeInt(100),
		value.MakeInt(101),
		value.MakeInt(-101),
		value.MakeInt(1 << 40),
		value.MakeReal(3.5),
		value.MakeReal(-0.0),
	}
	for _, want := range cases {
		got := roundTrip(t, cache, want)
		if !value.Equal(got, want) || got.Tag() != want.Tag() {
			t.Errorf("roundTrip(%v) = %v (%s), want %v (%s)", want, got, got.Tag(), want, want.Tag())
		}
	}
}

// TestSmallIntWireShape confirms §6's exact byte-level claim: integers
// in [-100, 100] are a single byte, with no tag prefix at all.
func TestSmallIntWireShape(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.NewWriter(&buf).WriteValue(value.MakeInt(-100)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if buf.Len() != 1 || buf.Bytes()[0] != 0 {
		t.Fatalf("expected single byte 0x00 for -100, got %v", buf.Bytes())
	}
	buf.Reset()
	if err := wire.NewWriter(&buf).WriteValue(value.MakeInt(100)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if buf.Len() != 1 || buf.Bytes()[0] != 200 {
		t.Fatalf("expected single byte 0xC8 for 100, got %v", buf.Bytes())
	}
}

func TestRoundTripStringAndSymbol(t *testing.T) {
	cache := intern.New()
	str := value.Of(value.NewString([]byte("hello")))
	sym := value.Of(value.NewSymbol([]byte(":done")))

	gotStr := roundTrip(t, cache, str)
	if gotStr.Tag() != value.TagString || !gotStr.AsObj().(*value.String).EqualBytes([]byte("hello")) {
		t.Fatalf("string round-trip failed: %v", gotStr)
	}
	gotSym := roundTrip(t, cache, sym)
	if gotSym.Tag() != value.TagSymbol || !gotSym.AsObj().(*value.Symbol).EqualBytes([]byte(":done")) {
		t.Fatalf("symbol round-trip failed: %v", gotSym)
	}
}

// TestRoundTripInterns confirms a decoded aggregate lands in the same
// cache as a live one built with identical content, per the intern
// law (§4.2, §8 property 1).
func TestRoundTripInterns(t *testing.T) {
	cache := intern.New()
	live, _ := cache.Add(value.NewString([]byte("shared")))
	decoded := roundTrip(t, cache, value.Of(value.NewString([]byte("shared"))))
	if decoded.AsObj() != live {
		t.Fatalf("expected decoded string to share the live string's canonical pointer")
	}
}

func TestRoundTripTupleAndStruct(t *testing.T) {
	cache := intern.New()
	tup := value.NewTuple([]value.Value{value.MakeInt(1), value.MakeInt(2), value.MakeReal(3.5)})
	got := roundTrip(t, cache, value.Of(tup))
	gotTup, ok := got.AsObj().(*value.Tuple)
	if !ok || !gotTup.EqualElems(tup.Elems) {
		t.Fatalf("tuple round-trip failed: %v", got)
	}

	aSym := value.NewSymbol([]byte(":a"))
	canonA, _ := cache.Add(aSym)
	s := value.NewStruct([]value.KV{{Key: value.Of(canonA), Val: value.MakeInt(1)}})
	got = roundTrip(t, cache, value.Of(s))
	gotStruct, ok := got.AsObj().(*value.StructVal)
	if !ok || !gotStruct.EqualPairs(s.Pairs()) {
		t.Fatalf("struct round-trip failed: %v", got)
	}
}

func TestRoundTripArrayAndBuffer(t *testing.T) {
	cache := intern.New()
	arr := value.NewArray(0)
	arr.Push(value.MakeInt(1))
	arr.Push(value.MakeInt(2))
	arr.Push(value.MakeInt(3))
	got := roundTrip(t, cache, value.Of(arr))
	gotArr, ok := got.AsObj().(*value.Array)
	if !ok || gotArr.Count != 3 {
		t.Fatalf("array round-trip failed: %v", got)
	}

	buf := value.NewBuffer(0)
	buf.PushBytes([]byte("abc"))
	got = roundTrip(t, cache, value.Of(buf))
	gotBuf, ok := got.AsObj().(*value.Buffer)
	if !ok || string(gotBuf.Bytes()) != "abc" {
		t.Fatalf("buffer round-trip failed: %v", got)
	}
}

func TestRoundTripTable(t *testing.T) {
	cache := intern.New()
	tbl := value.NewTable(0)
	tbl.Put(value.MakeInt(1), value.MakeInt(10))
	tbl.Put(value.MakeInt(2), value.MakeInt(20))
	got := roundTrip(t, cache, value.Of(tbl))
	gotTbl, ok := got.AsObj().(*value.Table)
	if !ok || gotTbl.Count != 2 {
		t.Fatalf("table round-trip failed: %v", got)
	}
	if v, ok := gotTbl.Get(value.MakeInt(1)); !ok || v.AsInt() != 10 {
		t.Fatalf("table entry 1 missing or wrong after round-trip: %v", v)
	}
}

// TestCyclicArrayRoundTrip confirms a self-referential array survives
// Encode/Decode via a backref instead of recursing forever (§6
// "enabling cycles").
func TestCyclicArrayRoundTrip(t *testing.T) {
	cache := intern.New()
	arr := value.NewArray(1)
	arr.Push(value.MakeInt(0))
	arr.Set(0, value.Of(arr))

	var buf bytes.Buffer
	if err := wire.NewWriter(&buf).WriteValue(value.Of(arr)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	got, err := wire.NewReader(&buf, cache).ReadValue()
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	gotArr := got.AsObj().(*value.Array)
	self, ok := gotArr.Get(0)
	if !ok || self.AsObj() != gotArr {
		t.Fatalf("expected array's element 0 to be itself after round-trip, got %v", self)
	}
}

func TestSharedTupleDedupsViaBackref(t *testing.T) {
	cache := intern.New()
	shared, _ := cache.Add(value.NewTuple([]value.Value{value.MakeInt(1)}))
	pair := value.NewTuple([]value.Value{value.Of(shared), value.Of(shared)})

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := w.WriteValue(value.Of(pair)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	got, err := wire.NewReader(&buf, cache).ReadValue()
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	gotPair := got.AsObj().(*value.Tuple)
	if gotPair.Elems[0].AsObj() != gotPair.Elems[1].AsObj() {
		t.Fatalf("expected both elements to decode to the same canonical tuple")
	}
}

func TestFunctionValueRejected(t *testing.T) {
	cache := intern.New()
	fn := value.MakeCFunction("noop", func(value.NativeContext) {})
	var buf bytes.Buffer
	if err := wire.NewWriter(&buf).WriteValue(fn); err == nil {
		t.Fatalf("expected an error encoding a cfunction value")
	}
	_ = cache
}
