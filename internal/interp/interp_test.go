package interp_test

import (
	"testing"

	"github.com/sexpvm/sexpvm/internal/reader"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vm"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// run parses src as a single top-level form and compiles+runs it
// against a fresh VM, the same path internal/vm's own tests use.
func run(t *testing.T, src string) (value.Value, error) {
	t.Helper()
	forms, err := reader.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll(%q): %v", src, err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected exactly one top-level form in %q, got %d", src, len(forms))
	}
	v := vm.New()
	return v.CompileAndRun(nil, forms[0])
}

func wantRuntimeError(t *testing.T, src string) *vmerr.Error {
	t.Helper()
	_, err := run(t, src)
	if err == nil {
		t.Fatalf("run(%q): expected an error, got none", src)
	}
	ve, ok := err.(*vmerr.Error)
	if !ok {
		t.Fatalf("run(%q): expected *vmerr.Error, got %T", src, err)
	}
	if ve.Status != vmerr.StatusRuntime {
		t.Fatalf("run(%q): expected StatusRuntime, got %s", src, ve.Status)
	}
	return ve
}

func TestIntegerDivisionByZeroErrors(t *testing.T) {
	wantRuntimeError(t, `(/ 1 0)`)
}

func TestIntegerModByZeroErrors(t *testing.T) {
	wantRuntimeError(t, `(% 1 0)`)
}

// TestMinInt64DivNegOneOverflows covers §8's boundary behavior: the
// one int64 division whose mathematically correct result doesn't fit
// in int64, which Go's native `/` silently wraps rather than traps.
func TestMinInt64DivNegOneOverflows(t *testing.T) {
	wantRuntimeError(t, `(/ -9223372036854775808 -1)`)
}

func TestMinInt64ModNegOneOverflows(t *testing.T) {
	wantRuntimeError(t, `(% -9223372036854775808 -1)`)
}

func TestRealDivisionByZeroDoesNotError(t *testing.T) {
	got, err := run(t, `(/ 1.0 0.0)`)
	if err != nil {
		t.Fatalf("(/ 1.0 0.0): unexpected error %v", err)
	}
	if got.Tag() != value.TagReal {
		t.Fatalf("expected a real result, got %s", got.Tag())
	}
}

func TestBitwiseRequiresIntegerOperands(t *testing.T) {
	wantRuntimeError(t, `(band 1 2.5)`)
}

func TestCallOnNonFunctionErrors(t *testing.T) {
	wantRuntimeError(t, `(1 2 3)`)
}

// TestTryCatchesExplicitRaise exercises §7's propagation policy end to
// end: raise unwinds to the nearest enclosing try, binding the raised
// value to the handler symbol and resuming at the handler expression.
func TestTryCatchesExplicitRaise(t *testing.T) {
	got, err := run(t, `(try (raise 42) e e)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tag() != value.TagInt || got.AsInt() != 42 {
		t.Fatalf("expected int 42, got %s %v", got.Tag(), got)
	}
}

// TestTryCatchesInterpreterError confirms an error the interpreter
// itself raises (not an explicit `raise`) unwinds to a handler the
// same way, binding a descriptive string (errorValue's non-Raised
// path).
func TestTryCatchesInterpreterError(t *testing.T) {
	got, err := run(t, `(try (/ 1 0) e e)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tag() != value.TagString {
		t.Fatalf("expected a string error value, got %s %v", got.Tag(), got)
	}
}

// TestTryBodySuccessSkipsHandler confirms the jmp compileTry emits
// after the protected call is taken on the success path, so the
// handler expression never executes.
func TestTryBodySuccessSkipsHandler(t *testing.T) {
	got, err := run(t, `(try 1 e 2)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tag() != value.TagInt || got.AsInt() != 1 {
		t.Fatalf("expected int 1 (handler should not have run), got %s %v", got.Tag(), got)
	}
}

// TestNestedTryOnlyInnerHandlerRuns confirms unwindError stops at the
// nearest enclosing handler frame rather than the outermost one.
func TestNestedTryOnlyInnerHandlerRuns(t *testing.T) {
	got, err := run(t, `(try (try (raise 1) e (+ e 1)) e2 (+ e2 100))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tag() != value.TagInt || got.AsInt() != 2 {
		t.Fatalf("expected int 2 (only the inner handler should have run), got %s %v", got.Tag(), got)
	}
}

// TestUncaughtRaisePropagatesAsError confirms an uncaught raise
// unwinds past every frame and surfaces as a bare error from Run,
// carrying the raised value on vmerr.Error.Raised.
func TestUncaughtRaisePropagatesAsError(t *testing.T) {
	_, err := run(t, `(raise 99)`)
	if err == nil {
		t.Fatal("expected an uncaught raise to propagate as an error")
	}
	ve, ok := err.(*vmerr.Error)
	if !ok {
		t.Fatalf("expected *vmerr.Error, got %T", err)
	}
	if ve.Raised.Tag() != value.TagInt || ve.Raised.AsInt() != 99 {
		t.Fatalf("expected Raised to carry int 99, got %s %v", ve.Raised.Tag(), ve.Raised)
	}
}
