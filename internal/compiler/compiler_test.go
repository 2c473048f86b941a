package compiler_test

import (
	"testing"

	"github.com/sexpvm/sexpvm/internal/reader"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vm"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// compile parses src as a single top-level form and compiles it
// against a fresh VM, without running it — for exercising compile-time
// failures in isolation from interp.Run.
func compile(t *testing.T, src string) (*value.Function, error) {
	t.Helper()
	forms, err := reader.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll(%q): %v", src, err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected exactly one top-level form in %q, got %d", src, len(forms))
	}
	v := vm.New()
	return v.Compile(nil, forms[0])
}

func wantCompileError(t *testing.T, src string) *vmerr.Error {
	t.Helper()
	_, err := compile(t, src)
	if err == nil {
		t.Fatalf("compile(%q): expected an error, got none", src)
	}
	ve, ok := err.(*vmerr.Error)
	if !ok {
		t.Fatalf("compile(%q): expected *vmerr.Error, got %T", src, err)
	}
	if ve.Status != vmerr.StatusCompile {
		t.Fatalf("compile(%q): expected StatusCompile, got %s", src, ve.Status)
	}
	return ve
}

func TestUnknownSymbolIsCompileError(t *testing.T) {
	wantCompileError(t, `undefined-name`)
}

func TestIfWrongArityIsCompileError(t *testing.T) {
	wantCompileError(t, `(if true)`)
}

func TestDefTargetMustBeSymbol(t *testing.T) {
	wantCompileError(t, `(def 1 2)`)
}

func TestFnParamsMustBeArrayLiteral(t *testing.T) {
	wantCompileError(t, `(fn 1 2)`)
}

func TestArithRequiresTwoArguments(t *testing.T) {
	wantCompileError(t, `(+ 1)`)
}

func TestTrySecondArgumentMustBeSymbol(t *testing.T) {
	wantCompileError(t, `(try 1 2 3)`)
}

func TestTryWrongArityIsCompileError(t *testing.T) {
	wantCompileError(t, `(try 1 err)`)
}

func TestRaiseRequiresExactlyOneArgument(t *testing.T) {
	wantCompileError(t, `(raise)`)
}

func TestDefmacroParamsMustBeArrayLiteral(t *testing.T) {
	wantCompileError(t, `(defmacro m 1 2)`)
}

// TestMacroExpansionIdentity exercises §4.5's expansion loop end to
// end: the macro's body returns its quoted argument form unchanged,
// which compileTuple must recompile rather than treat as a literal
// value, so the call below still performs the addition.
func TestMacroExpansionIdentity(t *testing.T) {
	forms, err := reader.ReadAll(`(do (defmacro ident [x] x) (ident (+ 1 2)))`)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	v := vm.New()
	result, err := v.CompileAndRun(nil, forms[0])
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.Tag() != value.TagInt || result.AsInt() != 3 {
		t.Fatalf("expected int 3, got %s %v", result.Tag(), result)
	}
}

// TestMacroExpansionExceedsDepth defines a macro whose expansion
// always reproduces a call to itself, forcing expandMacro's loop past
// maxMacroDepth, and checks the expansion fails with a StatusCompile
// error (§4.5 "Macro expansion").
func TestMacroExpansionExceedsDepth(t *testing.T) {
	forms, err := reader.ReadAll(`(do (defmacro loopy [] (quote (loopy))) (loopy))`)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	v := vm.New()
	_, err = v.CompileAndRun(nil, forms[0])
	if err == nil {
		t.Fatal("expected a compile error from unbounded macro expansion")
	}
	ve, ok := err.(*vmerr.Error)
	if !ok {
		t.Fatalf("expected *vmerr.Error, got %T", err)
	}
	if ve.Status != vmerr.StatusCompile {
		t.Fatalf("expected StatusCompile, got %s: %v", ve.Status, ve)
	}
}
