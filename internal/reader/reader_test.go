package reader

import (
	"testing"

	"github.com/sexpvm/sexpvm/internal/forms"
	"github.com/sexpvm/sexpvm/internal/value"
)

func TestReadAllArithmetic(t *testing.T) {
	fs, err := ReadAll(`(+ 1 2.5)`)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(fs) != 1 {
		t.Fatalf("expected 1 top-level form, got %d", len(fs))
	}
	f := fs[0]
	if f.Kind != forms.KindTuple || len(f.Elems) != 3 {
		t.Fatalf("expected a 3-element tuple, got %+v", f)
	}
	if name, ok := f.Elems[0].IsSymbol(); !ok || name != "+" {
		t.Fatalf("expected head symbol +, got %+v", f.Elems[0])
	}
	if f.Elems[1].Atom.Tag() != value.TagInt || f.Elems[1].Atom.AsInt() != 1 {
		t.Fatalf("expected int 1, got %+v", f.Elems[1].Atom)
	}
	if f.Elems[2].Atom.Tag() != value.TagReal || f.Elems[2].Atom.AsReal() != 2.5 {
		t.Fatalf("expected real 2.5, got %+v", f.Elems[2].Atom)
	}
}

func TestReadAllTailRecursion(t *testing.T) {
	src := `(fn loop [n] (if (= n 0) :done (loop (- n 1))))`
	fs, err := ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(fs) != 1 {
		t.Fatalf("expected 1 top-level form, got %d", len(fs))
	}
	fn := fs[0]
	if name, ok := fn.Elems[0].IsSymbol(); !ok || name != "fn" {
		t.Fatalf("expected fn special form, got %+v", fn.Elems[0])
	}
	params := fn.Elems[2]
	if params.Kind != forms.KindArray || len(params.Elems) != 1 {
		t.Fatalf("expected a one-element parameter array, got %+v", params)
	}
	ifForm := fn.Elems[3]
	tag := ifForm.Elems[2]
	if name, ok := tag.IsSymbol(); !ok || name != ":done" {
		t.Fatalf("expected keyword :done, got %+v", tag)
	}
}

func TestReadAllArrayAndDict(t *testing.T) {
	fs, err := ReadAll(`[1 2 3] {:a 1 :b 2}`)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(fs) != 2 {
		t.Fatalf("expected 2 top-level forms, got %d", len(fs))
	}
	if fs[0].Kind != forms.KindArray || len(fs[0].Elems) != 3 {
		t.Fatalf("expected a 3-element array, got %+v", fs[0])
	}
	if fs[1].Kind != forms.KindDict || len(fs[1].Pairs) != 2 {
		t.Fatalf("expected a 2-pair dict, got %+v", fs[1])
	}
	if name, ok := fs[1].Pairs[0].Key.IsSymbol(); !ok || name != ":a" {
		t.Fatalf("expected key :a, got %+v", fs[1].Pairs[0].Key)
	}
}

func TestReadAllString(t *testing.T) {
	fs, err := ReadAll(`"hello\nworld"`)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	s := fs[0].Atom.AsObj().(*value.String)
	if string(s.Bytes) != "hello\nworld" {
		t.Fatalf("expected escaped string, got %q", s.Bytes)
	}
}

func TestReadAllComment(t *testing.T) {
	fs, err := ReadAll("; a comment\n42 ; trailing\n")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(fs) != 1 || fs[0].Atom.AsInt() != 42 {
		t.Fatalf("expected single atom 42, got %+v", fs)
	}
}

func TestReadOneReportsConsumed(t *testing.T) {
	f, n, err := ReadOne(`(+ 1 1) (+ 2 2)`)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if f.Kind != forms.KindTuple {
		t.Fatalf("expected tuple, got %+v", f)
	}
	if n <= 0 || n >= len(`(+ 1 1) (+ 2 2)`) {
		t.Fatalf("expected partial consumption, got %d", n)
	}
}

func TestReadAllUnterminated(t *testing.T) {
	if _, err := ReadAll(`(+ 1 2`); err == nil {
		t.Fatalf("expected an error for unterminated tuple")
	}
}
