// Package forms represents the data-only contract between an
// external parser and the compiler (§4.5, §6): a form is an atomic
// value, a tuple (a call or special form), an indexed aggregate (array
// literal), or a dictionary aggregate (struct/table literal). The
// package only models the shape the compiler walks; it does not parse
// source text itself (Non-goal: the core does not ship a reader).
package forms

import "github.com/sexpvm/sexpvm/internal/value"

// Kind distinguishes the four form shapes the compiler dispatches on.
type Kind int

const (
	KindAtom Kind = iota
	KindTuple
	KindArray
	KindDict
)

// Pair is one key/value entry of a dictionary-aggregate form literal.
type Pair struct {
	Key Form
	Val Form
}

// Form is one node of the tree the compiler walks to produce a
// FuncDefObj. Atoms carry a scalar or symbol Value directly; the
// three aggregate kinds carry child Forms so nested literals compile
// without re-parsing.
type Form struct {
	Kind Kind
	Span Span

	Atom  value.Value
	Elems []Form // KindTuple, KindArray
	Pairs []Pair // KindDict
}

// Span records the source position a form came from, so compile
// errors can point back at it (§4.5 "Failure semantics").
type Span struct {
	Line, Col int
}

func Atom(v value.Value, span Span) Form {
	return Form{Kind: KindAtom, Atom: v, Span: span}
}

func Tuple(elems []Form, span Span) Form {
	return Form{Kind: KindTuple, Elems: elems, Span: span}
}

func Array(elems []Form, span Span) Form {
	return Form{Kind: KindArray, Elems: elems, Span: span}
}

func Dict(pairs []Pair, span Span) Form {
	return Form{Kind: KindDict, Pairs: pairs, Span: span}
}

// IsSymbol reports whether this form is an atom holding a symbol, and
// returns its name — the pattern the compiler uses to recognize
// special-form heads and bound identifiers.
func (f Form) IsSymbol() (string, bool) {
	if f.Kind != KindAtom || f.Atom.Tag() != value.TagSymbol {
		return "", false
	}
	return string(f.Atom.AsObj().(*value.Symbol).Bytes), true
}

// Head returns the first element of a tuple form, used to dispatch
// special forms and macro expansion.
func (f Form) Head() (Form, bool) {
	if f.Kind != KindTuple || len(f.Elems) == 0 {
		return Form{}, false
	}
	return f.Elems[0], true
}

// String renders a form compactly for inclusion in compile errors
// (§4.5 "a descriptive compile error with the offending form").
func (f Form) String() string {
	switch f.Kind {
	case KindAtom:
		return atomString(f.Atom)
	case KindTuple:
		return "(" + joinForms(f.Elems) + ")"
	case KindArray:
		return "[" + joinForms(f.Elems) + "]"
	case KindDict:
		s := "{"
		for i, p := range f.Pairs {
			if i > 0 {
				s += " "
			}
			s += p.Key.String() + " " + p.Val.String()
		}
		return s + "}"
	default:
		return "?"
	}
}

func joinForms(fs []Form) string {
	s := ""
	for i, f := range fs {
		if i > 0 {
			s += " "
		}
		s += f.String()
	}
	return s
}

func atomString(v value.Value) string {
	switch v.Tag() {
	case value.TagNil:
		return "nil"
	case value.TagBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.TagInt:
		return itoa(v.AsInt())
	case value.TagString:
		return string(v.AsObj().(*value.String).Bytes)
	case value.TagSymbol:
		return string(v.AsObj().(*value.Symbol).Bytes)
	default:
		return "<atom>"
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
