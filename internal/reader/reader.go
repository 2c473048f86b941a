// Package reader is the external collaborator named in §1 ("source-text
// tokenisation/parsing (assumed to yield a tree of atomic values and
// indexed/dictionary aggregates)"): it is not part of the managed core
// and the compiler never imports it. cmd/sexpvm links it in because a
// CLI has to get forms.Form trees from somewhere; an embedder wiring
// the core into a larger host is free to supply its own.
//
// The surface syntax is the minimal one the compiler's forms already
// assume: `(...)` a tuple, `[...]` an array literal, `{...}` a dict
// literal of alternating key/value forms, `"..."` a string, `:name` a
// keyword (read as an ordinary symbol whose text starts with `:`, per
// value.Symbol's doc comment: "used for identifiers and keywords"),
// `;` to end of line a comment, and bare tokens parsed as int, real,
// true/false, nil, or else a symbol.
package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sexpvm/sexpvm/internal/forms"
	"github.com/sexpvm/sexpvm/internal/value"
)

// Reader tokenizes and parses one source buffer into a sequence of
// top-level forms, tracking line/column the way forms.Span requires.
type Reader struct {
	src  []rune
	pos  int
	line int
	col  int
}

func New(src string) *Reader {
	return &Reader{src: []rune(src), line: 1, col: 1}
}

// ReadAll parses every top-level form in the buffer, the shape `run`
// and `disasm` want: a whole file compiled as a sequence of
// definitions and expressions.
func ReadAll(src string) ([]forms.Form, error) {
	r := New(src)
	var out []forms.Form
	for {
		r.skipSpace()
		if r.atEOF() {
			return out, nil
		}
		f, err := r.readForm()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}

// ReadOne parses exactly one top-level form and reports how much of
// src it consumed, the shape the REPL wants: read one line's worth of
// input, evaluate it, print the result, repeat.
func ReadOne(src string) (forms.Form, int, error) {
	r := New(src)
	r.skipSpace()
	if r.atEOF() {
		return forms.Form{}, 0, fmt.Errorf("reader: empty input")
	}
	f, err := r.readForm()
	if err != nil {
		return forms.Form{}, 0, err
	}
	return f, r.pos, nil
}

func (r *Reader) atEOF() bool { return r.pos >= len(r.src) }

func (r *Reader) peek() rune {
	if r.atEOF() {
		return 0
	}
	return r.src[r.pos]
}

func (r *Reader) advance() rune {
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c
}

func (r *Reader) span() forms.Span { return forms.Span{Line: r.line, Col: r.col} }

func (r *Reader) skipSpace() {
	for !r.atEOF() {
		c := r.peek()
		switch {
		case c == ';':
			for !r.atEOF() && r.peek() != '\n' {
				r.advance()
			}
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ',':
			r.advance()
		default:
			return
		}
	}
}

func isDelim(c rune) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', '"', ';':
		return true
	}
	return c == 0 || c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ','
}

func (r *Reader) readForm() (forms.Form, error) {
	r.skipSpace()
	if r.atEOF() {
		return forms.Form{}, fmt.Errorf("reader: unexpected end of input at line %d", r.line)
	}
	sp := r.span()
	switch r.peek() {
	case '(':
		elems, err := r.readSeq('(', ')')
		if err != nil {
			return forms.Form{}, err
		}
		return forms.Tuple(elems, sp), nil
	case '[':
		elems, err := r.readSeq('[', ']')
		if err != nil {
			return forms.Form{}, err
		}
		return forms.Array(elems, sp), nil
	case '{':
		elems, err := r.readSeq('{', '}')
		if err != nil {
			return forms.Form{}, err
		}
		if len(elems)%2 != 0 {
			return forms.Form{}, fmt.Errorf("reader: dict literal at line %d needs an even number of forms", sp.Line)
		}
		pairs := make([]forms.Pair, 0, len(elems)/2)
		for i := 0; i+1 < len(elems); i += 2 {
			pairs = append(pairs, forms.Pair{Key: elems[i], Val: elems[i+1]})
		}
		return forms.Dict(pairs, sp), nil
	case ')', ']', '}':
		return forms.Form{}, fmt.Errorf("reader: unexpected %q at line %d", r.peek(), r.line)
	case '"':
		return r.readString(sp)
	default:
		return r.readAtom(sp)
	}
}

func (r *Reader) readSeq(open, close rune) ([]forms.Form, error) {
	r.advance() // consume open
	var out []forms.Form
	for {
		r.skipSpace()
		if r.atEOF() {
			return nil, fmt.Errorf("reader: unterminated %q starting at line %d", open, r.line)
		}
		if r.peek() == close {
			r.advance()
			return out, nil
		}
		f, err := r.readForm()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}

func (r *Reader) readString(sp forms.Span) (forms.Form, error) {
	r.advance() // opening quote
	var sb strings.Builder
	for {
		if r.atEOF() {
			return forms.Form{}, fmt.Errorf("reader: unterminated string starting at line %d", sp.Line)
		}
		c := r.advance()
		if c == '"' {
			break
		}
		if c == '\\' && !r.atEOF() {
			sb.WriteRune(unescape(r.advance()))
			continue
		}
		sb.WriteRune(c)
	}
	s := value.NewString([]byte(sb.String()))
	return forms.Atom(value.Of(s), sp), nil
}

func unescape(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (r *Reader) readAtom(sp forms.Span) (forms.Form, error) {
	start := r.pos
	for !r.atEOF() && !isDelim(r.peek()) {
		r.advance()
	}
	tok := string(r.src[start:r.pos])
	if tok == "" {
		return forms.Form{}, fmt.Errorf("reader: empty token at line %d", sp.Line)
	}
	return forms.Atom(atomValue(tok), sp), nil
}

func atomValue(tok string) value.Value {
	switch tok {
	case "nil":
		return value.NilValue
	case "true":
		return value.MakeBool(true)
	case "false":
		return value.MakeBool(false)
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return value.MakeInt(n)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil && looksNumeric(tok) {
		return value.MakeReal(f)
	}
	return value.Of(value.NewSymbol([]byte(tok)))
}

// looksNumeric guards ParseFloat against accepting symbols like "inf"
// or "nan", which Go's strconv happily parses as floats but which this
// language treats as plain identifiers.
func looksNumeric(tok string) bool {
	for _, c := range tok {
		switch {
		case c >= '0' && c <= '9':
		case c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return true
}
