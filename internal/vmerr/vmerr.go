// Package vmerr defines the error type threaded through compilation
// and execution, grounded on the teacher's habit (internal/core,
// internal/gocore) of returning a plain error plus an accumulated
// warnings slice rather than a generic error interface everywhere.
package vmerr

import (
	"fmt"

	"github.com/sexpvm/sexpvm/internal/value"
)

// Status classifies where an Error originated (§6 "C-function
// protocol: (vm) -> status in {ok, error}", generalized to also cover
// compilation and parsing failures).
type Status int

const (
	StatusCompile Status = iota
	StatusRuntime
	StatusParse
)

func (s Status) String() string {
	switch s {
	case StatusCompile:
		return "compile"
	case StatusRuntime:
		return "runtime"
	case StatusParse:
		return "parse"
	default:
		return "status(?)"
	}
}

// Span locates an error within source text, when the offending form
// carries position information.
type Span struct {
	Line, Col int
}

func (s Span) String() string {
	if s.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Col)
}

// Error is the error type returned from Compile, Run, and the
// compiler's special-form handlers. Form holds a short rendering of
// the offending form (§4.5 "Failure semantics": "a descriptive compile
// error with the offending form").
//
// Raised, when not nil, is the value a `raise` form handed the
// runtime (§7 "A handler transfers control to its handler slot with
// the error value bound"). Errors originating from the interpreter
// itself (div-by-zero, a failed typecheck, ...) leave it nil; the
// handler binds a String of the error's full text (Error()) instead.
type Error struct {
	Status Status
	Msg    string
	Form   string
	Span   Span
	Raised value.Value
}

func (e *Error) Error() string {
	if e.Form == "" {
		return fmt.Sprintf("%s error: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("%s error: %s: %s", e.Status, e.Msg, e.Form)
}

func Compilef(form string, format string, args ...any) *Error {
	return &Error{Status: StatusCompile, Msg: fmt.Sprintf(format, args...), Form: form}
}

func Runtimef(format string, args ...any) *Error {
	return &Error{Status: StatusRuntime, Msg: fmt.Sprintf(format, args...)}
}

func Parsef(format string, args ...any) *Error {
	return &Error{Status: StatusParse, Msg: fmt.Sprintf(format, args...)}
}

// Raise builds the runtime error an explicit `raise` form produces,
// carrying v as the value a handler frame binds (§7).
func Raise(v value.Value) *Error {
	return &Error{Status: StatusRuntime, Msg: "raised", Raised: v}
}
