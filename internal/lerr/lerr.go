// Package lerr implements the error model of §7: three kinds shared by
// the lexer/parser and the VM, each carrying a message value, formatted
// as "<source>:<line>: <text>" and propagated by a single throw entry
// point rather than per-site recovery. Layered on github.com/pkg/errors
// so a Go-level cause (e.g. a panic recovered at the dispatch loop
// boundary) keeps its stack trace for host debugging even though the
// Lua-visible text stays the plain "<source>:<line>: ..." string.
package lerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the three status codes of §6/§7.
type Kind int

const (
	OK Kind = iota
	Syntax
	Runtime
	Memory
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case Syntax:
		return "SYNTAX"
	case Runtime:
		return "RUNTIME"
	case Memory:
		return "MEMORY"
	default:
		return "UNKNOWN"
	}
}

// Error is the single error type for all three kinds. Message is the
// exact text that ends up as the value pushed on the VM stack (§7);
// cause, when present, is a pkg/errors-wrapped Go error kept only for
// host-side diagnostics (it is never part of Message).
type Error struct {
	Kind    Kind
	Source  string
	Line    int
	Lexeme  string // compile-time only: the token near which the error occurred
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

// Cause exposes the wrapped Go error, if any, for host tooling; cmd/lulu
// itself prints only Message. Implements the informal `Cause() error`
// interface github.com/pkg/errors recognizes.
func (e *Error) Cause() error { return e.cause }

func (e *Error) Unwrap() error { return e.cause }

// NewSyntax formats a compile-time error per §7:
// "<source>:<line>: <what> near '<lexeme>'".
func NewSyntax(source string, line int, lexeme, what string) *Error {
	msg := fmt.Sprintf("%s:%d: %s near '%s'", source, line, what, lexeme)
	return &Error{Kind: Syntax, Source: source, Line: line, Lexeme: lexeme, Message: msg, cause: errors.New(msg)}
}

// NewRuntime formats a run-time error per §7: "<source>:<line>: <what>".
func NewRuntime(source string, line int, what string) *Error {
	msg := fmt.Sprintf("%s:%d: %s", source, line, what)
	return &Error{Kind: Runtime, Source: source, Line: line, Message: msg, cause: errors.New(msg)}
}

// NewMemory wraps an allocator failure (§6: "must return a non-null
// pointer or the VM raises MEMORY and unwinds").
func NewMemory(context string) *Error {
	msg := "not enough memory"
	if context != "" {
		msg = fmt.Sprintf("not enough memory: %s", context)
	}
	return &Error{Kind: Memory, Message: msg, cause: errors.New(msg)}
}

// Wrap attaches a Go cause (e.g. a recovered panic) to msg without
// changing the Lua-visible text, preserving err's stack trace via
// pkg/errors.WithStack for host diagnostics.
func Wrap(kind Kind, source string, line int, what string, err error) *Error {
	e := &Error{Kind: kind, Source: source, Line: line, cause: errors.WithStack(err)}
	if source != "" {
		e.Message = fmt.Sprintf("%s:%d: %s", source, line, what)
	} else {
		e.Message = what
	}
	return e
}

// As extracts an *Error from a generic error, synthesizing a RUNTIME
// wrapper (with a Go-level stack trace attached) around anything that
// did not already originate from this package — e.g. a table operation
// in internal/object returning a plain sentinel error.
func As(err error, source string, line int) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return Wrap(Runtime, source, line, err.Error(), err)
}
