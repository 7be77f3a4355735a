package ir

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes errors raised by the transformation core.
type ErrorCode string

const (
	// CodeTypeMismatch indicates a primitive received an argument the active
	// interpreter cannot handle.
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// CodeUnsupportedPrimitive indicates no handler is registered for an
	// (interpreter kind, primitive) pair.
	CodeUnsupportedPrimitive ErrorCode = "UNSUPPORTED_PRIMITIVE"

	// CodeUnboundVariable indicates a graph references a variable with no
	// binding. The graph is malformed.
	CodeUnboundVariable ErrorCode = "UNBOUND_VARIABLE"

	// CodeArityMismatch indicates a leaf or argument count differs from the
	// count a descriptor, graph or primitive expects.
	CodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// CodeStructureMismatch indicates a container shape differs from a
	// descriptor.
	CodeStructureMismatch ErrorCode = "STRUCTURE_MISMATCH"
)

// Error is the error type shared by every package of the core.
//
// None of these errors are transient. They signal malformed input or a
// missing extension and are surfaced to the caller without retry.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind names the interpreter kind involved, if any.
	Kind string

	// Primitive names the primitive involved, if any.
	Primitive Primitive

	// Details contains additional context.
	Details map[string]string
}

// Sentinels for errors.Is matching. Only the Code is compared.
var (
	ErrTypeMismatch         = &Error{Code: CodeTypeMismatch}
	ErrUnsupportedPrimitive = &Error{Code: CodeUnsupportedPrimitive}
	ErrUnboundVariable      = &Error{Code: CodeUnboundVariable}
	ErrArityMismatch        = &Error{Code: CodeArityMismatch}
	ErrStructureMismatch    = &Error{Code: CodeStructureMismatch}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	var ctx []string
	if e.Kind != "" {
		ctx = append(ctx, "kind="+e.Kind)
	}
	if e.Primitive != "" {
		ctx = append(ctx, "primitive="+string(e.Primitive))
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ctx = append(ctx, k+"="+e.Details[k])
		}
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsTypeMismatch returns true if err is a TYPE_MISMATCH error.
func IsTypeMismatch(err error) bool { return hasCode(err, CodeTypeMismatch) }

// IsUnsupportedPrimitive returns true if err is an UNSUPPORTED_PRIMITIVE error.
func IsUnsupportedPrimitive(err error) bool { return hasCode(err, CodeUnsupportedPrimitive) }

// IsUnboundVariable returns true if err is an UNBOUND_VARIABLE error.
func IsUnboundVariable(err error) bool { return hasCode(err, CodeUnboundVariable) }

// IsArityMismatch returns true if err is an ARITY_MISMATCH error.
func IsArityMismatch(err error) bool { return hasCode(err, CodeArityMismatch) }

// IsStructureMismatch returns true if err is a STRUCTURE_MISMATCH error.
func IsStructureMismatch(err error) bool { return hasCode(err, CodeStructureMismatch) }

// NewTypeMismatch creates a TYPE_MISMATCH error for a value of an
// unexpected Go type reaching an interpreter.
func NewTypeMismatch(kind string, p Primitive, v any, want string) *Error {
	return &Error{
		Code:      CodeTypeMismatch,
		Message:   fmt.Sprintf("cannot handle %T, want %s", v, want),
		Kind:      kind,
		Primitive: p,
	}
}

// NewUnsupportedPrimitive creates an UNSUPPORTED_PRIMITIVE error.
func NewUnsupportedPrimitive(kind string, p Primitive) *Error {
	return &Error{
		Code:      CodeUnsupportedPrimitive,
		Message:   fmt.Sprintf("no %s rule registered for %s", kind, p),
		Kind:      kind,
		Primitive: p,
	}
}

// NewUnboundVariable creates an UNBOUND_VARIABLE error for v.
func NewUnboundVariable(v Var, where string) *Error {
	return &Error{
		Code:    CodeUnboundVariable,
		Message: fmt.Sprintf("variable %s is not bound %s", v.Name(), where),
		Details: map[string]string{"var": v.Name()},
	}
}

// NewArityMismatch creates an ARITY_MISMATCH error.
func NewArityMismatch(what string, want, got int) *Error {
	return &Error{
		Code:    CodeArityMismatch,
		Message: fmt.Sprintf("%s: want %d, got %d", what, want, got),
		Details: map[string]string{
			"want": fmt.Sprintf("%d", want),
			"got":  fmt.Sprintf("%d", got),
		},
	}
}

// NewStructureMismatch creates a STRUCTURE_MISMATCH error.
func NewStructureMismatch(format string, args ...any) *Error {
	return &Error{
		Code:    CodeStructureMismatch,
		Message: fmt.Sprintf(format, args...),
	}
}
