package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/prim"
)

// Value is anything a primitive can receive: a float64, a *Dual, an ir.Var
// or an ir.Literal.
type Value = any

// Interpreter applies primitives under one transformation.
type Interpreter interface {
	// Kind selects the rule table used for primitives.
	Kind() prim.Kind

	// ID identifies this interpreter instance in logs and debug info.
	ID() string

	// Interpret applies p to args. ctx has this interpreter on top.
	Interpret(ctx context.Context, p ir.Primitive, args []Value) (Value, error)
}

type frame struct {
	interp Interpreter
	parent *frame
	depth  int
}

type frameKey struct{}

// evaluator is the implicit bottom frame of every context.
var evaluator Interpreter = EvalInterpreter{}

// WithInterpreter returns a child of ctx in which interp is current.
// ctx itself is unchanged.
func WithInterpreter(ctx context.Context, interp Interpreter) context.Context {
	parent, _ := ctx.Value(frameKey{}).(*frame)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	return context.WithValue(ctx, frameKey{}, &frame{interp: interp, parent: parent, depth: depth})
}

// Current returns the interpreter on top of ctx's stack, or the evaluating
// interpreter when none was pushed.
func Current(ctx context.Context) Interpreter {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		return f.interp
	}
	return evaluator
}

// Depth returns the number of interpreters pushed onto ctx.
func Depth(ctx context.Context) int {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		return f.depth
	}
	return 0
}

// staging reports whether any interpreter on ctx's stack is staging. An
// interpreter lower on the stack still receives primitives forwarded by
// those above it.
func staging(ctx context.Context) bool {
	f, _ := ctx.Value(frameKey{}).(*frame)
	for ; f != nil; f = f.parent {
		if f.interp.Kind() == prim.Stage {
			return true
		}
	}
	return false
}

// Run calls fn with interp current. The caller's ctx still names the
// previous interpreter once Run returns, whether fn returned, failed or
// panicked.
func Run(ctx context.Context, interp Interpreter, fn func(ctx context.Context) (Value, error)) (Value, error) {
	inner := WithInterpreter(ctx, interp)
	slog.Debug("entering interpreter",
		"kind", interp.Kind(),
		"trace", interp.ID(),
		"depth", Depth(inner),
	)
	return fn(inner)
}

type registryKey struct{}

// WithRegistry returns a context whose primitives are looked up in reg.
// reg should be sealed.
func WithRegistry(ctx context.Context, reg *prim.Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, reg)
}

// RegistryFrom returns the registry carried by ctx, or DefaultRegistry.
func RegistryFrom(ctx context.Context) *prim.Registry {
	if reg, ok := ctx.Value(registryKey{}).(*prim.Registry); ok && reg != nil {
		return reg
	}
	return DefaultRegistry()
}
