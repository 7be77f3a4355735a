package engine

import (
	"context"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/prim"
)

// EvalInterpreter computes concrete results. It is the default interpreter
// of every context and never delegates further.
type EvalInterpreter struct{}

// Kind implements Interpreter.
func (EvalInterpreter) Kind() prim.Kind { return prim.Eval }

// ID implements Interpreter.
func (EvalInterpreter) ID() string { return "eval" }

// Interpret requires every argument to be a float64.
func (EvalInterpreter) Interpret(ctx context.Context, p ir.Primitive, args []Value) (Value, error) {
	rule, err := prim.Lookup[EvalRule](RegistryFrom(ctx), prim.Eval, p)
	if err != nil {
		return nil, err
	}
	xs := make([]float64, len(args))
	for i, a := range args {
		x, ok := a.(float64)
		if !ok {
			return nil, ir.NewTypeMismatch(string(prim.Eval), p, a, "float64")
		}
		xs[i] = x
	}
	return rule(xs)
}
