package engine

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/prim"
)

// StageInterpreter records every primitive call as an equation.
// It owns its builder and must not be shared between goroutines.
type StageInterpreter struct {
	id           string
	builder      *ir.Builder
	maxEquations int
}

func newStageInterpreter(ctx context.Context, maxEquations int) *StageInterpreter {
	return &StageInterpreter{
		id:           traceIDsFrom(ctx).Generate(),
		builder:      ir.NewBuilder(),
		maxEquations: maxEquations,
	}
}

// Kind implements Interpreter.
func (s *StageInterpreter) Kind() prim.Kind { return prim.Stage }

// ID implements Interpreter.
func (s *StageInterpreter) ID() string { return s.id }

// atom converts a value seen by this interpreter to an IR atom. Concrete
// numbers become literals and variables must come from this builder.
func (s *StageInterpreter) atom(p ir.Primitive, v Value) (ir.Atom, error) {
	switch x := v.(type) {
	case float64:
		return ir.Literal{Value: x}, nil
	case ir.Literal:
		return x, nil
	case ir.Var:
		if s.builder.Owns(x) {
			return x, nil
		}
		return nil, &ir.Error{
			Code:      ir.CodeTypeMismatch,
			Message:   fmt.Sprintf("variable %s belongs to another graph", x.Name()),
			Kind:      string(prim.Stage),
			Primitive: p,
		}
	default:
		return nil, ir.NewTypeMismatch(string(prim.Stage), p, v, "float64 or ir.Var")
	}
}

// Interpret emits `result = p(args...)` and returns the result variable.
func (s *StageInterpreter) Interpret(ctx context.Context, p ir.Primitive, args []Value) (Value, error) {
	rule, err := prim.Lookup[StageRule](RegistryFrom(ctx), prim.Stage, p)
	if err != nil {
		return nil, err
	}
	atoms := make([]ir.Atom, len(args))
	avals := make([]*ir.Aval, len(args))
	for i, a := range args {
		at, err := s.atom(p, a)
		if err != nil {
			return nil, err
		}
		atoms[i] = at
		if v, ok := at.(ir.Var); ok {
			avals[i] = v.Aval
		}
	}
	if s.maxEquations > 0 && s.builder.Len() >= s.maxEquations {
		return nil, &EquationLimitError{
			Trace:     s.id,
			Equations: s.builder.Len() + 1,
			Limit:     s.maxEquations,
		}
	}
	aval, err := rule(avals)
	if err != nil {
		return nil, err
	}
	return s.builder.Emit(p, atoms, aval), nil
}
