package engine

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/prim"
)

// Dual is a primal/tangent pair owned by one differentiating interpreter.
type Dual struct {
	owner   *JVPInterpreter
	Primal  Value
	Tangent Value
}

// Owner returns the interpreter for which d is varying.
func (d *Dual) Owner() *JVPInterpreter { return d.owner }

func (d *Dual) String() string {
	return fmt.Sprintf("Dual(%v, %v)", d.Primal, d.Tangent)
}

// JVPInterpreter implements forward-mode differentiation. Its identity is
// its pointer; outer is the interpreter that was current when it was
// created.
type JVPInterpreter struct {
	id    string
	outer Interpreter
}

func newJVPInterpreter(ctx context.Context) *JVPInterpreter {
	return &JVPInterpreter{
		id:    traceIDsFrom(ctx).Generate(),
		outer: Current(ctx),
	}
}

// Kind implements Interpreter.
func (j *JVPInterpreter) Kind() prim.Kind { return prim.JVP }

// ID implements Interpreter.
func (j *JVPInterpreter) ID() string { return j.id }

// Outer returns the interpreter the rules run under.
func (j *JVPInterpreter) Outer() Interpreter { return j.outer }

// lift returns v unchanged if it is a Dual owned by j and otherwise wraps it
// as a constant with zero tangent.
func (j *JVPInterpreter) lift(v Value) *Dual {
	if d, ok := v.(*Dual); ok && d.owner == j {
		return d
	}
	return &Dual{owner: j, Primal: v, Tangent: 0.0}
}

// Interpret lifts args and runs p's jvp rule with outer current.
func (j *JVPInterpreter) Interpret(ctx context.Context, p ir.Primitive, args []Value) (Value, error) {
	rule, err := prim.Lookup[JVPRule](RegistryFrom(ctx), prim.JVP, p)
	if err != nil {
		return nil, err
	}
	primals := make([]Value, len(args))
	tangents := make([]Value, len(args))
	for i, a := range args {
		d := j.lift(a)
		primals[i] = d.Primal
		tangents[i] = d.Tangent
	}
	primal, tangent, err := rule(WithInterpreter(ctx, j.outer), primals, tangents)
	if err != nil {
		return nil, err
	}
	return &Dual{owner: j, Primal: primal, Tangent: tangent}, nil
}
