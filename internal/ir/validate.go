package ir

import "fmt"

// Validate checks that g is well scoped single static assignment.
//
// Returns an UNBOUND_VARIABLE error for a reference to a variable that is not
// an input or the result of an earlier equation, and for a variable bound
// twice. Returns a TYPE_MISMATCH error for a nil atom.
func Validate(g *Graph) error {
	bound := make(map[int]bool, len(g.Inputs)+len(g.Equations))

	bind := func(v Var, where string) error {
		if bound[v.ID] {
			return &Error{
				Code:    CodeUnboundVariable,
				Message: fmt.Sprintf("variable %s bound more than once (%s)", v.Name(), where),
				Details: map[string]string{"var": v.Name()},
			}
		}
		bound[v.ID] = true
		return nil
	}

	check := func(a Atom, where string) error {
		switch a := a.(type) {
		case Var:
			if !bound[a.ID] {
				return NewUnboundVariable(a, where)
			}
		case Literal:
		default:
			return &Error{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("invalid atom %T %s", a, where),
			}
		}
		return nil
	}

	for i, v := range g.Inputs {
		if err := bind(v, fmt.Sprintf("input %d", i)); err != nil {
			return err
		}
	}

	for i, eqn := range g.Equations {
		where := fmt.Sprintf("in equation %d (%s)", i, eqn.Primitive)
		for _, a := range eqn.Args {
			if err := check(a, where); err != nil {
				return err
			}
		}
		if err := bind(eqn.Result, where); err != nil {
			return err
		}
	}

	for i, out := range g.Outputs {
		if err := check(out, fmt.Sprintf("in output %d", i)); err != nil {
			return err
		}
	}

	return nil
}
