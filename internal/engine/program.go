package engine

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/tree"
)

// Program is a staged function together with the shapes of its arguments
// and result.
type Program struct {
	Graph  *ir.Graph
	InDef  *tree.Def
	OutDef *tree.Def
}

// Trace stages f on arguments shaped like exampleArgs. Leaves that are
// ir.Aval or *ir.Aval give their input an abstract value; other leaves only
// contribute their position.
func Trace(ctx context.Context, f Func, exampleArgs ...Value) (*Program, error) {
	leaves, inDef := tree.Flatten([]any(exampleArgs))

	s := newStageInterpreter(ctx, 0)
	vars := make([]any, len(leaves))
	for i, leaf := range leaves {
		var aval *ir.Aval
		switch a := leaf.(type) {
		case ir.Aval:
			aval = &a
		case *ir.Aval:
			aval = a
		}
		vars[i] = s.builder.AddInput(aval)
	}
	rebuilt, err := tree.Unflatten(inDef, vars)
	if err != nil {
		return nil, err
	}
	args := rebuilt.([]any)

	out, err := Run(ctx, s, func(ctx context.Context) (Value, error) {
		return f(ctx, args...)
	})
	if err != nil {
		return nil, err
	}

	g, outDef, err := s.finish(out, "trace", prefixPaths("args", tree.Paths(inDef)))
	if err != nil {
		return nil, err
	}
	return &Program{Graph: g, InDef: inDef, OutDef: outDef}, nil
}

// Call evaluates the program under the current interpreter. args must have
// the traced structure; a different structure is a STRUCTURE_MISMATCH.
func (p *Program) Call(ctx context.Context, args ...Value) (Value, error) {
	leaves, err := tree.FlattenUpTo(p.InDef, []any(args))
	if err != nil {
		return nil, err
	}
	outs, err := evaluateFlat(ctx, p.Graph, leaves)
	if err != nil {
		return nil, err
	}
	return tree.Unflatten(p.OutDef, outs)
}

// Func returns Call as a Func.
func (p *Program) Func() Func {
	return p.Call
}

func (p *Program) String() string {
	return p.Graph.String()
}

// Partial fixes every argument of f except those at dynArgnums and returns
// the reduced function together with the dynamic arguments in dynArgnums
// order. Negative argnums count from the end.
func Partial(f Func, args []Value, dynArgnums ...int) (Func, []Value, error) {
	n := len(args)
	resolved := make([]int, len(dynArgnums))
	seen := make(map[int]bool, len(dynArgnums))
	for i, a := range dynArgnums {
		if a < -n || a >= n {
			return nil, nil, &ir.Error{
				Code:    ir.CodeArityMismatch,
				Message: fmt.Sprintf("argnum %d out of bounds for %d arguments", a, n),
			}
		}
		r := (a + n) % n
		if seen[r] {
			return nil, nil, fmt.Errorf("argnum %d repeated", a)
		}
		seen[r] = true
		resolved[i] = r
	}

	dyn := make([]Value, len(resolved))
	for i, r := range resolved {
		dyn[i] = args[r]
	}
	fixed := append([]Value(nil), args...)

	reduced := func(ctx context.Context, dynArgs ...Value) (Value, error) {
		if len(dynArgs) != len(resolved) {
			return nil, ir.NewArityMismatch("dynamic arguments", len(resolved), len(dynArgs))
		}
		full := append([]Value(nil), fixed...)
		for i, r := range resolved {
			full[r] = dynArgs[i]
		}
		return f(ctx, full...)
	}
	return reduced, dyn, nil
}

// Derivative differentiates f with respect to argument argnum at args, along
// a tangent of ones shaped like that argument.
func Derivative(ctx context.Context, f Func, argnum int, args ...Value) (Value, error) {
	g, dyn, err := Partial(f, args, argnum)
	if err != nil {
		return nil, err
	}
	ones, err := tree.Map(dyn[0], func(any) (any, error) { return 1.0, nil })
	if err != nil {
		return nil, err
	}
	_, tangent, err := Differentiate(ctx, g, dyn[0], ones)
	return tangent, err
}

// NthDerivative returns the nth derivative of f in its first argument.
// NthDerivative(f, 0) is f.
func NthDerivative(f Func, n int) Func {
	if n < 0 {
		return func(context.Context, ...Value) (Value, error) {
			return nil, fmt.Errorf("negative derivative order %d", n)
		}
	}
	if n == 0 {
		return f
	}
	inner := NthDerivative(f, n-1)
	return func(ctx context.Context, args ...Value) (Value, error) {
		return Derivative(ctx, inner, 0, args...)
	}
}
