package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/xform/internal/ir"
)

// EvaluateGraph evaluates g on inputs by binding each equation's primitive
// under the current interpreter, so graph evaluation is itself
// transformable. A single output is returned bare; several are returned as
// []any.
//
// Returns an ARITY_MISMATCH error for a wrong input count and an
// UNBOUND_VARIABLE error for a reference with no binding.
func EvaluateGraph(ctx context.Context, g *ir.Graph, inputs ...Value) (Value, error) {
	outs, err := evaluateFlat(ctx, g, inputs)
	if err != nil {
		return nil, err
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return outs, nil
}

func evaluateFlat(ctx context.Context, g *ir.Graph, inputs []Value) ([]any, error) {
	if len(inputs) != len(g.Inputs) {
		return nil, ir.NewArityMismatch("graph inputs", len(g.Inputs), len(inputs))
	}

	env := make(map[int]Value, len(g.Inputs)+len(g.Equations))
	for i, v := range g.Inputs {
		env[v.ID] = inputs[i]
	}

	resolve := func(a ir.Atom, where string) (Value, error) {
		switch a := a.(type) {
		case ir.Var:
			v, ok := env[a.ID]
			if !ok {
				return nil, ir.NewUnboundVariable(a, where)
			}
			return v, nil
		case ir.Literal:
			return a.Value, nil
		default:
			return nil, &ir.Error{
				Code:    ir.CodeTypeMismatch,
				Message: fmt.Sprintf("invalid atom %T %s", a, where),
			}
		}
	}

	for i, eqn := range g.Equations {
		where := fmt.Sprintf("in equation %d (%s)", i, eqn.Primitive)
		args := make([]Value, len(eqn.Args))
		for j, a := range eqn.Args {
			v, err := resolve(a, where)
			if err != nil {
				return nil, err
			}
			args[j] = v
		}
		out, err := Bind(ctx, eqn.Primitive, args...)
		if err != nil {
			return nil, fmt.Errorf("equation %d (%s): %w", i, eqn.Primitive, err)
		}
		env[eqn.Result.ID] = out
	}

	outs := make([]any, len(g.Outputs))
	for i, a := range g.Outputs {
		v, err := resolve(a, fmt.Sprintf("in output %d", i))
		if err != nil {
			return nil, err
		}
		outs[i] = v
	}
	return outs, nil
}

// EvaluateBatch evaluates g once per batch of inputs on up to workers
// goroutines (all at once when workers <= 0). Results are in batch order.
// The first failure cancels the remaining batches.
//
// Each goroutine shares ctx's interpreter stack, which is read-only, so the
// batch may run under evaluation or differentiation but not while any
// interpreter on the stack is staging.
func EvaluateBatch(ctx context.Context, g *ir.Graph, batches [][]Value, workers int) ([]Value, error) {
	if staging(ctx) {
		return nil, ErrConcurrentStaging
	}

	results := make([]Value, len(batches))
	eg, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, inputs := range batches {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := EvaluateGraph(gctx, g, inputs...)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("batch evaluated",
		"batches", len(batches),
		"workers", workers,
		"equations", len(g.Equations),
	)
	return results, nil
}
