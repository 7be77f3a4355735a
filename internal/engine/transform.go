package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/tree"
)

// Func is a program written against the primitive entry points. It must
// reach numbers only through Add, Mul and Bind so that every transformation
// can observe its arithmetic.
type Func func(ctx context.Context, args ...Value) (Value, error)

// EvaluateConcrete runs f with the evaluating interpreter current.
func EvaluateConcrete(ctx context.Context, f Func, args ...Value) (Value, error) {
	return Run(ctx, evaluator, func(ctx context.Context) (Value, error) {
		return f(ctx, args...)
	})
}

// Differentiate returns f(primal) and the directional derivative of f at
// primal along tangent. primal may be nested; tangent must have the same
// structure.
func Differentiate(ctx context.Context, f Func, primal, tangent Value) (Value, Value, error) {
	return JVP(ctx, f, []Value{primal}, []Value{tangent})
}

// JVP is Differentiate for functions of several arguments.
//
// Returns an ARITY_MISMATCH error when the argument counts differ and a
// STRUCTURE_MISMATCH error when a tangent's shape differs from its primal.
func JVP(ctx context.Context, f Func, primals, tangents []Value) (Value, Value, error) {
	if len(primals) != len(tangents) {
		return nil, nil, ir.NewArityMismatch("tangents", len(primals), len(tangents))
	}

	j := newJVPInterpreter(ctx)
	args := make([]Value, len(primals))
	for i := range primals {
		pLeaves, pDef := tree.Flatten(primals[i])
		tLeaves, err := tree.FlattenUpTo(pDef, tangents[i])
		if err != nil {
			return nil, nil, fmt.Errorf("tangent %d: %w", i, err)
		}
		duals := make([]any, len(pLeaves))
		for k := range pLeaves {
			duals[k] = &Dual{owner: j, Primal: pLeaves[k], Tangent: tLeaves[k]}
		}
		if args[i], err = tree.Unflatten(pDef, duals); err != nil {
			return nil, nil, err
		}
	}

	out, err := Run(ctx, j, func(ctx context.Context) (Value, error) {
		return f(ctx, args...)
	})
	if err != nil {
		return nil, nil, err
	}

	leaves, def := tree.Flatten(out)
	ps := make([]any, len(leaves))
	ts := make([]any, len(leaves))
	for i, leaf := range leaves {
		d := j.lift(leaf)
		ps[i] = d.Primal
		ts[i] = d.Tangent
	}
	primalOut, err := tree.Unflatten(def, ps)
	if err != nil {
		return nil, nil, err
	}
	tangentOut, err := tree.Unflatten(def, ts)
	if err != nil {
		return nil, nil, err
	}
	return primalOut, tangentOut, nil
}

// BuildOption configures BuildGraph.
type BuildOption func(*buildConfig)

type buildConfig struct {
	avals        []*ir.Aval
	maxEquations int
	tracedFor    string
	argNames     []string
}

// WithInputAvals attaches abstract values to the graph inputs, one per
// input.
func WithInputAvals(avals ...*ir.Aval) BuildOption {
	return func(c *buildConfig) {
		c.avals = avals
	}
}

// WithMaxEquations limits the number of equations staging may emit.
// Zero means no limit. Exceeding it fails with EquationLimitError.
func WithMaxEquations(n int) BuildOption {
	return func(c *buildConfig) {
		c.maxEquations = n
	}
}

// WithTracedFor names the transformation in the graph's debug info.
// Default: "build_graph".
func WithTracedFor(name string) BuildOption {
	return func(c *buildConfig) {
		c.tracedFor = name
	}
}

// WithArgNames names the inputs in the graph's debug info, one per input.
func WithArgNames(names ...string) BuildOption {
	return func(c *buildConfig) {
		c.argNames = names
	}
}

// BuildGraph stages f over numInputs fresh input variables and returns the
// resulting graph. Every primitive call f makes becomes one equation in
// program order; f's result leaves become the outputs.
func BuildGraph(ctx context.Context, f Func, numInputs int, opts ...BuildOption) (*ir.Graph, error) {
	cfg := buildConfig{tracedFor: "build_graph"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.avals != nil && len(cfg.avals) != numInputs {
		return nil, ir.NewArityMismatch("input avals", numInputs, len(cfg.avals))
	}
	if cfg.argNames != nil && len(cfg.argNames) != numInputs {
		return nil, ir.NewArityMismatch("arg names", numInputs, len(cfg.argNames))
	}

	s := newStageInterpreter(ctx, cfg.maxEquations)
	args := make([]Value, numInputs)
	for i := range args {
		var aval *ir.Aval
		if cfg.avals != nil {
			aval = cfg.avals[i]
		}
		args[i] = s.builder.AddInput(aval)
	}

	out, err := Run(ctx, s, func(ctx context.Context) (Value, error) {
		return f(ctx, args...)
	})
	if err != nil {
		return nil, err
	}
	g, _, err := s.finish(out, cfg.tracedFor, cfg.argNames)
	return g, err
}

// finish turns f's result into graph outputs and assembles the graph.
func (s *StageInterpreter) finish(out Value, tracedFor string, argNames []string) (*ir.Graph, *tree.Def, error) {
	leaves, def := tree.Flatten(out)
	outputs := make([]ir.Atom, len(leaves))
	for i, leaf := range leaves {
		a, err := s.atom("", leaf)
		if err != nil {
			return nil, nil, fmt.Errorf("output %d: %w", i, err)
		}
		outputs[i] = a
	}

	g, err := s.builder.Build(outputs, ir.DebugInfo{
		TracedFor:   tracedFor,
		ArgNames:    argNames,
		ResultPaths: prefixPaths("result", tree.Paths(def)),
		TraceID:     s.id,
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Debug("graph staged",
		"trace", s.id,
		"traced_for", tracedFor,
		"inputs", len(g.Inputs),
		"equations", len(g.Equations),
		"outputs", len(g.Outputs),
	)
	return g, def, nil
}

func prefixPaths(prefix string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = prefix + p
	}
	return out
}
