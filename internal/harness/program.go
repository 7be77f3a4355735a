package harness

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/engine"
	"github.com/roach88/xform/internal/ir"
)

// Func compiles the program into an engine.Func. Every step binds its
// primitive through the current interpreter, so the result can be
// evaluated, differentiated and staged like any hand-written function.
func (p *Program) Func() engine.Func {
	return func(ctx context.Context, args ...engine.Value) (engine.Value, error) {
		if len(args) != len(p.Inputs) {
			return nil, ir.NewArityMismatch("program arguments", len(p.Inputs), len(args))
		}
		env := make(map[string]engine.Value, len(p.Inputs)+len(p.Body))
		for i, name := range p.Inputs {
			env[name] = args[i]
		}

		for i, step := range p.Body {
			vals := make([]engine.Value, len(step.Args))
			for j, a := range step.Args {
				v, err := resolveTerm(a, env)
				if err != nil {
					return nil, fmt.Errorf("body[%d] (%s): %w", i, step.Let, err)
				}
				vals[j] = v
			}
			out, err := engine.Bind(ctx, ir.Primitive(step.Op), vals...)
			if err != nil {
				return nil, fmt.Errorf("body[%d] (%s): %w", i, step.Let, err)
			}
			env[step.Let] = out
		}

		return resolveTerm(p.Outputs, env)
	}
}

// resolveTerm replaces names with their values, keeping the term's shape.
func resolveTerm(v any, env map[string]engine.Value) (engine.Value, error) {
	switch x := v.(type) {
	case string:
		val, ok := env[x]
		if !ok {
			return nil, &ir.Error{
				Code:    ir.CodeUnboundVariable,
				Message: fmt.Sprintf("name %q is not bound", x),
			}
		}
		return val, nil
	case float64:
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := resolveTerm(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := resolveTerm(e, env)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported term %T", v)
	}
}

// jvpOf returns the function computing [f(args), df(args) . ones].
func jvpOf(f engine.Func) engine.Func {
	return func(ctx context.Context, args ...engine.Value) (engine.Value, error) {
		ones := make([]engine.Value, len(args))
		for i := range ones {
			ones[i] = 1.0
		}
		p, t, err := engine.JVP(ctx, f, args, ones)
		if err != nil {
			return nil, err
		}
		return []any{p, t}, nil
	}
}

// Stage builds the graph of the program, or of its forward derivative when
// jvp is set. Inputs are named after the program's inputs.
func (s *Scenario) Stage(ctx context.Context, jvp bool) (*ir.Graph, error) {
	f := s.Program.Func()
	tracedFor := "scenario:" + s.Name
	if jvp {
		f = jvpOf(f)
		tracedFor += ":jvp"
	}
	inputs := s.Program.Inputs
	return engine.BuildGraph(ctx, f, len(inputs),
		engine.WithTracedFor(tracedFor),
		engine.WithArgNames(inputs...),
	)
}
