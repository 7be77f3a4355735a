package engine

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/ir"
)

func TestEvaluateConcrete(t *testing.T) {
	out, err := EvaluateConcrete(context.Background(), foo, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out)
}

func TestEvaluateConcreteTypeMismatch(t *testing.T) {
	_, err := EvaluateConcrete(context.Background(), foo, "two")
	require.Error(t, err)
	assert.True(t, ir.IsTypeMismatch(err))
	assert.Contains(t, err.Error(), "kind=eval")
}

func TestDifferentiate(t *testing.T) {
	p, tan, err := Differentiate(context.Background(), foo, 2.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, p)
	assert.Equal(t, 7.0, tan)
}

func TestDifferentiateConstantFunction(t *testing.T) {
	constant := func(ctx context.Context, args ...Value) (Value, error) {
		return 5.0, nil
	}
	p, tan, err := Differentiate(context.Background(), constant, 2.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p)
	assert.Equal(t, 0.0, tan)
}

func TestNthDerivative(t *testing.T) {
	want := []float64{10, 7, 2, 0, 0}
	for n, w := range want {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			out, err := NthDerivative(foo, n)(context.Background(), 2.0)
			require.NoError(t, err)
			assert.Equal(t, w, out)
		})
	}

	_, err := NthDerivative(foo, -1)(context.Background(), 2.0)
	assert.Error(t, err)
}

func TestPerturbationConfusion(t *testing.T) {
	ctx := context.Background()

	// f(x) = x * d/dy[x] evaluated at y = 0.
	f := func(ctx context.Context, args ...Value) (Value, error) {
		x := args[0]
		_, inner, err := Differentiate(ctx, func(ctx context.Context, _ ...Value) (Value, error) {
			return x, nil
		}, 0.0, 1.0)
		if err != nil {
			return nil, err
		}
		return Mul(ctx, x, inner)
	}
	_, tan, err := Differentiate(ctx, f, 0.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tan)

	// g(x) = x * d/dy[x + y] at y = 1. The derivative is 1; reading the
	// captured x as varying in the inner derivative would give 2.
	g := func(ctx context.Context, args ...Value) (Value, error) {
		x := args[0]
		_, inner, err := Differentiate(ctx, func(ctx context.Context, ys ...Value) (Value, error) {
			return Add(ctx, x, ys[0])
		}, 1.0, 1.0)
		if err != nil {
			return nil, err
		}
		return Mul(ctx, x, inner)
	}
	_, tan, err = Differentiate(ctx, g, 1.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, tan)
}

func TestDifferentiateNested(t *testing.T) {
	ctx := context.Background()

	// f({w, b}) = [w * b, w + b]
	f := func(ctx context.Context, args ...Value) (Value, error) {
		m := args[0].(map[string]any)
		prod, err := Mul(ctx, m["w"], m["b"])
		if err != nil {
			return nil, err
		}
		sum, err := Add(ctx, m["w"], m["b"])
		if err != nil {
			return nil, err
		}
		return []any{prod, map[string]any{"sum": sum}}, nil
	}

	p, tan, err := Differentiate(ctx, f,
		map[string]any{"w": 3.0, "b": 4.0},
		map[string]any{"w": 1.0, "b": 0.0},
	)
	require.NoError(t, err)
	assert.Equal(t, []any{12.0, map[string]any{"sum": 7.0}}, p)
	assert.Equal(t, []any{4.0, map[string]any{"sum": 1.0}}, tan)
}

func TestDifferentiateTangentStructure(t *testing.T) {
	ctx := context.Background()
	_, _, err := Differentiate(ctx, foo, []any{1.0, 2.0}, []any{1.0})
	require.Error(t, err)
	assert.True(t, ir.IsStructureMismatch(err))

	_, _, err = JVP(ctx, foo, []Value{1.0}, nil)
	require.Error(t, err)
	assert.True(t, ir.IsArityMismatch(err))
}

func TestJVPSeveralArguments(t *testing.T) {
	// f(x, y) = x * y; along (1, 0) the derivative is y.
	f := func(ctx context.Context, args ...Value) (Value, error) {
		return Mul(ctx, args[0], args[1])
	}
	p, tan, err := JVP(context.Background(), f, []Value{3.0, 4.0}, []Value{1.0, 0.0})
	require.NoError(t, err)
	assert.Equal(t, 12.0, p)
	assert.Equal(t, 4.0, tan)
}

func TestDualOwnership(t *testing.T) {
	ctx := context.Background()
	j := newJVPInterpreter(ctx)
	other := newJVPInterpreter(ctx)

	own := &Dual{owner: j, Primal: 2.0, Tangent: 1.0}
	assert.Same(t, own, j.lift(own))

	foreign := &Dual{owner: other, Primal: 2.0, Tangent: 1.0}
	lifted := j.lift(foreign)
	assert.Same(t, j, lifted.Owner())
	assert.Same(t, foreign, lifted.Primal)
	assert.Equal(t, 0.0, lifted.Tangent)

	assert.Equal(t, "Dual(2, 1)", own.String())
	assert.Equal(t, EvalInterpreter{}, j.Outer())
}

func TestBuildGraph(t *testing.T) {
	ctx := context.Background()
	g, err := BuildGraph(ctx, foo, 1)
	require.NoError(t, err)

	assert.Len(t, g.Inputs, 1)
	assert.Len(t, g.Outputs, 1)
	assert.Equal(t, []ir.Primitive{ir.Add, ir.Mul}, g.Primitives())
	assert.Equal(t, fooGraphText, g.String())

	out, err := EvaluateGraph(ctx, g, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out)
}

func TestBuildGraphOptions(t *testing.T) {
	ctx := WithTraceIDs(context.Background(), NewFixedGenerator("stage-1"))
	f32 := &ir.Aval{DType: "f32", Shape: []int{3}}

	g, err := BuildGraph(ctx, foo, 1,
		WithInputAvals(f32),
		WithTracedFor("jit"),
		WithArgNames("x"),
	)
	require.NoError(t, err)

	assert.Equal(t, "a:f32[3] ->\nb:f32[3] = add(a, 3.0)\nc:f32[3] = mul(a, b)\nc\n", g.String())
	assert.Equal(t, ir.DebugInfo{
		TracedFor:   "jit",
		ArgNames:    []string{"x"},
		ResultPaths: []string{"result"},
		TraceID:     "stage-1",
	}, g.Debug)
}

func TestBuildGraphOptionArity(t *testing.T) {
	ctx := context.Background()
	_, err := BuildGraph(ctx, foo, 1, WithInputAvals(&ir.Aval{}, &ir.Aval{}))
	assert.True(t, ir.IsArityMismatch(err))

	_, err = BuildGraph(ctx, foo, 1, WithArgNames("x", "y"))
	assert.True(t, ir.IsArityMismatch(err))
}

func TestBuildGraphAvalMismatch(t *testing.T) {
	f := func(ctx context.Context, args ...Value) (Value, error) {
		return Add(ctx, args[0], args[1])
	}
	_, err := BuildGraph(context.Background(), f, 2, WithInputAvals(
		&ir.Aval{DType: "f32", Shape: []int{2}},
		&ir.Aval{DType: "f32", Shape: []int{3}},
	))
	require.Error(t, err)
	assert.True(t, ir.IsTypeMismatch(err))
}

func TestBuildGraphEquationLimit(t *testing.T) {
	_, err := BuildGraph(context.Background(), foo, 1, WithMaxEquations(1))
	require.Error(t, err)
	assert.True(t, IsEquationLimitError(err))

	var le *EquationLimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Equations)
	assert.Equal(t, 1, le.Limit)

	_, err = BuildGraph(context.Background(), foo, 1, WithMaxEquations(2))
	assert.NoError(t, err)
}

func TestBuildGraphNestedOutputs(t *testing.T) {
	f := func(ctx context.Context, args ...Value) (Value, error) {
		s, err := Add(ctx, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return map[string]any{"sum": s, "const": 1.5, "x": args[0]}, nil
	}
	g, err := BuildGraph(context.Background(), f, 2)
	require.NoError(t, err)

	assert.Equal(t, "a, b ->\nc = add(a, b)\n1.5, c, a\n", g.String())
	assert.Equal(t, []string{"result['const']", "result['sum']", "result['x']"}, g.Debug.ResultPaths)
}

func TestBuildGraphRejectsForeignValues(t *testing.T) {
	ctx := context.Background()
	var leaked Value
	_, err := BuildGraph(ctx, func(ctx context.Context, args ...Value) (Value, error) {
		leaked = args[0]
		return args[0], nil
	}, 1)
	require.NoError(t, err)

	_, err = BuildGraph(ctx, func(ctx context.Context, args ...Value) (Value, error) {
		return Add(ctx, args[0], leaked)
	}, 1)
	require.Error(t, err)
	assert.True(t, ir.IsTypeMismatch(err))
	assert.Contains(t, err.Error(), "another graph")

	_, err = BuildGraph(ctx, func(ctx context.Context, args ...Value) (Value, error) {
		return Add(ctx, args[0], "three")
	}, 1)
	assert.True(t, ir.IsTypeMismatch(err))

	_, err = EvaluateConcrete(ctx, foo, leaked)
	assert.True(t, ir.IsTypeMismatch(err), "a staged variable is not concrete")
}

func TestStagedJVP(t *testing.T) {
	ctx := context.Background()
	g, err := BuildGraph(ctx, jvpOfFoo, 1)
	require.NoError(t, err)

	assert.Len(t, g.Equations, 6)
	assert.Equal(t, stagedJVPText, g.String())

	out, err := EvaluateGraph(ctx, g, 2.0)
	require.NoError(t, err)
	assert.Equal(t, []any{10.0, 7.0}, out)
}

func TestGraphReTransformability(t *testing.T) {
	ctx := context.Background()
	g, err := BuildGraph(ctx, foo, 1)
	require.NoError(t, err)

	viaGraph := func(ctx context.Context, args ...Value) (Value, error) {
		return EvaluateGraph(ctx, g, args...)
	}

	p, tan, err := Differentiate(ctx, viaGraph, 2.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, p)
	assert.Equal(t, 7.0, tan)

	second, err := NthDerivative(viaGraph, 2)(ctx, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, second)

	restaged, err := BuildGraph(ctx, viaGraph, 1)
	require.NoError(t, err)
	assert.Equal(t, fooGraphText, restaged.String(), "staging a graph evaluation inlines it")
}

func TestUnsupportedPrimitive(t *testing.T) {
	reg, err := NewBuiltinRegistry()
	require.NoError(t, err)
	require.NoError(t, reg.Declare(ir.PrimitiveSpec{Name: "neg", Arity: 1, Results: 1, Rules: []string{"eval"}}))
	require.NoError(t, reg.Register("eval", "neg", EvalRule(func(a []float64) (float64, error) { return -a[0], nil })))
	require.NoError(t, reg.Register("stage", "neg", StageRule(PassThroughAval)))
	require.NoError(t, reg.Seal(), "jvp coverage is partial")

	ctx := WithRegistry(context.Background(), reg)
	neg := func(ctx context.Context, args ...Value) (Value, error) {
		return Bind(ctx, "neg", args[0])
	}

	out, err := EvaluateConcrete(ctx, neg, 2.0)
	require.NoError(t, err)
	assert.Equal(t, -2.0, out)

	g, err := BuildGraph(ctx, neg, 1)
	require.NoError(t, err)
	assert.Equal(t, "a ->\nb = neg(a)\nb\n", g.String())

	_, _, err = Differentiate(ctx, neg, 2.0, 1.0)
	require.Error(t, err)
	assert.True(t, ir.IsUnsupportedPrimitive(err))
	assert.Contains(t, err.Error(), "kind=jvp")
	assert.Contains(t, err.Error(), "primitive=neg")

	_, err = EvaluateConcrete(context.Background(), neg, 2.0)
	assert.True(t, ir.IsUnsupportedPrimitive(err), "the default registry does not declare neg")
}

func TestTotalCoverageSurfacesAtSeal(t *testing.T) {
	reg, err := NewBuiltinRegistry()
	require.NoError(t, err)
	require.NoError(t, reg.Declare(ir.PrimitiveSpec{Name: "neg", Arity: 1, Results: 1}))
	require.NoError(t, reg.Register("eval", "neg", EvalRule(func(a []float64) (float64, error) { return -a[0], nil })))

	err = reg.Seal()
	require.Error(t, err)
	assert.True(t, ir.IsUnsupportedPrimitive(err))
	assert.Contains(t, err.Error(), "no stage rule registered for neg")
}

func TestBindArity(t *testing.T) {
	_, err := Bind(context.Background(), ir.Add, 1.0)
	require.Error(t, err)
	assert.True(t, ir.IsArityMismatch(err))
}
