package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/ir"
)

// affine({w, b}, x) = [w * x + b, w]
func affine(ctx context.Context, args ...Value) (Value, error) {
	params := args[0].(map[string]any)
	wx, err := Mul(ctx, params["w"], args[1])
	if err != nil {
		return nil, err
	}
	y, err := Add(ctx, wx, params["b"])
	if err != nil {
		return nil, err
	}
	return []any{y, params["w"]}, nil
}

func TestTrace(t *testing.T) {
	ctx := context.Background()
	scalar := ir.Aval{DType: "f32", Shape: []int{}}

	p, err := Trace(ctx, affine, map[string]any{"w": scalar, "b": scalar}, 0.0)
	require.NoError(t, err)

	assert.Equal(t, "a:f32[], b:f32[], c ->\nd:f32[] = mul(b, c)\ne:f32[] = add(d, a)\ne, b\n", p.String())
	assert.Equal(t, "trace", p.Graph.Debug.TracedFor)
	assert.Equal(t, []string{"args[0]['b']", "args[0]['w']", "args[1]"}, p.Graph.Debug.ArgNames)
	assert.Equal(t, []string{"result[0]", "result[1]"}, p.Graph.Debug.ResultPaths)
	assert.Equal(t, 3, p.InDef.NumLeaves())

	out, err := p.Call(ctx, map[string]any{"w": 2.0, "b": 1.0}, 5.0)
	require.NoError(t, err)
	assert.Equal(t, []any{11.0, 2.0}, out)
}

func TestProgramCallStructureMismatch(t *testing.T) {
	ctx := context.Background()
	p, err := Trace(ctx, affine, map[string]any{"w": 0.0, "b": 0.0}, 0.0)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []Value
	}{
		{"missing argument", []Value{map[string]any{"w": 2.0, "b": 1.0}}},
		{"different keys", []Value{map[string]any{"w": 2.0, "c": 1.0}, 5.0}},
		{"sequence for mapping", []Value{[]any{2.0, 1.0}, 5.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Call(ctx, tt.args...)
			require.Error(t, err)
			assert.True(t, ir.IsStructureMismatch(err))
		})
	}
}

func TestProgramIsTransformable(t *testing.T) {
	ctx := context.Background()
	p, err := Trace(ctx, foo, 0.0)
	require.NoError(t, err)

	primal, tan, err := Differentiate(ctx, p.Func(), 2.0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, primal)
	assert.Equal(t, 7.0, tan)
}

func TestPartial(t *testing.T) {
	ctx := context.Background()
	// sub3(a, b, c) = a * b + c
	sub3 := func(ctx context.Context, args ...Value) (Value, error) {
		ab, err := Mul(ctx, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return Add(ctx, ab, args[2])
	}
	args := []Value{2.0, 3.0, 4.0}

	g, dyn, err := Partial(sub3, args, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Value{4.0, 2.0}, dyn)

	out, err := g(ctx, 10.0, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 25.0, out, "c=10, a=5, b stays 3")

	_, err = g(ctx, 1.0)
	assert.True(t, ir.IsArityMismatch(err))
}

func TestPartialErrors(t *testing.T) {
	args := []Value{1.0, 2.0}

	_, _, err := Partial(foo, args, 2)
	require.Error(t, err)
	assert.True(t, ir.IsArityMismatch(err))
	assert.Contains(t, err.Error(), "argnum 2 out of bounds for 2 arguments")

	_, _, err = Partial(foo, args, -3)
	assert.True(t, ir.IsArityMismatch(err))

	_, _, err = Partial(foo, args, 0, -2)
	assert.Error(t, err, "0 and -2 name the same argument")

	_, _, err = Partial(foo, nil, 0)
	assert.True(t, ir.IsArityMismatch(err))
}

func TestDerivativeArgnum(t *testing.T) {
	ctx := context.Background()
	mul := func(ctx context.Context, args ...Value) (Value, error) {
		return Mul(ctx, args[0], args[1])
	}

	dy, err := Derivative(ctx, mul, 1, 3.0, 4.0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, dy)

	dx, err := Derivative(ctx, mul, -2, 3.0, 4.0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, dx)
}
