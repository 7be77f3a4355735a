package engine

import (
	"context"
)

// foo(x) = x * (x + 3.0)
func foo(ctx context.Context, args ...Value) (Value, error) {
	x := args[0]
	s, err := Add(ctx, x, 3.0)
	if err != nil {
		return nil, err
	}
	return Mul(ctx, x, s)
}

// fooGraphText is the printed form of BuildGraph(foo, 1).
const fooGraphText = "a ->\nb = add(a, 3.0)\nc = mul(a, b)\nc\n"

// stagedJVPText is the printed form of the staged derivative of foo.
const stagedJVPText = "a ->\n" +
	"b = add(a, 3.0)\n" +
	"c = add(1.0, 0.0)\n" +
	"d = mul(a, b)\n" +
	"e = mul(a, c)\n" +
	"f = mul(1.0, b)\n" +
	"g = add(e, f)\n" +
	"d, g\n"

// jvpOfFoo returns [primal, tangent] of foo at its argument along 1.0.
func jvpOfFoo(ctx context.Context, args ...Value) (Value, error) {
	p, t, err := Differentiate(ctx, foo, args[0], 1.0)
	if err != nil {
		return nil, err
	}
	return []any{p, t}, nil
}
