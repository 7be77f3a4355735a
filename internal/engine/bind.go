package engine

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/ir"
)

// Bind applies primitive p to args under the current interpreter.
//
// Returns an UNSUPPORTED_PRIMITIVE error for an undeclared primitive and an
// ARITY_MISMATCH error when len(args) differs from the declared arity.
func Bind(ctx context.Context, p ir.Primitive, args ...Value) (Value, error) {
	interp := Current(ctx)
	spec, ok := RegistryFrom(ctx).Spec(p)
	if !ok {
		return nil, ir.NewUnsupportedPrimitive(string(interp.Kind()), p)
	}
	if len(args) != spec.Arity {
		return nil, ir.NewArityMismatch(fmt.Sprintf("arguments to %s", p), spec.Arity, len(args))
	}
	return interp.Interpret(ctx, p, args)
}

// Add returns x + y under the current interpreter.
func Add(ctx context.Context, x, y Value) (Value, error) {
	return Bind(ctx, ir.Add, x, y)
}

// Mul returns x * y under the current interpreter.
func Mul(ctx context.Context, x, y Value) (Value, error) {
	return Bind(ctx, ir.Mul, x, y)
}
