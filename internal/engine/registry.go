package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/prim"
)

// EvalRule computes a primitive on concrete values.
type EvalRule func(args []float64) (float64, error)

// JVPRule computes the primal and tangent outputs of a primitive. ctx has
// the differentiating interpreter's outer interpreter on top, so the rule
// must do its arithmetic through Bind (or Add and Mul).
type JVPRule func(ctx context.Context, primals, tangents []Value) (primal, tangent Value, err error)

// StageRule computes the abstract value of a staged result from the
// abstract values of its arguments. Literal arguments have a nil aval.
type StageRule func(avals []*ir.Aval) (*ir.Aval, error)

// NewBuiltinRegistry returns an unsealed registry declaring add and mul with
// their rules installed. Evaluation and staging declare total coverage;
// differentiation is partial, so an extension primitive may omit its jvp
// rule unless its declaration lists one.
func NewBuiltinRegistry() (*prim.Registry, error) {
	specs, err := prim.Builtin()
	if err != nil {
		return nil, err
	}

	reg := prim.NewRegistry()
	for _, spec := range specs {
		if err := reg.Declare(spec); err != nil {
			return nil, err
		}
	}
	for kind, c := range map[prim.Kind]prim.Coverage{
		prim.Eval:  prim.Total,
		prim.JVP:   prim.Partial,
		prim.Stage: prim.Total,
	} {
		if err := reg.DeclareCoverage(kind, c); err != nil {
			return nil, err
		}
	}

	rules := []struct {
		kind    prim.Kind
		p       ir.Primitive
		handler any
	}{
		{prim.Eval, ir.Add, EvalRule(evalAdd)},
		{prim.Eval, ir.Mul, EvalRule(evalMul)},
		{prim.JVP, ir.Add, JVPRule(jvpAdd)},
		{prim.JVP, ir.Mul, JVPRule(jvpMul)},
		{prim.Stage, ir.Add, StageRule(PassThroughAval)},
		{prim.Stage, ir.Mul, StageRule(PassThroughAval)},
	}
	for _, r := range rules {
		if err := reg.Register(r.kind, r.p, r.handler); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// defaultRegistry is assigned in init because NewBuiltinRegistry refers back
// to DefaultRegistry through the jvp rules, which would otherwise form an
// initialization cycle.
var defaultRegistry func() *prim.Registry

func init() {
	defaultRegistry = sync.OnceValue(func() *prim.Registry {
		reg, err := NewBuiltinRegistry()
		if err != nil {
			panic(fmt.Sprintf("engine: builtin registry: %v", err))
		}
		if err := reg.Seal(); err != nil {
			panic(fmt.Sprintf("engine: sealing builtin registry: %v", err))
		}
		return reg
	})
}

// DefaultRegistry returns the sealed registry of the builtin primitives.
func DefaultRegistry() *prim.Registry {
	return defaultRegistry()
}

func evalAdd(args []float64) (float64, error) { return args[0] + args[1], nil }

func evalMul(args []float64) (float64, error) { return args[0] * args[1], nil }

// jvpAdd: (x + y)' = x' + y'.
func jvpAdd(ctx context.Context, primals, tangents []Value) (Value, Value, error) {
	p, err := Add(ctx, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	t, err := Add(ctx, tangents[0], tangents[1])
	if err != nil {
		return nil, nil, err
	}
	return p, t, nil
}

// jvpMul: (x * y)' = x * y' + x' * y.
func jvpMul(ctx context.Context, primals, tangents []Value) (Value, Value, error) {
	p, err := Mul(ctx, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	left, err := Mul(ctx, primals[0], tangents[1])
	if err != nil {
		return nil, nil, err
	}
	right, err := Mul(ctx, tangents[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	t, err := Add(ctx, left, right)
	if err != nil {
		return nil, nil, err
	}
	return p, t, nil
}

// PassThroughAval is the stage rule of elementwise primitives: the result
// has the abstract value shared by its non-literal arguments. Arguments
// with differing avals are a TYPE_MISMATCH.
func PassThroughAval(avals []*ir.Aval) (*ir.Aval, error) {
	var out *ir.Aval
	for _, a := range avals {
		if a == nil {
			continue
		}
		if out == nil {
			out = a
			continue
		}
		if a.DType != out.DType || !slices.Equal(a.Shape, out.Shape) {
			return nil, &ir.Error{
				Code:    ir.CodeTypeMismatch,
				Message: fmt.Sprintf("abstract values differ: %s and %s", out, a),
				Kind:    string(prim.Stage),
			}
		}
	}
	return out, nil
}
