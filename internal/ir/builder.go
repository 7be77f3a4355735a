package ir

import (
	"fmt"
	"sync/atomic"
)

// scopeSeq hands out builder identities. Zero is reserved for variables that
// were decoded rather than allocated.
var scopeSeq atomic.Uint64

// Builder accumulates equations for one graph.
//
// A Builder is exclusively owned by the single staging pass that created it
// and must not be shared between goroutines.
type Builder struct {
	scope  uint64
	next   int
	inputs []Var
	eqns   []Equation
}

// NewBuilder creates an empty builder with a fresh scope.
func NewBuilder() *Builder {
	return &Builder{scope: scopeSeq.Add(1)}
}

// newVar allocates the next variable id. Ids are never reused.
func (b *Builder) newVar(aval *Aval) Var {
	v := Var{ID: b.next, Aval: aval, scope: b.scope}
	b.next++
	return v
}

// AddInput allocates a formal input variable.
func (b *Builder) AddInput(aval *Aval) Var {
	v := b.newVar(aval)
	b.inputs = append(b.inputs, v)
	return v
}

// Emit appends `result = p(args...)` and returns the fresh result variable.
func (b *Builder) Emit(p Primitive, args []Atom, aval *Aval) Var {
	result := b.newVar(aval)
	argsCopy := make([]Atom, len(args))
	copy(argsCopy, args)
	b.eqns = append(b.eqns, Equation{Result: result, Primitive: p, Args: argsCopy})
	return result
}

// Owns reports whether v was allocated by this builder.
func (b *Builder) Owns(v Var) bool {
	return v.scope == b.scope
}

// Len returns the number of equations emitted so far.
func (b *Builder) Len() int {
	return len(b.eqns)
}

// Build assembles and validates the graph. Outputs must be literals or
// variables allocated by this builder.
func (b *Builder) Build(outputs []Atom, debug DebugInfo) (*Graph, error) {
	for i, out := range outputs {
		if v, ok := out.(Var); ok && !b.Owns(v) {
			return nil, &Error{
				Code:    CodeUnboundVariable,
				Message: fmt.Sprintf("output %d references a variable from another graph", i),
				Details: map[string]string{"var": v.Name()},
			}
		}
	}

	g := &Graph{
		Inputs:    append([]Var(nil), b.inputs...),
		Equations: append([]Equation(nil), b.eqns...),
		Outputs:   append([]Atom(nil), outputs...),
		Debug:     debug,
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}
