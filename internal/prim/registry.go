package prim

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/xform/internal/compiler"
	"github.com/roach88/xform/internal/ir"
)

// Kind names an interpreter variant.
type Kind string

const (
	Eval  Kind = "eval"
	JVP   Kind = "jvp"
	Stage Kind = "stage"
)

// Coverage is the promise an interpreter kind makes over the primitive set.
type Coverage int

const (
	// Partial coverage only requires handlers for primitives whose
	// declaration names the kind in its rules.
	Partial Coverage = iota

	// Total coverage requires a handler for every declared primitive.
	Total
)

func (c Coverage) String() string {
	if c == Total {
		return "total"
	}
	return "partial"
}

type handlerKey struct {
	kind Kind
	prim ir.Primitive
}

// Registry maps primitives to per-kind handlers.
type Registry struct {
	mu       sync.RWMutex
	specs    map[ir.Primitive]ir.PrimitiveSpec
	order    []ir.Primitive
	handlers map[handlerKey]any
	coverage map[Kind]Coverage
	sealed   bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:    make(map[ir.Primitive]ir.PrimitiveSpec),
		handlers: make(map[handlerKey]any),
		coverage: make(map[Kind]Coverage),
	}
}

var errSealed = errors.New("registry is sealed")

// Declare adds a primitive declaration. The declaration is validated and a
// second declaration of the same name is rejected.
func (r *Registry) Declare(spec ir.PrimitiveSpec) error {
	if errs := compiler.Validate(&spec); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return fmt.Errorf("declare %s: %w", spec.Name, errors.Join(joined...))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("declare %s: %w", spec.Name, errSealed)
	}
	if _, ok := r.specs[spec.Name]; ok {
		return fmt.Errorf("declare %s: primitive already declared", spec.Name)
	}
	spec.Rules = append([]string(nil), spec.Rules...)
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Register installs the handler for (kind, p). The primitive must already be
// declared and each pair may be registered once.
func (r *Registry) Register(kind Kind, p ir.Primitive, handler any) error {
	if handler == nil {
		return fmt.Errorf("register %s/%s: nil handler", kind, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %s/%s: %w", kind, p, errSealed)
	}
	if _, ok := r.specs[p]; !ok {
		return &ir.Error{
			Code:      ir.CodeUnsupportedPrimitive,
			Message:   fmt.Sprintf("primitive %s is not declared", p),
			Kind:      string(kind),
			Primitive: p,
		}
	}
	key := handlerKey{kind: kind, prim: p}
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("register %s/%s: handler already registered", kind, p)
	}
	r.handlers[key] = handler
	return nil
}

// DeclareCoverage records the coverage promise of an interpreter kind.
// Kinds without a declaration are Partial.
func (r *Registry) DeclareCoverage(kind Kind, c Coverage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("coverage %s: %w", kind, errSealed)
	}
	r.coverage[kind] = c
	return nil
}

// Seal checks every coverage obligation and freezes the registry. All
// missing handlers are reported together, each as an UNSUPPORTED_PRIMITIVE
// error naming the kind and primitive. A registry that fails to seal stays
// open so the caller can register the missing handlers.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil
	}

	var missing []error
	for _, name := range r.order {
		for _, kind := range r.requiredKindsLocked(r.specs[name]) {
			if _, ok := r.handlers[handlerKey{kind: kind, prim: name}]; !ok {
				missing = append(missing, ir.NewUnsupportedPrimitive(string(kind), name))
			}
		}
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}
	r.sealed = true
	return nil
}

// requiredKindsLocked returns the kinds that must handle spec, in a stable
// order: kinds named by the declaration first, then Total kinds by name.
func (r *Registry) requiredKindsLocked(spec ir.PrimitiveSpec) []Kind {
	seen := make(map[Kind]bool)
	var kinds []Kind
	for _, k := range spec.Rules {
		kind := Kind(k)
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	var total []Kind
	for kind, c := range r.coverage {
		if c == Total && !seen[kind] {
			total = append(total, kind)
		}
	}
	slices.Sort(total)
	kinds = append(kinds, total...)
	return kinds
}

// Sealed reports whether Seal has succeeded.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Spec returns the declaration of p.
func (r *Registry) Spec(p ir.Primitive) (ir.PrimitiveSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[p]
	return spec, ok
}

// Specs returns every declaration in declaration order.
func (r *Registry) Specs() []ir.PrimitiveSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ir.PrimitiveSpec, len(r.order))
	for i, name := range r.order {
		out[i] = r.specs[name]
	}
	return out
}

// Coverage returns the coverage declared for kind.
func (r *Registry) Coverage(kind Kind) Coverage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coverage[kind]
}

// Has reports whether a handler is registered for (kind, p).
func (r *Registry) Has(kind Kind, p ir.Primitive) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[handlerKey{kind: kind, prim: p}]
	return ok
}

// Handler returns the untyped handler for (kind, p).
func (r *Registry) Handler(kind Kind, p ir.Primitive) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[handlerKey{kind: kind, prim: p}]
	r.mu.RUnlock()
	if !ok {
		return nil, ir.NewUnsupportedPrimitive(string(kind), p)
	}
	return h, nil
}

// Lookup returns the handler for (kind, p) as an R. A missing handler is an
// UNSUPPORTED_PRIMITIVE error; a handler of another type is a TYPE_MISMATCH.
func Lookup[R any](r *Registry, kind Kind, p ir.Primitive) (R, error) {
	var zero R
	h, err := r.Handler(kind, p)
	if err != nil {
		return zero, err
	}
	rule, ok := h.(R)
	if !ok {
		return zero, &ir.Error{
			Code:      ir.CodeTypeMismatch,
			Message:   fmt.Sprintf("handler has type %T, want %T", h, zero),
			Kind:      string(kind),
			Primitive: p,
		}
	}
	return rule, nil
}

//go:embed builtin.cue
var builtinSource []byte

var builtinSpecs = sync.OnceValues(func() ([]ir.PrimitiveSpec, error) {
	specs, err := compiler.CompileSource("builtin.cue", builtinSource)
	if err != nil {
		return nil, fmt.Errorf("compiling builtin primitives: %w", err)
	}
	for i := range specs {
		if errs := compiler.Validate(&specs[i]); len(errs) > 0 {
			return nil, fmt.Errorf("builtin primitive %s: %w", specs[i].Name, errs[0])
		}
	}
	return specs, nil
})

// Builtin returns the declarations of add and mul.
func Builtin() ([]ir.PrimitiveSpec, error) {
	specs, err := builtinSpecs()
	if err != nil {
		return nil, err
	}
	out := make([]ir.PrimitiveSpec, len(specs))
	for i, s := range specs {
		s.Rules = append([]string(nil), s.Rules...)
		out[i] = s
	}
	return out, nil
}
