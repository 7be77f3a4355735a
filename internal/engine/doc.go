// Package engine implements the transformation core: dynamic-scoped
// dispatch of primitives to interpreters, and the transformations built on
// it.
//
// ARCHITECTURE:
//
// Dispatch Context:
// The interpreter stack lives in a context.Context. WithInterpreter returns
// a child context with a new top frame; nothing is ever popped. Leaving a
// scope on any path (return, error, panic) therefore restores the previous
// interpreter structurally, and every goroutine's stack is task local.
// The evaluating interpreter is the implicit bottom frame.
//
// Interpreters:
//   - EvalInterpreter: concrete float64 arithmetic. Terminal case.
//   - JVPInterpreter: forward-mode dual numbers. Rules run under the
//     interpreter that was current when it was created, so the primal and
//     tangent arithmetic is itself transformable.
//   - StageInterpreter: records one ir.Equation per primitive call.
//
// Primitive entry points (Add, Mul, Bind) are the only readers of the
// current interpreter. Rules are looked up per call from the registry
// carried by the context (DefaultRegistry when none was set).
//
// CRITICAL PATTERNS:
//
// Ownership: a Dual is varying only for the JVPInterpreter that owns it.
// Duals of any other owner are lifted as constants with zero tangent, which
// keeps nested differentiation free of perturbation confusion.
//
// Immutability: graphs and sealed registries are shared read-only; a
// builder belongs to exactly one BuildGraph or Trace call.
package engine
