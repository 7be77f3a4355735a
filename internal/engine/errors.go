package engine

import (
	"errors"
	"fmt"
)

// EquationLimitError is returned when staging exceeds the equation quota set
// with WithMaxEquations.
//
// The quota guards against runaway programs that unroll into very large
// graphs. Staging stops at the first equation over the limit.
type EquationLimitError struct {
	Trace     string // trace id of the staging interpreter
	Equations int    // equations the program tried to emit
	Limit     int    // maximum allowed equations
}

// Error implements the error interface.
func (e *EquationLimitError) Error() string {
	return fmt.Sprintf("trace %s exceeded equation quota: %d equations > %d limit",
		e.Trace, e.Equations, e.Limit)
}

// IsEquationLimitError returns true if the error is an EquationLimitError.
// Uses errors.As to handle wrapped errors.
func IsEquationLimitError(err error) bool {
	var le *EquationLimitError
	return errors.As(err, &le)
}

// ErrConcurrentStaging is returned by EvaluateBatch when a staging
// interpreter is anywhere on the stack, since its builder is single-owner.
var ErrConcurrentStaging = errors.New("engine: cannot evaluate batches concurrently while staging")
