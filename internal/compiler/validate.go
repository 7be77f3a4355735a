package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/xform/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrPrimitiveNameEmpty = "E101" // name is required
	ErrInvalidArity       = "E102" // arity must be at least 1
	ErrInvalidResults     = "E103" // exactly one result
	ErrUnknownRuleKind    = "E104" // rules name an unknown interpreter kind
	ErrDuplicateRuleKind  = "E105" // rules list a kind twice
)

// KnownKinds are the interpreter kinds a declaration may require rules for.
var KnownKinds = []string{"eval", "jvp", "stage"}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled primitive declaration.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.PrimitiveSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(string(spec.Name)) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrPrimitiveNameEmpty,
		})
	}

	if spec.Arity < 1 {
		errs = append(errs, ValidationError{
			Field:   "arity",
			Message: fmt.Sprintf("arity must be at least 1, got %d", spec.Arity),
			Code:    ErrInvalidArity,
		})
	}

	if spec.Results != 1 {
		errs = append(errs, ValidationError{
			Field:   "results",
			Message: fmt.Sprintf("primitives produce exactly one result, got %d", spec.Results),
			Code:    ErrInvalidResults,
		})
	}

	seen := make(map[string]bool)
	for i, kind := range spec.Rules {
		if !isKnownKind(kind) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d]", i),
				Message: fmt.Sprintf("unknown interpreter kind %q, must be one of %s", kind, strings.Join(KnownKinds, ", ")),
				Code:    ErrUnknownRuleKind,
			})
		}
		if seen[kind] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d]", i),
				Message: fmt.Sprintf("duplicate interpreter kind %q", kind),
				Code:    ErrDuplicateRuleKind,
			})
		}
		seen[kind] = true
	}

	return errs
}

func isKnownKind(kind string) bool {
	for _, k := range KnownKinds {
		if k == kind {
			return true
		}
	}
	return false
}
