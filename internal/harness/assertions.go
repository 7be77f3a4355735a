package harness

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/roach88/xform/internal/ir"
)

// AssertionError is returned when a check's outcome differs from its
// expectation.
type AssertionError struct {
	Check    int    // Index into Scenario.Checks
	Kind     string // Check kind for categorization
	Path     string // Position of the differing leaf, empty for the whole value
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	at := ""
	if e.Path != "" {
		at = " at " + e.Path
	}
	return fmt.Sprintf("check %d (%s)%s: expected %s, got %s", e.Check, e.Kind, at, e.Expected, e.Actual)
}

// compareValues compares a (possibly nested) expected value with an actual
// one. Floats match within tol, and NaN matches NaN. Returns the path of
// the first difference.
func compareValues(want, got any, tol float64, path string) (string, bool) {
	switch w := want.(type) {
	case float64:
		g, ok := got.(float64)
		if !ok {
			return path, false
		}
		return path, floatsEqual(w, g, tol)
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return path, false
		}
		for i := range w {
			if p, ok := compareValues(w[i], g[i], tol, fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return path, true
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok || len(g) != len(w) {
			return path, false
		}
		keys := make([]string, 0, len(w))
		for k := range w {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			gv, ok := g[k]
			if !ok {
				return fmt.Sprintf("%s['%s']", path, k), false
			}
			if p, ok := compareValues(w[k], gv, tol, fmt.Sprintf("%s['%s']", path, k)); !ok {
				return p, false
			}
		}
		return path, true
	default:
		return path, reflect.DeepEqual(want, got)
	}
}

func floatsEqual(want, got, tol float64) bool {
	if math.IsNaN(want) || math.IsNaN(got) {
		return math.IsNaN(want) && math.IsNaN(got)
	}
	if want == got {
		return true
	}
	return math.Abs(want-got) <= tol
}

// assertValue returns an AssertionError if got differs from want.
func assertValue(check int, kind string, want, got any, tol float64) error {
	path, ok := compareValues(want, got, tol, "")
	if ok {
		return nil
	}
	return &AssertionError{
		Check:    check,
		Kind:     kind,
		Path:     path,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertErrorCode checks the outcome of a check that declares an expected
// error code. err is the error the check's operation returned.
func assertErrorCode(check int, kind, code string, err error) error {
	if err == nil {
		return &AssertionError{Check: check, Kind: kind, Expected: "error " + code, Actual: "no error"}
	}
	var e *ir.Error
	if !errors.As(err, &e) || string(e.Code) != code {
		return &AssertionError{Check: check, Kind: kind, Expected: "error " + code, Actual: err.Error()}
	}
	return nil
}
