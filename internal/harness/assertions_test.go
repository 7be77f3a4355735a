package harness

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/ir"
)

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		want     any
		got      any
		tol      float64
		ok       bool
		wantPath string
	}{
		{"equal floats", 1.5, 1.5, 0, true, ""},
		{"different floats", 1.5, 1.25, 0, false, ""},
		{"within tolerance", 1.0, 1.0 + 1e-13, 1e-12, true, ""},
		{"nan matches nan", math.NaN(), math.NaN(), 0, true, ""},
		{"nan against number", math.NaN(), 1.0, 1, false, ""},
		{"inf", math.Inf(1), math.Inf(1), 0, true, ""},
		{"type differs", 1.0, "1.0", 0, false, ""},
		{"list", []any{1.0, 2.0}, []any{1.0, 2.0}, 0, true, ""},
		{"list length", []any{1.0}, []any{1.0, 2.0}, 0, false, ""},
		{"list element", []any{1.0, 2.0}, []any{1.0, 3.0}, 0, false, "[1]"},
		{"map", map[string]any{"a": 1.0}, map[string]any{"a": 1.0}, 0, true, ""},
		{"map key", map[string]any{"a": 1.0}, map[string]any{"b": 1.0}, 0, false, "['a']"},
		{"nested", map[string]any{"a": []any{1.0, 2.0}}, map[string]any{"a": []any{1.0, 5.0}}, 0, false, "['a'][1]"},
		{"nil", nil, nil, 0, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := compareValues(tt.want, tt.got, tt.tol, "")
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, tt.wantPath, path)
			}
		})
	}
}

func TestAssertValue(t *testing.T) {
	assert.NoError(t, assertValue(0, CheckEval, 1.0, 1.0, 0))

	err := assertValue(3, CheckJVP, []any{1.0, 2.0}, []any{1.0, 4.0}, 0)
	require.Error(t, err)
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 3, ae.Check)
	assert.Equal(t, "check 3 (jvp) at [1]: expected [1 2], got [1 4]", err.Error())
}

func TestAssertErrorCode(t *testing.T) {
	code := string(ir.CodeTypeMismatch)

	assert.NoError(t, assertErrorCode(0, CheckEval, code, ir.NewTypeMismatch("eval", ir.Add, "x", "float64")))

	err := assertErrorCode(0, CheckEval, code, nil)
	assert.EqualError(t, err, "check 0 (eval): expected error TYPE_MISMATCH, got no error")

	err = assertErrorCode(0, CheckEval, code, ir.NewArityMismatch("leaves", 1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARITY_MISMATCH")

	err = assertErrorCode(0, CheckEval, code, errors.New("plain"))
	assert.Contains(t, err.Error(), "got plain")
}
