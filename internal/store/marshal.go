package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/xform/internal/ir"
)

// marshalFloats converts floats to canonical JSON TEXT for storage.
// Each float is written as its ir.FormatFloat string.
func marshalFloats(xs []float64) (string, error) {
	arr := make([]any, len(xs))
	for i, x := range xs {
		arr[i] = ir.FormatFloat(x)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal floats: %w", err)
	}
	return string(data), nil
}

// unmarshalFloats is the inverse of marshalFloats.
func unmarshalFloats(data string) ([]float64, error) {
	var strs []string
	if err := json.Unmarshal([]byte(data), &strs); err != nil {
		return nil, fmt.Errorf("unmarshal floats: %w", err)
	}
	xs := make([]float64, len(strs))
	for i, s := range strs {
		x, err := ir.ParseFloat(s)
		if err != nil {
			return nil, fmt.Errorf("unmarshal floats: element %d: %w", i, err)
		}
		xs[i] = x
	}
	return xs, nil
}

// sameFloats compares by printed text, so NaN equals NaN.
func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if ir.FormatFloat(a[i]) != ir.FormatFloat(b[i]) {
			return false
		}
	}
	return true
}
