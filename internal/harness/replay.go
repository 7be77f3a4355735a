package harness

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/store"
)

// Replay re-evaluates every evaluation recorded in st and reports each
// disagreement as an error in the result.
func Replay(ctx context.Context, st *store.Store) (*Result, error) {
	rr, err := st.Replay(ctx, "")
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, m := range rr.Mismatches {
		if m.Error != "" {
			result.AddError(fmt.Sprintf("evaluation %s of %s: %s", m.EvaluationID, m.Fingerprint, m.Error))
			continue
		}
		result.AddError(fmt.Sprintf("evaluation %s of %s: expected %v, got %v", m.EvaluationID, m.Fingerprint, m.Want, m.Got))
	}
	return result, nil
}
