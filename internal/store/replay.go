package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/xform/internal/engine"
	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/tree"
)

// Evaluate loads the graph stored under fingerprint, evaluates it on
// inputs and records the evaluation.
func (s *Store) Evaluate(ctx context.Context, fingerprint string, inputs ...float64) (Evaluation, error) {
	g, err := s.GetGraph(ctx, fingerprint)
	if err != nil {
		return Evaluation{}, err
	}
	outputs, err := evaluateFloats(ctx, g, inputs)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate %s: %w", fingerprint, err)
	}
	return s.RecordEvaluation(ctx, fingerprint, inputs, outputs)
}

// Mismatch is a recorded evaluation whose replay disagreed.
type Mismatch struct {
	EvaluationID string    `json:"evaluation_id"`
	Fingerprint  string    `json:"fingerprint"`
	Want         []float64 `json:"want,omitempty"`
	Got          []float64 `json:"got,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// ReplayResult reports a replay of stored evaluations.
type ReplayResult struct {
	Graphs      int        `json:"graphs"`
	Evaluations int        `json:"evaluations"`
	Mismatches  []Mismatch `json:"mismatches"`
}

// OK reports whether every evaluation replayed identically.
func (r ReplayResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-evaluates every stored evaluation (or only those of
// fingerprint when it is non-empty) in seq order and compares outputs.
// A stored graph whose recomputed fingerprint differs from its key is
// reported as a mismatch for each of its evaluations.
//
// Only storage failures are returned as errors; evaluation failures are
// mismatches.
func (s *Store) Replay(ctx context.Context, fingerprint string) (ReplayResult, error) {
	evs, err := s.Evaluations(ctx, fingerprint)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{Mismatches: []Mismatch{}}
	graphs := make(map[string]*ir.Graph)
	broken := make(map[string]string)

	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Evaluations++

		g, ok := graphs[ev.Fingerprint]
		if !ok && broken[ev.Fingerprint] == "" {
			g, err = s.GetGraph(ctx, ev.Fingerprint)
			if err != nil {
				return result, fmt.Errorf("replay: %w", err)
			}
			if fp, err := ir.Fingerprint(g); err != nil || fp != ev.Fingerprint {
				broken[ev.Fingerprint] = fmt.Sprintf("stored graph fingerprint %s does not match its key", fp)
			} else {
				graphs[ev.Fingerprint] = g
				result.Graphs++
			}
		}
		if msg := broken[ev.Fingerprint]; msg != "" {
			result.Mismatches = append(result.Mismatches, Mismatch{
				EvaluationID: ev.ID,
				Fingerprint:  ev.Fingerprint,
				Error:        msg,
			})
			continue
		}

		got, err := evaluateFloats(ctx, g, ev.Inputs)
		if err != nil {
			result.Mismatches = append(result.Mismatches, Mismatch{
				EvaluationID: ev.ID,
				Fingerprint:  ev.Fingerprint,
				Want:         ev.Outputs,
				Error:        err.Error(),
			})
			continue
		}
		if !sameFloats(got, ev.Outputs) {
			result.Mismatches = append(result.Mismatches, Mismatch{
				EvaluationID: ev.ID,
				Fingerprint:  ev.Fingerprint,
				Want:         ev.Outputs,
				Got:          got,
			})
		}
	}

	slog.Debug("replay finished",
		"graphs", result.Graphs,
		"evaluations", result.Evaluations,
		"mismatches", len(result.Mismatches),
	)
	return result, nil
}

// evaluateFloats evaluates g concretely and returns its output leaves.
func evaluateFloats(ctx context.Context, g *ir.Graph, inputs []float64) ([]float64, error) {
	args := make([]engine.Value, len(inputs))
	for i, x := range inputs {
		args[i] = x
	}
	out, err := engine.EvaluateConcrete(ctx, func(ctx context.Context, args ...engine.Value) (engine.Value, error) {
		return engine.EvaluateGraph(ctx, g, args...)
	}, args...)
	if err != nil {
		return nil, err
	}
	leaves, _ := tree.Flatten(out)
	xs := make([]float64, len(leaves))
	for i, leaf := range leaves {
		x, ok := leaf.(float64)
		if !ok {
			return nil, fmt.Errorf("output %d is %T, not float64", i, leaf)
		}
		xs[i] = x
	}
	return xs, nil
}
