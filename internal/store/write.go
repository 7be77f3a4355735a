package store

import (
	"context"
	"fmt"

	"github.com/roach88/xform/internal/ir"
)

// PutGraph stores g under its fingerprint and returns the fingerprint.
// Uses ON CONFLICT(fingerprint) DO NOTHING for idempotency: storing the
// same program again reports inserted=false and keeps the original row.
func (s *Store) PutGraph(ctx context.Context, g *ir.Graph) (fingerprint string, inserted bool, err error) {
	fingerprint, err = ir.Fingerprint(g)
	if err != nil {
		return "", false, fmt.Errorf("put graph: %w", err)
	}
	data, err := g.MarshalJSON()
	if err != nil {
		return "", false, fmt.Errorf("put graph: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO graphs
		(fingerprint, seq, ir_version, traced_for, num_inputs, num_equations, graph)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`,
		fingerprint,
		s.clock.Next(),
		ir.IRVersion,
		g.Debug.TracedFor,
		len(g.Inputs),
		len(g.Equations),
		string(data),
	)
	if err != nil {
		return "", false, fmt.Errorf("put graph: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("put graph: rows affected: %w", err)
	}
	return fingerprint, n > 0, nil
}

// RecordEvaluation stores one evaluation of the graph with the given
// fingerprint. The graph must already be stored.
func (s *Store) RecordEvaluation(ctx context.Context, fingerprint string, inputs, outputs []float64) (Evaluation, error) {
	inJSON, err := marshalFloats(inputs)
	if err != nil {
		return Evaluation{}, fmt.Errorf("record evaluation: %w", err)
	}
	outJSON, err := marshalFloats(outputs)
	if err != nil {
		return Evaluation{}, fmt.Errorf("record evaluation: %w", err)
	}

	ev := Evaluation{
		ID:          s.ids.Generate(),
		Fingerprint: fingerprint,
		Seq:         s.clock.Next(),
		Inputs:      inputs,
		Outputs:     outputs,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (id, fingerprint, seq, inputs, outputs)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, ev.Fingerprint, ev.Seq, inJSON, outJSON)
	if err != nil {
		return Evaluation{}, fmt.Errorf("record evaluation: %w", err)
	}
	return ev, nil
}
