package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/xform/internal/ir"
)

// GraphInfo summarizes a stored graph without decoding it.
type GraphInfo struct {
	Fingerprint string `json:"fingerprint"`
	Seq         int64  `json:"seq"`
	TracedFor   string `json:"traced_for"`
	Inputs      int    `json:"inputs"`
	Equations   int    `json:"equations"`
}

// Evaluation is one recorded evaluation of a stored graph.
type Evaluation struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Seq         int64     `json:"seq"`
	Inputs      []float64 `json:"inputs"`
	Outputs     []float64 `json:"outputs"`
}

// GetGraph loads and validates the graph stored under fingerprint.
// Returns ErrNotFound if there is none.
func (s *Store) GetGraph(ctx context.Context, fingerprint string) (*ir.Graph, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT graph FROM graphs WHERE fingerprint = ?`, fingerprint,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get graph %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get graph %s: %w", fingerprint, err)
	}

	var g ir.Graph
	if err := g.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("get graph %s: %w", fingerprint, err)
	}
	return &g, nil
}

// ListGraphs returns every stored graph in insertion order.
//
// Returns an empty slice (not nil) if the store holds no graphs.
func (s *Store) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, seq, traced_for, num_inputs, num_equations
		FROM graphs
		ORDER BY seq ASC, fingerprint COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query graphs: %w", err)
	}
	defer rows.Close()

	infos := []GraphInfo{}
	for rows.Next() {
		var info GraphInfo
		if err := rows.Scan(&info.Fingerprint, &info.Seq, &info.TracedFor, &info.Inputs, &info.Equations); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graphs: %w", err)
	}
	return infos, nil
}

// Evaluations returns the evaluations of the graph with the given
// fingerprint, or of every graph when fingerprint is empty, ordered by
// seq ASC, id ASC COLLATE BINARY.
func (s *Store) Evaluations(ctx context.Context, fingerprint string) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, seq, inputs, outputs
		FROM evaluations
		WHERE ? = '' OR fingerprint = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, fingerprint, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evs := []Evaluation{}
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evs, nil
}

func scanEvaluation(rows *sql.Rows) (Evaluation, error) {
	var ev Evaluation
	var inJSON, outJSON string
	if err := rows.Scan(&ev.ID, &ev.Fingerprint, &ev.Seq, &inJSON, &outJSON); err != nil {
		return Evaluation{}, fmt.Errorf("scan evaluation: %w", err)
	}
	var err error
	if ev.Inputs, err = unmarshalFloats(inJSON); err != nil {
		return Evaluation{}, fmt.Errorf("evaluation %s inputs: %w", ev.ID, err)
	}
	if ev.Outputs, err = unmarshalFloats(outJSON); err != nil {
		return Evaluation{}, fmt.Errorf("evaluation %s outputs: %w", ev.ID, err)
	}
	return ev, nil
}
