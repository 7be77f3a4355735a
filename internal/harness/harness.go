package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/xform/internal/engine"
	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/store"
	"github.com/roach88/xform/internal/testutil"
	"github.com/roach88/xform/internal/tree"
)

// Harness is the scenario execution engine. It runs checks with
// deterministic trace ids and records staged graphs in a store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*config)

type config struct {
	store  *store.Store
	logger *slog.Logger
}

// WithStore records staged graphs and evaluations in st instead of a fresh
// in-memory store. The caller keeps ownership of st.
func WithStore(st *store.Store) Option {
	return func(c *config) {
		c.store = st
	}
}

// WithLogger sets the logger for check progress. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory database for isolation unless WithStore
// is given. A failed check fails the result; only infrastructure failures
// are returned as errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:",
			store.WithClock(testutil.NewDeterministicClock()),
			store.WithIDs(testutil.NewSequentialIDs("eval")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	h := &Harness{scenario: scenario, store: st, logger: cfg.logger}
	ctx = engine.WithTraceIDs(ctx, testutil.NewSequentialIDs("trace"))
	f := scenario.Program.Func()

	result := NewResult()
	for i, c := range scenario.Checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := h.runCheck(ctx, i, c, f, result)
		result.addCheck(i, c.Kind, err)
		h.logger.Debug("check finished",
			"scenario", scenario.Name,
			"check", i,
			"kind", c.Kind,
			"pass", err == nil,
		)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"checks", len(result.Checks),
		"graphs", len(result.Graphs),
	)
	return result, nil
}

// runCheck runs one check. A check that declares an error code passes only
// if its operation fails with that code.
func (h *Harness) runCheck(ctx context.Context, i int, c Check, f engine.Func, result *Result) error {
	var err error
	switch c.Kind {
	case CheckEval:
		err = h.checkEval(ctx, i, c, f)
	case CheckJVP:
		err = h.checkJVP(ctx, i, c, f)
	case CheckDerivatives:
		err = h.checkDerivatives(ctx, i, c, f)
	case CheckStage:
		err = h.checkStage(ctx, i, c, result)
	case CheckRoundtrip:
		err = h.checkRoundtrip(ctx, i, c, f, result)
	default:
		err = fmt.Errorf("check %d: unknown check kind %q", i, c.Kind)
	}
	if c.Error != "" {
		return assertErrorCode(i, c.Kind, c.Error, err)
	}
	return err
}

// expect compares want with got unless the check expects an error.
func (h *Harness) expect(i int, c Check, want, got any) error {
	if c.Error != "" {
		return nil
	}
	return assertValue(i, c.Kind, want, got, h.scenario.Tolerance)
}

func (h *Harness) checkEval(ctx context.Context, i int, c Check, f engine.Func) error {
	out, err := engine.EvaluateConcrete(ctx, f, c.Args...)
	if err != nil {
		return err
	}
	return h.expect(i, c, c.Want, out)
}

func (h *Harness) checkJVP(ctx context.Context, i int, c Check, f engine.Func) error {
	tangents := c.Tangents
	if tangents == nil {
		tangents = make([]engine.Value, len(c.Args))
		for k, a := range c.Args {
			ones, err := tree.Map(a, func(any) (any, error) { return 1.0, nil })
			if err != nil {
				return err
			}
			tangents[k] = ones
		}
	}

	primal, tangent, err := engine.JVP(ctx, f, c.Args, tangents)
	if err != nil {
		return err
	}
	if err := h.expect(i, c, c.Want, primal); err != nil {
		return err
	}
	if err := h.expect(i, c, c.WantTangent, tangent); err != nil {
		return fmt.Errorf("tangent: %w", err)
	}
	return nil
}

func (h *Harness) checkDerivatives(ctx context.Context, i int, c Check, f engine.Func) error {
	wants, _ := c.Want.([]any)
	orders := len(wants)
	if c.Error != "" && orders == 0 {
		orders = 2
	}
	for n := 0; n < orders; n++ {
		out, err := engine.EvaluateConcrete(ctx, engine.NthDerivative(f, n), c.Args...)
		if err != nil {
			return fmt.Errorf("order %d: %w", n, err)
		}
		if n < len(wants) {
			if err := h.expect(i, c, wants[n], out); err != nil {
				return fmt.Errorf("order %d: %w", n, err)
			}
		}
	}
	return nil
}

func (h *Harness) checkStage(ctx context.Context, i int, c Check, result *Result) error {
	g, err := h.scenario.Stage(ctx, c.JVP)
	if err != nil {
		return err
	}

	if c.Equations != nil && len(g.Equations) != *c.Equations {
		return &AssertionError{
			Check:    i,
			Kind:     c.Kind,
			Expected: fmt.Sprintf("%d equations", *c.Equations),
			Actual:   fmt.Sprintf("%d equations", len(g.Equations)),
		}
	}
	if c.Primitives != nil {
		got := make([]string, 0, len(g.Equations))
		for _, p := range g.Primitives() {
			got = append(got, string(p))
		}
		if !slices.Equal(got, c.Primitives) {
			return &AssertionError{
				Check:    i,
				Kind:     c.Kind,
				Expected: fmt.Sprintf("primitives %v", c.Primitives),
				Actual:   fmt.Sprintf("primitives %v", got),
			}
		}
	}

	fp, _, err := h.store.PutGraph(ctx, g)
	if err != nil {
		return err
	}
	result.Graphs = append(result.Graphs, StagedGraph{
		Check:       i,
		Golden:      c.Golden,
		Fingerprint: fp,
		Text:        g.String(),
	})

	if c.Args == nil {
		return nil
	}
	xs, err := toFloats(c.Args)
	if err != nil {
		return err
	}
	ev, err := h.store.Evaluate(ctx, fp, xs...)
	if err != nil {
		return err
	}
	if c.Want == nil {
		return nil
	}
	want, _ := tree.Flatten(c.Want)
	got := make([]any, len(ev.Outputs))
	for k, x := range ev.Outputs {
		got[k] = x
	}
	return h.expect(i, c, want, got)
}

func (h *Harness) checkRoundtrip(ctx context.Context, i int, c Check, f engine.Func, result *Result) error {
	direct, err := engine.EvaluateConcrete(ctx, f, c.Args...)
	if err != nil {
		return err
	}
	if c.Want != nil {
		if err := h.expect(i, c, c.Want, direct); err != nil {
			return err
		}
	}

	p, err := engine.Trace(ctx, f, c.Args...)
	if err != nil {
		return err
	}
	fp, err := ir.Fingerprint(p.Graph)
	if err != nil {
		return err
	}

	data, err := p.Graph.MarshalJSON()
	if err != nil {
		return err
	}
	var decoded ir.Graph
	if err := decoded.UnmarshalJSON(data); err != nil {
		return err
	}

	stored, _, err := h.store.PutGraph(ctx, p.Graph)
	if err != nil {
		return err
	}
	loaded, err := h.store.GetGraph(ctx, stored)
	if err != nil {
		return err
	}
	result.Graphs = append(result.Graphs, StagedGraph{
		Check:       i,
		Fingerprint: fp,
		Text:        p.Graph.String(),
	})

	copies := []struct {
		name  string
		graph *ir.Graph
	}{
		{"traced", p.Graph},
		{"decoded", &decoded},
		{"stored", loaded},
	}
	for _, cp := range copies {
		cfp, err := ir.Fingerprint(cp.graph)
		if err != nil {
			return err
		}
		if cfp != fp {
			return &AssertionError{
				Check:    i,
				Kind:     c.Kind,
				Path:     cp.name,
				Expected: "fingerprint " + fp,
				Actual:   "fingerprint " + cfp,
			}
		}

		prog := &engine.Program{Graph: cp.graph, InDef: p.InDef, OutDef: p.OutDef}
		out, err := prog.Call(ctx, c.Args...)
		if err != nil {
			return fmt.Errorf("%s: %w", cp.name, err)
		}
		if path, ok := compareValues(direct, out, 0, ""); !ok {
			return &AssertionError{
				Check:    i,
				Kind:     c.Kind,
				Path:     cp.name + path,
				Expected: fmt.Sprintf("%v", direct),
				Actual:   fmt.Sprintf("%v", out),
			}
		}
	}
	return nil
}

func toFloats(args []any) ([]float64, error) {
	xs := make([]float64, len(args))
	for i, a := range args {
		x, ok := a.(float64)
		if !ok {
			return nil, ir.NewTypeMismatch("stage", "", a, "float64")
		}
		xs[i] = x
	}
	return xs, nil
}
