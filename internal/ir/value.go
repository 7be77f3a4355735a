package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire forms for the JSON interchange encoding. All JSON tags use
// snake_case. Literals travel as strings so NaN and infinities survive.

type varJSON struct {
	ID   int   `json:"id"`
	Aval *Aval `json:"aval,omitempty"`
}

type atomJSON struct {
	Var *int    `json:"var,omitempty"`
	Lit *string `json:"lit,omitempty"`
}

type equationJSON struct {
	Result    varJSON    `json:"result"`
	Primitive Primitive  `json:"primitive"`
	Args      []atomJSON `json:"args"`
}

type graphJSON struct {
	IRVersion string         `json:"ir_version"`
	Inputs    []varJSON      `json:"inputs"`
	Equations []equationJSON `json:"equations"`
	Outputs   []atomJSON     `json:"outputs"`
	Debug     DebugInfo      `json:"debug"`
}

func encodeAtom(a Atom) (atomJSON, error) {
	switch a := a.(type) {
	case Var:
		id := a.ID
		return atomJSON{Var: &id}, nil
	case Literal:
		s := FormatFloat(a.Value)
		return atomJSON{Lit: &s}, nil
	default:
		return atomJSON{}, fmt.Errorf("unknown atom type: %T", a)
	}
}

// decodeAtom resolves a variable reference against the variables declared so
// far so that decoded references carry the binding's aval.
func decodeAtom(a atomJSON, vars map[int]Var) (Atom, error) {
	switch {
	case a.Var != nil && a.Lit != nil:
		return nil, fmt.Errorf("atom has both var and lit")
	case a.Var != nil:
		v, ok := vars[*a.Var]
		if !ok {
			return nil, NewUnboundVariable(Var{ID: *a.Var}, "in decoded graph")
		}
		return v, nil
	case a.Lit != nil:
		f, err := ParseFloat(*a.Lit)
		if err != nil {
			return nil, fmt.Errorf("literal %q: %w", *a.Lit, err)
		}
		return Literal{Value: f}, nil
	default:
		return nil, fmt.Errorf("atom has neither var nor lit")
	}
}

// MarshalJSON implements json.Marshaler for Graph.
func (g *Graph) MarshalJSON() ([]byte, error) {
	wire := graphJSON{
		IRVersion: IRVersion,
		Inputs:    make([]varJSON, len(g.Inputs)),
		Equations: make([]equationJSON, len(g.Equations)),
		Outputs:   make([]atomJSON, len(g.Outputs)),
		Debug:     g.Debug,
	}
	for i, v := range g.Inputs {
		wire.Inputs[i] = varJSON{ID: v.ID, Aval: v.Aval}
	}
	for i, eqn := range g.Equations {
		args := make([]atomJSON, len(eqn.Args))
		for j, a := range eqn.Args {
			enc, err := encodeAtom(a)
			if err != nil {
				return nil, fmt.Errorf("equation %d arg %d: %w", i, j, err)
			}
			args[j] = enc
		}
		wire.Equations[i] = equationJSON{
			Result:    varJSON{ID: eqn.Result.ID, Aval: eqn.Result.Aval},
			Primitive: eqn.Primitive,
			Args:      args,
		}
	}
	for i, out := range g.Outputs {
		enc, err := encodeAtom(out)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		wire.Outputs[i] = enc
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler for Graph.
// Unknown fields are rejected and the decoded graph is validated.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var wire graphJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return err
	}
	if wire.IRVersion != IRVersion {
		return fmt.Errorf("unsupported ir_version %q (want %q)", wire.IRVersion, IRVersion)
	}

	vars := make(map[int]Var, len(wire.Inputs)+len(wire.Equations))
	out := Graph{Debug: wire.Debug}

	for _, vj := range wire.Inputs {
		v := Var{ID: vj.ID, Aval: vj.Aval}
		vars[v.ID] = v
		out.Inputs = append(out.Inputs, v)
	}
	for i, ej := range wire.Equations {
		args := make([]Atom, len(ej.Args))
		for j, aj := range ej.Args {
			a, err := decodeAtom(aj, vars)
			if err != nil {
				return fmt.Errorf("equation %d arg %d: %w", i, j, err)
			}
			args[j] = a
		}
		result := Var{ID: ej.Result.ID, Aval: ej.Result.Aval}
		out.Equations = append(out.Equations, Equation{Result: result, Primitive: ej.Primitive, Args: args})
		vars[result.ID] = result
	}
	for i, aj := range wire.Outputs {
		a, err := decodeAtom(aj, vars)
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		out.Outputs = append(out.Outputs, a)
	}

	if err := Validate(&out); err != nil {
		return err
	}
	*g = out
	return nil
}
