package ir

import (
	"math"
	"strconv"
	"strings"
)

// Primitive names an elementary operation. Primitives never carry behavior;
// rules are registered per interpreter kind in package prim.
type Primitive string

// Builtin primitives.
const (
	Add Primitive = "add"
	Mul Primitive = "mul"
)

// PrimitiveSpec is a compiled primitive declaration.
type PrimitiveSpec struct {
	Name    Primitive `json:"name"`
	Arity   int       `json:"arity"`
	Results int       `json:"results"`
	Doc     string    `json:"doc,omitempty"`
	Rules   []string  `json:"rules"` // interpreter kinds that must cover this primitive
}

// Aval is abstract value metadata (dtype and shape) attached to a variable.
// The core passes it through staging without interpreting it.
type Aval struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
}

// String renders the aval as dtype[dims], e.g. f32[3,4].
func (a Aval) String() string {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	return a.DType + "[" + strings.Join(dims, ",") + "]"
}

// Atom is a sealed interface for equation arguments and graph outputs.
// Only Var and Literal implement it.
type Atom interface {
	atom() // Sealed
	String() string
}

// Var is a variable bound exactly once within one graph.
type Var struct {
	ID   int
	Aval *Aval

	// scope identifies the builder that allocated the variable; zero for
	// variables decoded from the interchange form.
	scope uint64
}

func (Var) atom() {}

// Name returns the variable's printed name: a, b, ..., z, ba, bb, ...
func (v Var) Name() string {
	id := v.ID
	var buf []byte
	for {
		buf = append(buf, byte('a'+id%26))
		id /= 26
		if id == 0 {
			break
		}
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// String returns the variable's name.
func (v Var) String() string {
	return v.Name()
}

// Binder returns the name annotated with its aval, as printed at the binding
// site.
func (v Var) Binder() string {
	if v.Aval == nil {
		return v.Name()
	}
	return v.Name() + ":" + v.Aval.String()
}

// Literal is a constant argument.
type Literal struct {
	Value float64
}

func (Literal) atom() {}

// String renders the literal with a decimal point, e.g. 3.0.
func (l Literal) String() string {
	return FormatFloat(l.Value)
}

// FormatFloat renders f as its shortest round-trip decimal text, always
// distinguishable from an integer.
func FormatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "+Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ParseFloat is the inverse of FormatFloat.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// Equation binds Result to Primitive applied to Args.
type Equation struct {
	Result    Var
	Primitive Primitive
	Args      []Atom
}

// String renders the equation as `r = op(args...)`.
func (e Equation) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Result.Binder() + " = " + string(e.Primitive) + "(" + strings.Join(args, ", ") + ")"
}

// DebugInfo records where a graph came from.
type DebugInfo struct {
	TracedFor   string   `json:"traced_for,omitempty"`
	ArgNames    []string `json:"arg_names,omitempty"`
	ResultPaths []string `json:"result_paths,omitempty"`
	TraceID     string   `json:"trace_id,omitempty"`
}

// Graph is a straight-line SSA program.
//
// INVARIANTS (checked by Validate):
//   - Equations only reference inputs or results of earlier equations
//   - Every variable is bound exactly once
//   - Outputs reference bound variables or literals
//
// A Graph must not be mutated after Build; it may then be shared and
// evaluated any number of times, concurrently.
type Graph struct {
	Inputs    []Var
	Equations []Equation
	Outputs   []Atom
	Debug     DebugInfo
}

// String returns the deterministic textual form of the graph: the input
// line, one line per equation, and the output line.
func (g *Graph) String() string {
	var b strings.Builder

	inputs := make([]string, len(g.Inputs))
	for i, v := range g.Inputs {
		inputs[i] = v.Binder()
	}
	if len(inputs) > 0 {
		b.WriteString(strings.Join(inputs, ", "))
		b.WriteString(" ")
	}
	b.WriteString("->\n")

	for _, eqn := range g.Equations {
		b.WriteString(eqn.String())
		b.WriteString("\n")
	}

	outputs := make([]string, len(g.Outputs))
	for i, a := range g.Outputs {
		outputs[i] = a.String()
	}
	b.WriteString(strings.Join(outputs, ", "))
	b.WriteString("\n")
	return b.String()
}

// Primitives returns the primitive of each equation in program order.
func (g *Graph) Primitives() []Primitive {
	prims := make([]Primitive, len(g.Equations))
	for i, eqn := range g.Equations {
		prims[i] = eqn.Primitive
	}
	return prims
}
