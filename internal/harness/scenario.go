package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/xform/internal/ir"
)

// Scenario defines a conformance test scenario: a program and the checks
// it must pass.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Program Program `yaml:"program"`

	// Tolerance is the absolute difference allowed between expected and
	// actual floats. Zero means exact.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	Checks []Check `yaml:"checks"`
}

// Program is a straight-line program over named values.
type Program struct {
	// Inputs names the program's arguments in order.
	Inputs []string `yaml:"inputs"`

	// Body binds one name per primitive call.
	Body []Step `yaml:"body"`

	// Outputs is a nested structure of names and constants.
	Outputs any `yaml:"outputs"`
}

// Step binds Let to Op applied to Args.
type Step struct {
	Let string `yaml:"let"`
	Op  string `yaml:"op"`

	// Args are names of inputs or earlier lets, or numeric constants.
	Args []any `yaml:"args"`
}

// Check kind constants.
const (
	CheckEval        = "eval"
	CheckJVP         = "jvp"
	CheckDerivatives = "derivatives"
	CheckStage       = "stage"
	CheckRoundtrip   = "roundtrip"
)

// Check is one assertion about the program.
type Check struct {
	// Kind is one of eval, jvp, derivatives, stage, roundtrip.
	Kind string `yaml:"kind"`

	// Args are the program arguments.
	Args []any `yaml:"args,omitempty"`

	// Tangents are the jvp directions. Default: ones shaped like Args.
	Tangents []any `yaml:"tangents,omitempty"`

	Want        any `yaml:"want,omitempty"`
	WantTangent any `yaml:"want_tangent,omitempty"`

	// JVP stages the derivative of the program instead of the program
	// (used by stage).
	JVP bool `yaml:"jvp,omitempty"`

	// Equations is the expected equation count (used by stage).
	Equations *int `yaml:"equations,omitempty"`

	// Primitives is the expected primitive of each equation (used by stage).
	Primitives []string `yaml:"primitives,omitempty"`

	// Golden names the golden file holding the staged graph text (used by
	// stage and RunWithGolden).
	Golden string `yaml:"golden,omitempty"`

	// Error is the error code the check must fail with, e.g.
	// UNSUPPORTED_PRIMITIVE.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	normalizeScenario(&scenario)
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// normalizeScenario converts YAML integers to float64 so that constants
// and expectations compare against engine values.
func normalizeScenario(s *Scenario) {
	for i := range s.Program.Body {
		s.Program.Body[i].Args = normalizeList(s.Program.Body[i].Args)
	}
	s.Program.Outputs = normalize(s.Program.Outputs)
	for i := range s.Checks {
		c := &s.Checks[i]
		c.Args = normalizeList(c.Args)
		c.Tangents = normalizeList(c.Tangents)
		c.Want = normalize(c.Want)
		c.WantTangent = normalize(c.WantTangent)
	}
}

func normalizeList(xs []any) []any {
	if xs == nil {
		return nil
	}
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = normalize(x)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case []any:
		return normalizeList(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// validateScenario checks that required fields are present and that every
// name the program uses is bound before use.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative")
	}
	if err := validateProgram(&s.Program); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	if len(s.Checks) == 0 {
		return fmt.Errorf("checks list is required and must be non-empty")
	}
	for i := range s.Checks {
		if err := validateCheck(i, &s.Checks[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateProgram(p *Program) error {
	bound := make(map[string]bool)
	for i, name := range p.Inputs {
		if name == "" {
			return fmt.Errorf("inputs[%d]: name is required", i)
		}
		if bound[name] {
			return fmt.Errorf("inputs[%d]: %q is bound more than once", i, name)
		}
		bound[name] = true
	}

	for i, step := range p.Body {
		if step.Let == "" {
			return fmt.Errorf("body[%d]: let is required", i)
		}
		if step.Op == "" {
			return fmt.Errorf("body[%d]: op is required", i)
		}
		for j, a := range step.Args {
			if err := checkTerm(a, bound, fmt.Sprintf("body[%d].args[%d]", i, j)); err != nil {
				return err
			}
		}
		if bound[step.Let] {
			return fmt.Errorf("body[%d]: %q is bound more than once", i, step.Let)
		}
		bound[step.Let] = true
	}

	if p.Outputs == nil {
		return fmt.Errorf("outputs is required")
	}
	return checkTerm(p.Outputs, bound, "outputs")
}

// checkTerm verifies that every name in a (possibly nested) term is bound.
func checkTerm(v any, bound map[string]bool, where string) error {
	switch x := v.(type) {
	case string:
		if !bound[x] {
			return &ir.Error{
				Code:    ir.CodeUnboundVariable,
				Message: fmt.Sprintf("%s: name %q is not bound", where, x),
			}
		}
	case float64:
	case []any:
		for i, e := range x {
			if err := checkTerm(e, bound, fmt.Sprintf("%s[%d]", where, i)); err != nil {
				return err
			}
		}
	case map[string]any:
		for k, e := range x {
			if err := checkTerm(e, bound, fmt.Sprintf("%s['%s']", where, k)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: unsupported term %T", where, v)
	}
	return nil
}

var errorCodes = []string{
	string(ir.CodeTypeMismatch),
	string(ir.CodeUnsupportedPrimitive),
	string(ir.CodeUnboundVariable),
	string(ir.CodeArityMismatch),
	string(ir.CodeStructureMismatch),
}

// validateCheck validates a single check based on its kind.
func validateCheck(index int, c *Check) error {
	if c.Error != "" && !slices.Contains(errorCodes, c.Error) {
		return fmt.Errorf("checks[%d]: unknown error code %q", index, c.Error)
	}
	expectsValue := c.Error == ""

	switch c.Kind {
	case CheckEval:
		if expectsValue && c.Want == nil {
			return fmt.Errorf("checks[%d]: want is required for eval", index)
		}
	case CheckJVP:
		if expectsValue && (c.Want == nil || c.WantTangent == nil) {
			return fmt.Errorf("checks[%d]: want and want_tangent are required for jvp", index)
		}
		if c.Tangents != nil && len(c.Tangents) != len(c.Args) {
			return fmt.Errorf("checks[%d]: tangents must match args", index)
		}
	case CheckDerivatives:
		if _, ok := c.Want.([]any); expectsValue && !ok {
			return fmt.Errorf("checks[%d]: want must be a list for derivatives", index)
		}
	case CheckStage:
		if c.Equations != nil && *c.Equations < 0 {
			return fmt.Errorf("checks[%d]: equations must be non-negative", index)
		}
		if c.Want != nil && c.Args == nil {
			return fmt.Errorf("checks[%d]: want requires args for stage", index)
		}
	case CheckRoundtrip:
		if c.Args == nil {
			return fmt.Errorf("checks[%d]: args is required for roundtrip", index)
		}
	case "":
		return fmt.Errorf("checks[%d]: kind is required", index)
	default:
		return fmt.Errorf("checks[%d]: unknown check kind %q", index, c.Kind)
	}
	return nil
}
