package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/xform/internal/compiler"
	"github.com/roach88/xform/internal/engine"
	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/prim"
)

// PrimsOptions holds flags for the prims command.
type PrimsOptions struct {
	*RootOptions
	Specs string // directory of extension declarations
}

// PrimitiveInfo describes one declared primitive.
type PrimitiveInfo struct {
	Name     string          `json:"name"`
	Arity    int             `json:"arity"`
	Doc      string          `json:"doc,omitempty"`
	Rules    []string        `json:"rules"`
	Handlers map[string]bool `json:"handlers"`
}

// PrimsResult is the JSON payload of the prims command.
type PrimsResult struct {
	Primitives []PrimitiveInfo             `json:"primitives"`
	Coverage   map[string]string           `json:"coverage"`
	Missing    []string                    `json:"missing,omitempty"`
	Invalid    []compiler.ValidationError `json:"invalid,omitempty"`
}

var interpreterKinds = []prim.Kind{prim.Eval, prim.JVP, prim.Stage}

// NewPrimsCommand creates the prims command.
func NewPrimsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrimsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prims",
		Short: "List primitives and interpreter coverage",
		Long: `List every declared primitive with the interpreter kinds that handle it.

With --specs, the CUE declarations in the directory are validated and
declared next to the builtins. A declaration that an interpreter kind
must cover but that has no handler is reported as missing.

Exit codes:
  0 - Every coverage obligation is met
  1 - Invalid declarations or missing handlers
  2 - Command error (unreadable directory, CUE errors)

Examples:
  xform prims
  xform prims --specs ./primitives --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrims(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Specs, "specs", "", "directory of CUE primitive declarations")

	return cmd
}

func runPrims(opts *PrimsOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	result := PrimsResult{Coverage: make(map[string]string)}

	reg := engine.DefaultRegistry()
	if opts.Specs != "" {
		specs, err := compiler.LoadDir(opts.Specs)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load declarations", err)
		}
		out.VerboseLog("loaded %d declarations from %s", len(specs), opts.Specs)

		reg, err = engine.NewBuiltinRegistry()
		if err != nil {
			return err
		}
		for i := range specs {
			if errs := compiler.Validate(&specs[i]); len(errs) > 0 {
				result.Invalid = append(result.Invalid, errs...)
				continue
			}
			if err := reg.Declare(specs[i]); err != nil {
				return WrapExitError(ExitCommandError, "failed to declare primitive", err)
			}
		}
		result.Missing = missingHandlers(reg.Seal())
	}

	for _, kind := range interpreterKinds {
		result.Coverage[string(kind)] = reg.Coverage(kind).String()
	}
	for _, spec := range reg.Specs() {
		info := PrimitiveInfo{
			Name:     string(spec.Name),
			Arity:    spec.Arity,
			Doc:      spec.Doc,
			Rules:    spec.Rules,
			Handlers: make(map[string]bool, len(interpreterKinds)),
		}
		for _, kind := range interpreterKinds {
			info.Handlers[string(kind)] = reg.Has(kind, spec.Name)
		}
		result.Primitives = append(result.Primitives, info)
	}

	if err := out.Success(result, formatPrims(result)); err != nil {
		return err
	}
	if len(result.Invalid) > 0 || len(result.Missing) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d invalid declaration(s), %d missing handler(s)", len(result.Invalid), len(result.Missing)))
	}
	return nil
}

// missingHandlers lists the messages of the UNSUPPORTED_PRIMITIVE errors
// joined into a failed seal.
func missingHandlers(err error) []string {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	missing := make([]string, 0, len(errs))
	for _, e := range errs {
		var xe *ir.Error
		if errors.As(e, &xe) {
			missing = append(missing, fmt.Sprintf("%s has no %s handler", xe.Primitive, xe.Kind))
			continue
		}
		missing = append(missing, e.Error())
	}
	return missing
}

func formatPrims(r PrimsResult) string {
	var b strings.Builder
	for _, p := range r.Primitives {
		var kinds []string
		for _, kind := range interpreterKinds {
			if p.Handlers[string(kind)] {
				kinds = append(kinds, string(kind))
			} else {
				kinds = append(kinds, "-")
			}
		}
		fmt.Fprintf(&b, "%-8s arity=%d  %s", p.Name, p.Arity, strings.Join(kinds, " "))
		if p.Doc != "" {
			fmt.Fprintf(&b, "  %s", p.Doc)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "coverage: eval=%s jvp=%s stage=%s\n",
		r.Coverage[string(prim.Eval)], r.Coverage[string(prim.JVP)], r.Coverage[string(prim.Stage)])
	for _, v := range r.Invalid {
		fmt.Fprintf(&b, "✗ invalid: %s\n", v.Error())
	}
	for _, m := range r.Missing {
		fmt.Fprintf(&b, "✗ missing: %s\n", m)
	}
	return b.String()
}
