package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/xform/internal/ir"
)

// CompilePrimitive parses a CUE value into a PrimitiveSpec.
//
// The CUE value should be the primitive struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`primitive: add: { arity: 2, rules: ["eval"] }`)
//	spec, err := CompilePrimitive(v.LookupPath(cue.ParsePath("primitive.add")))
//
// The name comes from the struct label. results defaults to 1.
func CompilePrimitive(v cue.Value) (*ir.PrimitiveSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.PrimitiveSpec{Results: 1}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = ir.Primitive(labels[len(labels)-1].String())
	}

	arityVal := v.LookupPath(cue.ParsePath("arity"))
	if !arityVal.Exists() {
		return nil, &CompileError{
			Field:   "arity",
			Message: "arity is required",
			Pos:     v.Pos(),
		}
	}
	arity, err := compileCount(arityVal, "arity")
	if err != nil {
		return nil, err
	}
	spec.Arity = arity

	if resultsVal := v.LookupPath(cue.ParsePath("results")); resultsVal.Exists() {
		results, err := compileCount(resultsVal, "results")
		if err != nil {
			return nil, err
		}
		spec.Results = results
	}

	if docVal := v.LookupPath(cue.ParsePath("doc")); docVal.Exists() {
		doc, err := docVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Doc = doc
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Field:   "rules",
			Message: "rules are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Rules = []string{}
	for iter.Next() {
		kind, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Rules = append(spec.Rules, kind)
	}

	return spec, nil
}

// compileCount reads a concrete integer. Floats are rejected even when
// integral so declarations stay unambiguous.
func compileCount(v cue.Value, field string) (int, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   field,
			Message: "must be an integer, not a float",
			Pos:     v.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// CompileValue compiles every entry under the top-level `primitive` field,
// in declaration order. A value with no primitives yields an empty slice.
func CompileValue(v cue.Value) ([]ir.PrimitiveSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	primsVal := v.LookupPath(cue.ParsePath("primitive"))
	if !primsVal.Exists() {
		return []ir.PrimitiveSpec{}, nil
	}

	iter, err := primsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	specs := []ir.PrimitiveSpec{}
	for iter.Next() {
		spec, err := CompilePrimitive(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("primitive.%s: %w", iter.Label(), err)
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileSource compiles CUE source text. name is used for error positions.
func CompileSource(name string, src []byte) ([]ir.PrimitiveSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	return CompileValue(v)
}

// LoadDir compiles every .cue file directly inside dir. The files are
// unified, so the same primitive may be declared in several files as long as
// the declarations agree.
func LoadDir(dir string) ([]ir.PrimitiveSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading primitive directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}
	sort.Strings(files)

	ctx := cuecontext.New()
	value := ctx.CompileString("{}")
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		value = value.Unify(ctx.CompileBytes(data, cue.Filename(path)))
	}
	return CompileValue(value)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
