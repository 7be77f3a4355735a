package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Accepted values: string, int, int64, bool, []any, map[string]any.
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats and no null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string.
// Only control characters, backslash and quote are escaped; U+2028 and
// U+2029 are written literally as RFC 8785 requires.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, leaving an escaped backslash
// followed by the text u2028 alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if data[i+1] == '\\' {
				out = append(out, '\\', '\\')
				i++
				continue
			}
			if i+6 <= len(data) && string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// CRITICAL: Go's default string comparison uses UTF-8 which produces
// DIFFERENT order for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// canonicalAtom converts an atom to its canonical form.
func canonicalAtom(a Atom) (any, error) {
	switch a := a.(type) {
	case Var:
		return map[string]any{"var": a.ID}, nil
	case Literal:
		return map[string]any{"lit": FormatFloat(a.Value)}, nil
	default:
		return nil, fmt.Errorf("unknown atom type: %T", a)
	}
}

func canonicalAval(a *Aval) any {
	if a == nil {
		return map[string]any{}
	}
	shape := make([]any, len(a.Shape))
	for i, d := range a.Shape {
		shape[i] = d
	}
	return map[string]any{"dtype": a.DType, "shape": shape}
}

// canonicalGraph converts a graph to canonical form. Debug info is excluded:
// two graphs computing the same program share an identity regardless of
// where they were traced.
func canonicalGraph(g *Graph) (map[string]any, error) {
	inputs := make([]any, len(g.Inputs))
	for i, v := range g.Inputs {
		inputs[i] = map[string]any{"id": v.ID, "aval": canonicalAval(v.Aval)}
	}

	eqns := make([]any, len(g.Equations))
	for i, eqn := range g.Equations {
		args := make([]any, len(eqn.Args))
		for j, a := range eqn.Args {
			ca, err := canonicalAtom(a)
			if err != nil {
				return nil, fmt.Errorf("equation %d arg %d: %w", i, j, err)
			}
			args[j] = ca
		}
		eqns[i] = map[string]any{
			"result":    map[string]any{"id": eqn.Result.ID, "aval": canonicalAval(eqn.Result.Aval)},
			"primitive": string(eqn.Primitive),
			"args":      args,
		}
	}

	outputs := make([]any, len(g.Outputs))
	for i, a := range g.Outputs {
		ca, err := canonicalAtom(a)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		outputs[i] = ca
	}

	return map[string]any{
		"ir_version": IRVersion,
		"inputs":     inputs,
		"equations":  eqns,
		"outputs":    outputs,
	}, nil
}
