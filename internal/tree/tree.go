// Package tree flattens nested values into ordered leaves plus a descriptor
// of their container shape, and rebuilds them.
//
// Containers are []any (sequence), map[string]any (mapping, visited in
// sorted key order), nil (none) and values implementing Node whose name has
// been registered. Every other value is a leaf, including typed slices and
// abstract-value metadata.
//
// A nil []any is an empty sequence and unflattens as a non-nil []any{}.
// The descriptors of the two compare equal.
package tree

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/xform/internal/ir"
)

type kind int

const (
	leafKind kind = iota
	noneKind
	seqKind
	mapKind
	nodeKind
)

// Node is implemented by custom container types.
type Node interface {
	// TreeName identifies the registration used to rebuild the node.
	TreeName() string

	// TreeChildren returns the node's children in order and auxiliary data
	// that is kept in the descriptor rather than flattened.
	TreeChildren() (children []any, aux string)
}

// Rebuild constructs a node from its auxiliary data and rebuilt children.
type Rebuild func(aux string, children []any) (Node, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Rebuild{}
)

// Register makes nodes named name containers. Registering a name twice
// replaces the earlier rebuild function.
func Register(name string, rebuild Rebuild) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = rebuild
}

// Unregister removes a registration. Nodes of that name become leaves.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

func lookupNode(name string) (Rebuild, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r, ok
}

// Def describes the container shape of a value independent of its leaves.
// Two descriptors are Equal iff they flatten and rebuild identically.
type Def struct {
	kind     kind
	keys     []string // mapKind, sorted
	name     string   // nodeKind
	aux      string   // nodeKind
	children []*Def
	leaves   int
}

var leafDef = &Def{kind: leafKind, leaves: 1}

// NumLeaves returns the number of leaves the descriptor holds.
func (d *Def) NumLeaves() int { return d.leaves }

// IsLeaf reports whether d describes a single bare leaf.
func (d *Def) IsLeaf() bool { return d.kind == leafKind }

// Equal reports whether d and o describe the same shape.
func (d *Def) Equal(o *Def) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.kind != o.kind || d.name != o.name || d.aux != o.aux ||
		d.leaves != o.leaves || len(d.children) != len(o.children) ||
		!slices.Equal(d.keys, o.keys) {
		return false
	}
	for i := range d.children {
		if !d.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// String renders the shape with * for leaves, e.g. [*, {'b': *, 'c': None}].
func (d *Def) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d *Def) write(b *strings.Builder) {
	switch d.kind {
	case leafKind:
		b.WriteString("*")
	case noneKind:
		b.WriteString("None")
	case seqKind:
		b.WriteString("[")
		for i, c := range d.children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteString("]")
	case mapKind:
		b.WriteString("{")
		for i, c := range d.children {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: ", quoteKey(d.keys[i]))
			c.write(b)
		}
		b.WriteString("}")
	case nodeKind:
		b.WriteString(d.name)
		if d.aux != "" {
			fmt.Fprintf(b, "<%s>", d.aux)
		}
		b.WriteString("(")
		for i, c := range d.children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteString(")")
	}
}

func quoteKey(k string) string {
	return "'" + strings.ReplaceAll(k, "'", `\'`) + "'"
}

// Flatten returns the leaves of v in order and its descriptor.
func Flatten(v any) ([]any, *Def) {
	var leaves []any
	def := flatten(v, &leaves)
	if leaves == nil {
		leaves = []any{}
	}
	return leaves, def
}

func flatten(v any, leaves *[]any) *Def {
	switch val := v.(type) {
	case nil:
		return &Def{kind: noneKind}
	case []any:
		d := &Def{kind: seqKind, children: make([]*Def, len(val))}
		for i, child := range val {
			d.children[i] = flatten(child, leaves)
			d.leaves += d.children[i].leaves
		}
		return d
	case map[string]any:
		keys := sortedKeys(val)
		d := &Def{kind: mapKind, keys: keys, children: make([]*Def, len(keys))}
		for i, k := range keys {
			d.children[i] = flatten(val[k], leaves)
			d.leaves += d.children[i].leaves
		}
		return d
	case Node:
		if _, ok := lookupNode(val.TreeName()); ok {
			children, aux := val.TreeChildren()
			d := &Def{kind: nodeKind, name: val.TreeName(), aux: aux, children: make([]*Def, len(children))}
			for i, child := range children {
				d.children[i] = flatten(child, leaves)
				d.leaves += d.children[i].leaves
			}
			return d
		}
	}
	*leaves = append(*leaves, v)
	return leafDef
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unflatten rebuilds a value of shape def from leaves.
//
// Returns an ARITY_MISMATCH error if len(leaves) differs from
// def.NumLeaves() and a STRUCTURE_MISMATCH error if def contains a custom
// node whose registration is missing.
func Unflatten(def *Def, leaves []any) (any, error) {
	if len(leaves) != def.leaves {
		return nil, ir.NewArityMismatch("leaves for "+def.String(), def.leaves, len(leaves))
	}
	pos := 0
	return unflatten(def, leaves, &pos)
}

func unflatten(d *Def, leaves []any, pos *int) (any, error) {
	switch d.kind {
	case leafKind:
		v := leaves[*pos]
		*pos++
		return v, nil
	case noneKind:
		return nil, nil
	case seqKind:
		out := make([]any, len(d.children))
		for i, c := range d.children {
			v, err := unflatten(c, leaves, pos)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case mapKind:
		out := make(map[string]any, len(d.children))
		for i, c := range d.children {
			v, err := unflatten(c, leaves, pos)
			if err != nil {
				return nil, err
			}
			out[d.keys[i]] = v
		}
		return out, nil
	case nodeKind:
		rebuild, ok := lookupNode(d.name)
		if !ok {
			return nil, ir.NewStructureMismatch("custom node %q is not registered", d.name)
		}
		children := make([]any, len(d.children))
		for i, c := range d.children {
			v, err := unflatten(c, leaves, pos)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		return rebuild(d.aux, children)
	}
	return nil, fmt.Errorf("tree: unknown descriptor kind %d", d.kind)
}

// FlattenUpTo flattens v against an expected descriptor. A leaf in def
// takes the whole corresponding subtree of v as one leaf. Returns a
// STRUCTURE_MISMATCH error naming the first differing path.
func FlattenUpTo(def *Def, v any) ([]any, error) {
	leaves := make([]any, 0, def.leaves)
	if err := flattenUpTo(def, v, "", &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flattenUpTo(d *Def, v any, path string, leaves *[]any) error {
	at := path
	if at == "" {
		at = "root"
	}
	switch d.kind {
	case leafKind:
		*leaves = append(*leaves, v)
		return nil
	case noneKind:
		if v != nil {
			return ir.NewStructureMismatch("at %s: expected None, got %T", at, v)
		}
		return nil
	case seqKind:
		seq, ok := v.([]any)
		if !ok {
			return ir.NewStructureMismatch("at %s: expected sequence of %d, got %T", at, len(d.children), v)
		}
		if len(seq) != len(d.children) {
			return ir.NewStructureMismatch("at %s: expected sequence of %d, got %d", at, len(d.children), len(seq))
		}
		for i, c := range d.children {
			if err := flattenUpTo(c, seq[i], path+"["+strconv.Itoa(i)+"]", leaves); err != nil {
				return err
			}
		}
		return nil
	case mapKind:
		m, ok := v.(map[string]any)
		if !ok {
			return ir.NewStructureMismatch("at %s: expected mapping, got %T", at, v)
		}
		keys := sortedKeys(m)
		if !slices.Equal(keys, d.keys) {
			return ir.NewStructureMismatch("at %s: expected keys %v, got %v", at, d.keys, keys)
		}
		for i, c := range d.children {
			if err := flattenUpTo(c, m[d.keys[i]], path+"["+quoteKey(d.keys[i])+"]", leaves); err != nil {
				return err
			}
		}
		return nil
	case nodeKind:
		n, ok := v.(Node)
		if !ok || n.TreeName() != d.name {
			return ir.NewStructureMismatch("at %s: expected %s node, got %T", at, d.name, v)
		}
		if _, ok := lookupNode(d.name); !ok {
			return ir.NewStructureMismatch("at %s: custom node %q is not registered", at, d.name)
		}
		children, aux := n.TreeChildren()
		if aux != d.aux || len(children) != len(d.children) {
			return ir.NewStructureMismatch("at %s: %s node differs from descriptor", at, d.name)
		}
		for i, c := range d.children {
			if err := flattenUpTo(c, children[i], path+"["+strconv.Itoa(i)+"]", leaves); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("tree: unknown descriptor kind %d", d.kind)
}

// Paths returns the key path of every leaf in order, e.g. [0]['w']. A bare
// leaf has the empty path.
func Paths(def *Def) []string {
	paths := make([]string, 0, def.leaves)
	collectPaths(def, "", &paths)
	return paths
}

func collectPaths(d *Def, prefix string, paths *[]string) {
	switch d.kind {
	case leafKind:
		*paths = append(*paths, prefix)
	case seqKind, nodeKind:
		for i, c := range d.children {
			collectPaths(c, prefix+"["+strconv.Itoa(i)+"]", paths)
		}
	case mapKind:
		for i, c := range d.children {
			collectPaths(c, prefix+"["+quoteKey(d.keys[i])+"]", paths)
		}
	}
}

// Map applies fn to every leaf of v and rebuilds the result with the same
// shape. The first error from fn is returned.
func Map(v any, fn func(leaf any) (any, error)) (any, error) {
	leaves, def := Flatten(v)
	mapped := make([]any, len(leaves))
	for i, leaf := range leaves {
		out, err := fn(leaf)
		if err != nil {
			return nil, err
		}
		mapped[i] = out
	}
	return Unflatten(def, mapped)
}
