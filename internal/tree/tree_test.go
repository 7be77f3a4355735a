package tree

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/ir"
)

// pair is a custom container with a label kept as auxiliary data.
type pair struct {
	label       string
	left, right any
}

func (p pair) TreeName() string { return "pair" }

func (p pair) TreeChildren() ([]any, string) {
	return []any{p.left, p.right}, p.label
}

func rebuildPair(aux string, children []any) (Node, error) {
	if len(children) != 2 {
		return nil, fmt.Errorf("pair needs 2 children, got %d", len(children))
	}
	return pair{label: aux, left: children[0], right: children[1]}, nil
}

func registerPair(t *testing.T) {
	t.Helper()
	Register("pair", rebuildPair)
	t.Cleanup(func() { Unregister("pair") })
}

func TestNilSequenceRebuildsEmpty(t *testing.T) {
	leaves, def := Flatten([]any(nil))
	assert.Empty(t, leaves)

	_, empty := Flatten([]any{})
	assert.True(t, def.Equal(empty))

	rebuilt, err := Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Equal(t, []any{}, rebuilt)
	assert.NotNil(t, rebuilt)
}

func TestFlattenRoundTrip(t *testing.T) {
	registerPair(t)

	tests := []struct {
		name   string
		value  any
		leaves int
	}{
		{"leaf", 2.0, 1},
		{"none", nil, 0},
		{"empty sequence", []any{}, 0},
		{"empty mapping", map[string]any{}, 0},
		{"sequence", []any{1.0, 2.0, 3.0}, 3},
		{"mapping", map[string]any{"w": 1.0, "b": 2.0}, 2},
		{"nested", []any{1.0, map[string]any{"a": []any{2.0, nil}, "z": 3.0}, nil}, 3},
		{"custom node", pair{label: "xy", left: 1.0, right: []any{2.0, 3.0}}, 3},
		{"abstract leaf", []any{ir.Aval{DType: "f32", Shape: []int{2}}, 1.0}, 2},
		{"typed slice is a leaf", []float64{1, 2, 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaves, def := Flatten(tt.value)
			assert.Len(t, leaves, tt.leaves)
			assert.Equal(t, tt.leaves, def.NumLeaves())

			rebuilt, err := Unflatten(def, leaves)
			require.NoError(t, err)
			assert.Equal(t, tt.value, rebuilt)
		})
	}
}

func TestFlattenLeafOrder(t *testing.T) {
	leaves, _ := Flatten([]any{
		map[string]any{"z": 1.0, "a": 2.0},
		3.0,
	})
	assert.Equal(t, []any{2.0, 1.0, 3.0}, leaves, "mapping leaves follow sorted key order")
}

func TestDescriptorEquality(t *testing.T) {
	_, d1 := Flatten([]any{1.0, map[string]any{"a": 2.0}})
	_, d2 := Flatten([]any{9.0, map[string]any{"a": -4.0}})
	_, d3 := Flatten([]any{1.0, map[string]any{"b": 2.0}})
	_, d4 := Flatten([]any{1.0, 2.0})
	_, d5 := Flatten([]any{1.0, nil})

	assert.True(t, d1.Equal(d2), "same shape with different leaves")
	assert.False(t, d1.Equal(d3), "different keys")
	assert.False(t, d4.Equal(d5), "leaf versus None")
	assert.False(t, d1.Equal(d4))
}

func TestDescriptorEqualityCustomAux(t *testing.T) {
	registerPair(t)

	_, d1 := Flatten(pair{label: "a", left: 1.0, right: 2.0})
	_, d2 := Flatten(pair{label: "a", left: 5.0, right: 6.0})
	_, d3 := Flatten(pair{label: "b", left: 1.0, right: 2.0})

	assert.True(t, d1.Equal(d2))
	assert.False(t, d1.Equal(d3), "auxiliary data is part of the shape")
}

func TestDescriptorString(t *testing.T) {
	registerPair(t)

	tests := []struct {
		value any
		want  string
	}{
		{1.0, "*"},
		{nil, "None"},
		{[]any{1.0, nil}, "[*, None]"},
		{map[string]any{"w": 1.0, "b": []any{}}, "{'b': [], 'w': *}"},
		{pair{label: "p", left: 1.0, right: 2.0}, "pair<p>(*, *)"},
	}
	for _, tt := range tests {
		_, def := Flatten(tt.value)
		assert.Equal(t, tt.want, def.String())
	}
}

func TestUnflattenArityMismatch(t *testing.T) {
	_, def := Flatten([]any{1.0, 2.0, 3.0})

	for _, m := range []int{0, 2, 4} {
		t.Run(strconv.Itoa(m), func(t *testing.T) {
			_, err := Unflatten(def, make([]any, m))
			require.Error(t, err)
			assert.True(t, ir.IsArityMismatch(err))
		})
	}
}

func TestUnflattenMissingRegistration(t *testing.T) {
	Register("pair", rebuildPair)
	leaves, def := Flatten(pair{left: 1.0, right: 2.0})
	Unregister("pair")

	_, err := Unflatten(def, leaves)
	require.Error(t, err)
	assert.True(t, ir.IsStructureMismatch(err))
}

func TestUnregisteredNodeIsLeaf(t *testing.T) {
	p := pair{left: 1.0, right: 2.0}
	leaves, def := Flatten(p)

	assert.True(t, def.IsLeaf())
	assert.Equal(t, []any{p}, leaves)
}

func TestFlattenUpTo(t *testing.T) {
	_, def := Flatten([]any{1.0, map[string]any{"a": 2.0}})

	leaves, err := FlattenUpTo(def, []any{5.0, map[string]any{"a": []any{6.0, 7.0}}})
	require.NoError(t, err)
	assert.Equal(t, []any{5.0, []any{6.0, 7.0}}, leaves, "a descriptor leaf absorbs the whole subtree")
}

func TestFlattenUpToMismatch(t *testing.T) {
	registerPair(t)
	_, def := Flatten([]any{1.0, map[string]any{"a": 2.0}, nil, pair{label: "p", left: 1.0, right: 2.0}})

	tests := []struct {
		name  string
		value any
		path  string
	}{
		{"not a sequence", 1.0, "root"},
		{"sequence length", []any{1.0}, "root"},
		{"mapping keys", []any{1.0, map[string]any{"b": 2.0}, nil, pair{label: "p"}}, "[1]"},
		{"not a mapping", []any{1.0, []any{}, nil, pair{label: "p"}}, "[1]"},
		{"none", []any{1.0, map[string]any{"a": 2.0}, 3.0, pair{label: "p"}}, "[2]"},
		{"node aux", []any{1.0, map[string]any{"a": 2.0}, nil, pair{label: "q"}}, "[3]"},
		{"node kind", []any{1.0, map[string]any{"a": 2.0}, nil, 4.0}, "[3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FlattenUpTo(def, tt.value)
			require.Error(t, err)
			assert.True(t, ir.IsStructureMismatch(err))
			assert.Contains(t, err.Error(), "at "+tt.path)
		})
	}
}

func TestPaths(t *testing.T) {
	registerPair(t)

	_, def := Flatten([]any{1.0, map[string]any{"w": 2.0, "b": nil}, pair{left: 3.0, right: 4.0}})
	assert.Equal(t, []string{"[0]", "[1]['w']", "[2][0]", "[2][1]"}, Paths(def))

	_, leaf := Flatten(1.0)
	assert.Equal(t, []string{""}, Paths(leaf))
}

func TestMap(t *testing.T) {
	out, err := Map(map[string]any{"a": 1.0, "b": []any{2.0, nil}}, func(leaf any) (any, error) {
		return leaf.(float64) * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 10.0, "b": []any{20.0, nil}}, out)

	_, err = Map([]any{1.0, "x"}, func(leaf any) (any, error) {
		if _, ok := leaf.(float64); !ok {
			return nil, fmt.Errorf("not a number: %v", leaf)
		}
		return leaf, nil
	})
	assert.Error(t, err)
}
