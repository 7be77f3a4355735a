package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/engine"
	"github.com/roach88/xform/internal/ir"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// foo(x) = x * (x + 3.0)
func foo(ctx context.Context, args ...engine.Value) (engine.Value, error) {
	s, err := engine.Add(ctx, args[0], 3.0)
	if err != nil {
		return nil, err
	}
	return engine.Mul(ctx, args[0], s)
}

// stagedFoo returns the graph of foo.
func stagedFoo(t *testing.T) *ir.Graph {
	t.Helper()
	g, err := engine.BuildGraph(context.Background(), foo, 1)
	require.NoError(t, err)
	return g
}

// stagedJVP returns the graph computing [foo(x), foo'(x)].
func stagedJVP(t *testing.T) *ir.Graph {
	t.Helper()
	g, err := engine.BuildGraph(context.Background(), func(ctx context.Context, args ...engine.Value) (engine.Value, error) {
		p, tan, err := engine.Differentiate(ctx, foo, args[0], 1.0)
		if err != nil {
			return nil, err
		}
		return []any{p, tan}, nil
	}, 1)
	require.NoError(t, err)
	return g
}
