package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/store"
)

func TestReplay(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "graphs.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	_, err = Run(ctx, loadTestScenario(t, "foo"), WithStore(st))
	require.NoError(t, err)

	result, err := Replay(ctx, st)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	_, err = st.DB().Exec(`UPDATE evaluations SET outputs = '["11.0"]' WHERE outputs = '["10.0"]'`)
	require.NoError(t, err)

	result, err = Replay(ctx, st)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected [11], got [10]")
}
