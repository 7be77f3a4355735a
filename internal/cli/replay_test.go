package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/store"
)

// recordFoo runs the foo scenario into a fresh database and returns its path.
func recordFoo(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "xform.db")
	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "testdata/scenarios/foo.yaml", "--db", db)
	require.NoError(t, err)
	return db
}

func TestReplayCommandRequiresDB(t *testing.T) {
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestReplayCommandMissingDatabase(t *testing.T) {
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestReplayCommandEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "xform.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No evaluations found")
}

func TestReplayCommandDeterministic(t *testing.T) {
	db := recordFoo(t)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 1 graph(s), 1 evaluation(s), 0 mismatch(es)")
	assert.Contains(t, out, "✓ All evaluations replayed identically")
}

func TestReplayCommandMismatch(t *testing.T) {
	db := recordFoo(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE evaluations SET outputs = '["11.0"]'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "expected [11], got [10]")
	assert.Contains(t, out, "1 mismatch(es)")
}

func TestReplayCommandJSON(t *testing.T) {
	db := recordFoo(t)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   store.ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Graphs)
	assert.Equal(t, 1, resp.Data.Evaluations)
	assert.Empty(t, resp.Data.Mismatches)
}

func TestReplayCommandGraphFilter(t *testing.T) {
	db := recordFoo(t)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "--graph", "0000")
	require.NoError(t, err)
	assert.Contains(t, out, "No evaluations found")
}
