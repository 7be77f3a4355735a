package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/store"
)

func TestStageCommandText(t *testing.T) {
	out, err := execute(t, NewStageCommand(&RootOptions{Format: "text"}), "testdata/scenarios/foo.yaml")
	require.NoError(t, err)
	assert.Equal(t, fooGraph, out)
}

func TestStageCommandJVP(t *testing.T) {
	out, err := execute(t, NewStageCommand(&RootOptions{Format: "text"}), "testdata/scenarios/foo.yaml", "--jvp")
	require.NoError(t, err)
	assert.Equal(t,
		"a ->\nb = add(a, 3.0)\nc = add(1.0, 0.0)\nd = mul(a, b)\ne = mul(a, c)\nf = mul(1.0, b)\ng = add(e, f)\nd, g\n",
		out)
}

func TestStageCommandJSON(t *testing.T) {
	out, err := execute(t, NewStageCommand(&RootOptions{Format: "json"}), "testdata/scenarios/foo.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   StageResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "foo", resp.Data.Scenario)
	assert.Equal(t, fooGraph, resp.Data.Text)
	assert.False(t, resp.Data.Inserted)

	var g ir.Graph
	require.NoError(t, json.Unmarshal(resp.Data.Graph, &g))
	assert.Equal(t, fooGraph, g.String())
	assert.Equal(t, []string{"x"}, g.Debug.ArgNames)
	assert.Equal(t, ir.MustFingerprint(&g), resp.Data.Fingerprint)
}

func TestStageCommandStoresGraph(t *testing.T) {
	db := filepath.Join(t.TempDir(), "xform.db")

	out, err := execute(t, NewStageCommand(&RootOptions{Format: "json"}), "testdata/scenarios/foo.yaml", "--db", db)
	require.NoError(t, err)
	var first struct {
		Data StageResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.True(t, first.Data.Inserted)

	out, err = execute(t, NewStageCommand(&RootOptions{Format: "json"}), "testdata/scenarios/foo.yaml", "--db", db)
	require.NoError(t, err)
	var second struct {
		Data StageResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.False(t, second.Data.Inserted)
	assert.Equal(t, first.Data.Fingerprint, second.Data.Fingerprint)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	g, err := st.GetGraph(context.Background(), first.Data.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, fooGraph, g.String())
}

func TestStageCommandUnsupportedPrimitive(t *testing.T) {
	_, err := execute(t, NewStageCommand(&RootOptions{Format: "text"}), "testdata/unsupported.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, ir.IsUnsupportedPrimitive(err))
}

func TestStageCommandUnsupportedPrimitiveJSON(t *testing.T) {
	out, err := execute(t, NewStageCommand(&RootOptions{Format: "json"}), "testdata/unsupported.yaml")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNSUPPORTED_PRIMITIVE", resp.Error.Code)
}

func TestStageCommandMissingScenario(t *testing.T) {
	_, err := execute(t, NewStageCommand(&RootOptions{Format: "text"}), "testdata/missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
