package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("t1", "t2")
	assert.Equal(t, "t1", gen.Generate())
	assert.Equal(t, "t2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestTraceIDsFlowIntoInterpreters(t *testing.T) {
	ctx := WithTraceIDs(context.Background(), NewFixedGenerator("stage-1", "jvp-1"))

	g, err := BuildGraph(ctx, jvpOfFoo, 1)
	require.NoError(t, err)
	assert.Equal(t, "stage-1", g.Debug.TraceID)

	j := newJVPInterpreter(context.Background())
	assert.Len(t, j.ID(), 36, "the default generator is UUIDv7")
}
