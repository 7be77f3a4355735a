package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TraceIDGenerator generates identifiers for differentiating and staging
// interpreters. Implemented by UUIDv7Generator (production) and
// FixedGenerator (tests).
type TraceIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 trace ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids of nested
// transformations sort by creation time in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined trace ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("jvp-1", "jvp-2")
//	gen.Generate() // "jvp-1"
//	gen.Generate() // "jvp-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, so a test that starts more
// transformations than it expects fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

type traceIDsKey struct{}

// WithTraceIDs returns a context whose transformations draw trace ids from
// gen.
func WithTraceIDs(ctx context.Context, gen TraceIDGenerator) context.Context {
	return context.WithValue(ctx, traceIDsKey{}, gen)
}

func traceIDsFrom(ctx context.Context) TraceIDGenerator {
	if gen, ok := ctx.Value(traceIDsKey{}).(TraceIDGenerator); ok {
		return gen
	}
	return UUIDv7Generator{}
}
