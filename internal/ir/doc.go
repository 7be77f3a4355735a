// Package ir provides the intermediate representation produced by staging.
//
// This package contains the graph types, the builder used by the staging
// interpreter, the textual printer and the canonical encoding. All other
// internal packages import ir; ir imports nothing internal. This keeps the IR
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Graphs are single static assignment: every variable is bound exactly
//     once, either as an input or as the result of an earlier equation.
//   - Graphs are immutable after Builder.Build and may be shared freely.
//   - Variable ids come from a per-builder monotonic counter and are never
//     reused within a graph.
//   - Abstract value metadata (Aval) is carried, never interpreted.
//   - The canonical encoding contains no floats; literals are encoded as
//     their shortest round-trip decimal text.
package ir
