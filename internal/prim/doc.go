// Package prim holds the primitive registry.
//
// Primitives carry no behavior. A Registry maps (interpreter kind, primitive)
// pairs to handlers supplied by the engine or by extensions, and checks at
// Seal time that every declared coverage obligation is met. A sealed
// registry is immutable and may be shared by any number of goroutines.
package prim
