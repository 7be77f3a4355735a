// Package harness runs conformance scenarios against the transformation
// engine.
//
// # Scenario Format
//
// A scenario is a YAML file describing a straight-line program and the
// checks it must pass:
//
//	name: foo
//	description: "foo(x) = x * (x + 3)"
//	program:
//	  inputs: [x]
//	  body:
//	    - let: s
//	      op: add
//	      args: [x, 3.0]
//	    - let: y
//	      op: mul
//	      args: [x, s]
//	  outputs: y
//	checks:
//	  - kind: eval
//	    args: [2.0]
//	    want: 10.0
//	  - kind: stage
//	    golden: foo
//	    equations: 2
//
// Strings in args and outputs name inputs or earlier lets; numbers are
// constants. Outputs may be nested lists and mappings.
//
// # Check Kinds
//
//   - eval: evaluate concretely and compare with want
//   - jvp: differentiate along tangents (default all ones) and compare the
//     primal with want and the tangent with want_tangent
//   - derivatives: want[n] is the nth derivative in the first input
//   - stage: build the graph (of the program, or of its derivative with
//     jvp: true), store it, reload it and evaluate it on args
//   - roundtrip: trace, encode, decode and store the graph; every copy must
//     evaluate like the program and keep its fingerprint
//
// A check with error: CODE passes only if it fails with that error code.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store stamped by
// testutil.DeterministicClock, and trace and evaluation ids come from
// testutil.SequentialIDs, so the same scenario always produces the same
// graphs, ids and seq values.
package harness
