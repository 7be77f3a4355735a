// Package store provides SQLite-backed durable storage for staged graphs
// and the evaluations run against them.
//
// Graphs are content addressed: the key is ir.Fingerprint of the graph, so
// storing the same program twice is a no-op. Evaluations reference a graph
// by fingerprint and record flat input and output leaves.
//
// # Ordering
//
// Every row is stamped with seq from a logical Clock, never a wall-clock
// timestamp. Queries order by seq ASC, then id ASC COLLATE BINARY, so
// listings and replays are identical across runs.
//
// # Value Encoding
//
// Floats are stored as canonical JSON arrays of their shortest round-trip
// decimal text (see ir.FormatFloat), which keeps NaN and infinities intact.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Evaluations must reference a stored graph
package store
