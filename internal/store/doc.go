// Package store provides SQLite-backed durable storage for evaluation traces.
//
// The store keeps two append-only tables:
//   - runs: one record per evaluation (document hash, inputs, outputs, status)
//   - node_events: the evaluator's node lifecycle events for each run
//
// # Critical Patterns
//
// Logical time: events are ordered by seq, the evaluator clock, never by
// wall time. Run ids are UUIDv7 so ListRuns can order by id alone.
//
// Atomic runs: a run and all of its events are written in one transaction.
// Rewriting an existing run id is a no-op.
//
// Deterministic queries: every query has a total ORDER BY with BINARY
// collation on text keys.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events cannot outlive their run
//
// Inputs and outputs are stored as RFC 8785 canonical JSON and fingerprinted
// with the domain-separated hashes in internal/ir.
package store
