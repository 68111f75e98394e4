// Package store provides a SQLite trace log for exchange runs.
//
// Every step of the item exchange (queued, forwarded, selected, released,
// fetched, completed, response_inserted, response_retrieved) becomes one
// row in trace_events, keyed by (run_id, seq). seq comes from a logical
// clock, never wall time, so two runs of the same deterministic scenario
// produce identical traces.
//
// The log is diagnostic. Nothing reads it back to resume or replay a run.
//
// # Database Configuration
//
//   - WAL mode for file databases: readers (seqx trace) during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: events must belong to a registered run
package store
