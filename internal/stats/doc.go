// Package stats maintains the durable ledger of per-pattern remediation
// outcomes that the coordinator learns from.
//
// The ledger is a single JSON document on disk, private to this subsystem
// but deliberately human-inspectable for operability. It holds per-pattern
// aggregates (attempts, successes, failures, running duration total), an
// overall rollup, and a bounded history of individual fix attempts.
//
// All mutation goes through a single Store instance under a mutex
// (single-writer discipline); reads observe writes immediately within the
// process. Persistence failures degrade rather than abort: a missing or
// corrupt ledger loads as an empty snapshot with a logged warning, and a
// failed save is reported without losing the in-memory state.
//
// The ShouldRetry gate is the circuit breaker for the remediation runner:
// patterns whose historical success rate has fallen below the configured
// threshold stop being attempted until a later recorded success lifts
// them back over it.
package stats
