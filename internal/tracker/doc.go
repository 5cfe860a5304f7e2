// Package tracker surfaces remediation cycle results to a human operator
// through an external issue tracker.
//
// The coordinator is idempotent against this interface: it always
// searches for an open ticket before creating one, updates the same
// ticket across cycles, and closes it on the all-clear cycle. Tracker
// calls are best-effort: failures are logged and remediation work is
// never rolled back because reporting failed.
//
// The GitHub implementation talks to the Issues API via go-github with
// exponential-backoff retry on rate limits and server errors. Noop is
// for tracker-less runs and tests.
package tracker
