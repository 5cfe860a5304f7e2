// Package remedy executes repair attempts against detected failures.
//
// Concrete repair actions are opaque to the coordinator: a Remediator is
// a single-method capability that attempts to fix one failure and reports
// success or failure with a note. Remediators are registered per pattern
// in a Registry; a pattern with no registration yields a first-class
// failed outcome rather than a lookup error.
//
// The Runner drives a bounded batch per cycle, in the order produced by
// the prioritizer. It consults the stats circuit breaker before each
// attempt, wraps every fix with timing and a per-fix timeout, and turns
// remediator errors and panics into failed attempts. A misbehaving
// remediator can cost at most one timeout, never the cycle.
package remedy
