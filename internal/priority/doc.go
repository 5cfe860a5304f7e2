// Package priority scores and orders detected failures for remediation.
//
// Ranking is a pure function of the failure records and a stats snapshot:
// no side effects, deterministic for a given input pair. The score starts
// from a per-kind base (pipeline-stopping kinds outrank cosmetic ones),
// then adds bonuses for blocking failures, recently frequent patterns,
// and patterns with a strong fix history so cheap wins happen first.
// A pattern with no prior attempts gets no history bonus either way;
// unknown is neither rewarded nor punished.
//
// The weights are operational tuning values and configurable, but the
// ordering guarantees hold for any valid weight set: build and deploy
// failures always outrank style issues, and a blocking failure always
// outranks its non-blocking twin.
package priority
