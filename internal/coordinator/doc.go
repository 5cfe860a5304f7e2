// Package coordinator owns the remediation control loop.
//
// One cycle is detect → prioritize → remediate (bounded) → persist stats
// → report → update ticket → wait-or-stop. Cycles are strictly
// sequential: the cooldown between them is a blocking, cancellable wait,
// never a spawn-and-forget timer, so a slow remediator can never cause
// cycle overlap.
//
// The loop is a small state machine (Idle, Detecting, Prioritizing,
// Remediating, Reporting, Waiting, Terminated) bounded by a maximum
// attempt count, so termination is guaranteed: either a cycle detects
// zero failures (the all-clear exit) or the attempt budget runs out.
// Either way a final summary report is emitted, distinct from the
// per-cycle reports, and the tracking ticket is closed on all-clear.
//
// Collaborator failures degrade instead of aborting: a failed detector
// means zero failures this cycle, a failed ledger save loses stats but
// not the cycle, and a failed ticket update never rolls back completed
// remediation work.
package coordinator
