package remedy

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/priority"
	"github.com/fyrsmithlabs/remedyd/internal/stats"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/remedy"

// DefaultFixTimeout bounds a single remediator call.
const DefaultFixTimeout = 5 * time.Second

// Result is the outcome of one runner batch.
type Result struct {
	// Attempts are the recorded fix attempts, in processing order.
	Attempts []stats.FixAttempt

	// Suppressed lists patterns skipped by the circuit breaker, so the
	// cycle report can tell an operator why they stopped being attempted.
	Suppressed []string
}

// Fixed returns the number of successful attempts.
func (r Result) Fixed() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed attempts.
func (r Result) Failed() int {
	return len(r.Attempts) - r.Fixed()
}

// Runner applies remediators to prioritized failures, bounded per cycle.
type Runner struct {
	registry   *Registry
	store      *stats.Store
	fixTimeout time.Duration
	logger     *zap.Logger

	meter          metric.Meter
	attemptCounter metric.Int64Counter
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFixTimeout overrides the per-fix timeout.
func WithFixTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.fixTimeout = d
		}
	}
}

// NewRunner creates a runner over the given registry and stats store.
func NewRunner(registry *Registry, store *stats.Store, logger *zap.Logger, opts ...RunnerOption) (*Runner, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("stats store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		registry:   registry,
		store:      store,
		fixTimeout: DefaultFixTimeout,
		logger:     logger,
		meter:      otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	r.attemptCounter, err = r.meter.Int64Counter(
		"remedyd.remedy.attempts_total",
		metric.WithDescription("Total number of remediation attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		r.logger.Warn("failed to create attempt counter", zap.Error(err))
	}

	return r, nil
}

// Apply processes at most maxPerCycle entries in the order produced by
// the prioritizer. Entries whose pattern is suppressed by the circuit
// breaker are skipped without recording anything. Every processed entry
// yields exactly one recorded FixAttempt; remediator errors, panics, and
// timeouts become failed attempts, never batch failures.
func (r *Runner) Apply(ctx context.Context, entries []priority.Entry, maxPerCycle int) Result {
	var res Result
	if maxPerCycle <= 0 {
		return res
	}

	processed := 0
	for _, entry := range entries {
		if processed >= maxPerCycle {
			break
		}
		if ctx.Err() != nil {
			r.logger.Warn("remediation batch cancelled",
				zap.Int("processed", processed),
				zap.Error(ctx.Err()))
			break
		}

		pattern := entry.Record.Pattern
		if !r.store.ShouldRetry(pattern) {
			r.logger.Info("pattern suppressed, below retry threshold",
				zap.String("pattern", pattern),
				zap.Float64("success_rate", r.store.SuccessRate(pattern)),
				zap.Float64("threshold", r.store.RetryThreshold()))
			res.Suppressed = append(res.Suppressed, pattern)
			continue
		}
		processed++

		outcome, elapsed := r.fixOne(ctx, entry)
		attempt := r.store.RecordFix(ctx, pattern, outcome.Success, elapsed, outcome.Note)
		res.Attempts = append(res.Attempts, attempt)

		if r.attemptCounter != nil {
			r.attemptCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("pattern", pattern),
				attribute.Bool("success", outcome.Success),
			))
		}

		r.logger.Info("remediation attempt",
			zap.String("pattern", pattern),
			zap.String("tier", string(entry.Tier)),
			zap.Bool("success", outcome.Success),
			zap.Duration("elapsed", elapsed),
			zap.String("note", outcome.Note))
	}
	return res
}

// fixOne invokes the remediator for one entry with timing, a timeout,
// and panic containment.
func (r *Runner) fixOne(ctx context.Context, entry priority.Entry) (outcome Outcome, elapsed time.Duration) {
	rem, ok := r.registry.Lookup(entry.Record.Pattern)
	if !ok {
		return Outcome{Success: false, Note: NoRemediatorNote}, 0
	}

	fixCtx, cancel := context.WithTimeout(ctx, r.fixTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		elapsed = time.Since(start)
		if rec := recover(); rec != nil {
			outcome = Outcome{Success: false, Note: fmt.Sprintf("remediator panicked: %v", rec)}
		}
	}()

	out, err := rem.Fix(fixCtx, entry.Record)
	if err != nil {
		return Outcome{Success: false, Note: err.Error()}, time.Since(start)
	}
	return out, time.Since(start)
}
