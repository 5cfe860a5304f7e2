package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/cifail"
	"github.com/fyrsmithlabs/remedyd/internal/priority"
	"github.com/fyrsmithlabs/remedyd/internal/remedy"
	"github.com/fyrsmithlabs/remedyd/internal/stats"
	"github.com/fyrsmithlabs/remedyd/internal/tracker"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/coordinator"

// State is the coordinator's position in the control loop.
type State string

const (
	StateIdle         State = "idle"
	StateDetecting    State = "detecting"
	StatePrioritizing State = "prioritizing"
	StateRemediating  State = "remediating"
	StateReporting    State = "reporting"
	StateWaiting      State = "waiting"
	StateTerminated   State = "terminated"
)

// Final run outcomes.
const (
	OutcomeAllClear  = "all_clear"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
)

// Config holds the loop parameters.
type Config struct {
	// MaxAttempts bounds the number of cycles. At least 1.
	MaxAttempts int

	// Interval is the cooldown between cycles.
	Interval time.Duration

	// MaxFixesPerRun bounds remediation attempts within one cycle.
	MaxFixesPerRun int

	// TicketTitle is the tracking ticket title. The coordinator searches
	// for this exact title before creating, so reruns stay idempotent.
	TicketTitle string

	// TicketLabels are applied on ticket creation.
	TicketLabels []string
}

// waiter is implemented by detectors that can block until new failures
// arrive (the fsnotify-backed watch detector). When the detector
// supports it, the inter-cycle wait wakes early on a new failure drop.
type waiter interface {
	Wait(ctx context.Context, timeout time.Duration) bool
}

// Coordinator drives the remediation loop. It owns one stats store, one
// ranker, one runner, and one tracker, and runs strictly sequential
// cycles.
type Coordinator struct {
	cfg       Config
	ranker    *priority.Ranker
	runner    *remedy.Runner
	store     *stats.Store
	issues    tracker.Tracker
	reportLog *ReportLog
	logger    *zap.Logger

	now func() time.Time

	tracer       trace.Tracer
	meter        metric.Meter
	cycleCounter metric.Int64Counter

	mu        sync.Mutex
	state     State
	runID     string
	ticketID  int
	hasTicket bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator. The ranker, runner, and store are required;
// a nil tracker defaults to tracker.Noop and a nil report log disables
// report persistence.
func New(cfg Config, ranker *priority.Ranker, runner *remedy.Runner, store *stats.Store, issues tracker.Tracker, reportLog *ReportLog, logger *zap.Logger, opts ...Option) (*Coordinator, error) {
	if ranker == nil {
		return nil, fmt.Errorf("ranker is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if store == nil {
		return nil, fmt.Errorf("stats store is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1")
	}
	if cfg.MaxFixesPerRun < 1 {
		return nil, fmt.Errorf("max fixes per run must be at least 1")
	}
	if issues == nil {
		issues = tracker.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TicketTitle == "" {
		cfg.TicketTitle = "CI auto-remediation status"
	}

	c := &Coordinator{
		cfg:       cfg,
		ranker:    ranker,
		runner:    runner,
		store:     store,
		issues:    issues,
		reportLog: reportLog,
		logger:    logger,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.cycleCounter, err = c.meter.Int64Counter(
		"remedyd.coordinator.cycles_total",
		metric.WithDescription("Total number of remediation cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		c.logger.Warn("failed to create cycle counter", zap.Error(err))
	}

	return c, nil
}

// State returns the coordinator's current loop state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RunOnce executes a single cycle against a fixed set of records and
// returns its report. The loop machinery (waiting, attempt budget) is
// not involved.
func (c *Coordinator) RunOnce(ctx context.Context, records []cifail.Record) (*CycleReport, error) {
	c.beginRun()
	report := c.cycle(ctx, 1, records, nil)
	c.finishTicket(ctx, report)
	c.setState(StateTerminated)
	return report, nil
}

// Run executes the bounded remediation loop: detect, prioritize,
// remediate, report, then wait and repeat until a cycle detects zero
// failures or the attempt budget is exhausted. It returns every cycle
// report plus the final summary, in order.
//
// A nil detector is a programmer error and the one startup condition
// that aborts instead of degrading.
func (c *Coordinator) Run(ctx context.Context, detector cifail.Detector) ([]CycleReport, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}

	c.beginRun()
	var reports []CycleReport
	outcome := OutcomeExhausted

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.setState(StateDetecting)
		records, err := detector.Detect(ctx)
		if err != nil {
			// A failing detector means zero failures this cycle, never a crash.
			c.logger.Warn("detector failed, treating as zero errors",
				zap.Int("attempt", attempt),
				zap.Error(err))
			records = nil
		}

		var nextRun *time.Time
		willContinue := len(records) > 0 && attempt < c.cfg.MaxAttempts
		if willContinue {
			t := c.now().Add(c.cfg.Interval)
			nextRun = &t
		}

		report := c.cycle(ctx, attempt, records, nextRun)
		reports = append(reports, *report)

		if report.ErrorsDetected == 0 {
			outcome = OutcomeAllClear
			break
		}
		if attempt == c.cfg.MaxAttempts {
			outcome = OutcomeExhausted
			break
		}

		c.setState(StateWaiting)
		if !c.wait(ctx, detector) {
			outcome = OutcomeCancelled
			break
		}
	}

	final := c.finalSummary(reports, outcome)
	c.appendReport(final)
	c.finishTicket(ctx, final)
	reports = append(reports, *final)
	c.setState(StateTerminated)

	c.logger.Info("remediation run finished",
		zap.String("run_id", c.runID),
		zap.String("outcome", outcome),
		zap.Int("cycles", len(reports)-1))

	return reports, nil
}

func (c *Coordinator) beginRun() {
	c.mu.Lock()
	c.runID = uuid.NewString()
	c.ticketID = 0
	c.hasTicket = false
	c.mu.Unlock()
}

// cycle runs detect-already-done → prioritize → remediate → persist →
// report for one attempt and returns the cycle report.
func (c *Coordinator) cycle(ctx context.Context, attempt int, records []cifail.Record, nextRun *time.Time) *CycleReport {
	ctx, span := c.tracer.Start(ctx, "coordinator.cycle",
		trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.Int("errors.detected", len(records)),
		))
	defer span.End()

	start := c.now()

	// Per-record validation failures drop the record, not the cycle.
	valid := records[:0:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			c.logger.Warn("dropping invalid failure record",
				zap.String("pattern", rec.Pattern),
				zap.Error(err))
			continue
		}
		valid = append(valid, rec)
	}

	// nextRun was tentatively computed from the raw record count. A
	// zero-error cycle terminates the run, so when validation drops
	// every record no next cycle is due.
	if len(valid) == 0 {
		nextRun = nil
	}

	c.setState(StatePrioritizing)
	entries, err := c.ranker.Rank(valid, c.store.Snapshot())
	if err != nil {
		// Records were pre-validated; a ranking failure here means a bug,
		// but the cycle still degrades rather than dying.
		c.logger.Error("ranking failed", zap.Error(err))
		span.SetStatus(codes.Error, "ranking failed")
		entries = nil
	}

	var result remedy.Result
	if len(entries) > 0 {
		c.setState(StateRemediating)
		result = c.runner.Apply(ctx, entries, c.cfg.MaxFixesPerRun)
	}

	// The ledger is saved every cycle regardless of outcome count; a
	// failed save loses stats, not the cycle.
	if err := c.store.Save(ctx); err != nil {
		c.logger.Warn("stats save failed, continuing with in-memory state", zap.Error(err))
	}

	c.setState(StateReporting)
	report := &CycleReport{
		RunID:          c.runID,
		Timestamp:      start,
		AttemptNumber:  attempt,
		ErrorsDetected: len(valid),
		ErrorsFixed:    result.Fixed(),
		ErrorsFailed:   result.Failed(),
		DurationMs:     c.now().Sub(start).Milliseconds(),
		NextRunAt:      nextRun,
		Suppressed:     result.Suppressed,
	}
	if n := len(result.Attempts); n > 0 {
		report.SuccessRate = float64(result.Fixed()) / float64(n)
	}
	for _, e := range entries {
		switch e.Tier {
		case priority.TierCritical:
			report.PriorityBreakdown.Critical++
		case priority.TierHigh:
			report.PriorityBreakdown.High++
		case priority.TierMedium:
			report.PriorityBreakdown.Medium++
		case priority.TierLow:
			report.PriorityBreakdown.Low++
		}
	}

	c.appendReport(report)
	c.upsertTicket(ctx, report)

	if c.cycleCounter != nil {
		c.cycleCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Int("errors.detected", report.ErrorsDetected),
			attribute.Int("errors.fixed", report.ErrorsFixed),
		))
	}

	c.logger.Info("cycle complete",
		zap.String("run_id", c.runID),
		zap.Int("attempt", attempt),
		zap.Int("detected", report.ErrorsDetected),
		zap.Int("fixed", report.ErrorsFixed),
		zap.Int("failed", report.ErrorsFailed),
		zap.Strings("suppressed", report.Suppressed),
		zap.Int64("duration_ms", report.DurationMs))

	return report
}

// wait blocks for the configured interval. It returns false when the
// context was cancelled. Watch-capable detectors cut the wait short when
// a new failure drop arrives.
func (c *Coordinator) wait(ctx context.Context, detector cifail.Detector) bool {
	if w, ok := detector.(waiter); ok {
		w.Wait(ctx, c.cfg.Interval)
		return ctx.Err() == nil
	}

	timer := time.NewTimer(c.cfg.Interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) finalSummary(reports []CycleReport, outcome string) *CycleReport {
	final := &CycleReport{
		RunID:     c.runID,
		Timestamp: c.now(),
		Final:     true,
		Outcome:   outcome,
	}
	for _, r := range reports {
		final.AttemptNumber = r.AttemptNumber
		final.ErrorsDetected = r.ErrorsDetected // last cycle's view
		final.ErrorsFixed += r.ErrorsFixed
		final.ErrorsFailed += r.ErrorsFailed
		final.PriorityBreakdown.Critical += r.PriorityBreakdown.Critical
		final.PriorityBreakdown.High += r.PriorityBreakdown.High
		final.PriorityBreakdown.Medium += r.PriorityBreakdown.Medium
		final.PriorityBreakdown.Low += r.PriorityBreakdown.Low
		final.Suppressed = mergeSuppressed(final.Suppressed, r.Suppressed)
	}
	if attempts := final.ErrorsFixed + final.ErrorsFailed; attempts > 0 {
		final.SuccessRate = float64(final.ErrorsFixed) / float64(attempts)
	}
	return final
}

func mergeSuppressed(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, p := range have {
		seen[p] = true
	}
	for _, p := range add {
		if !seen[p] {
			have = append(have, p)
			seen[p] = true
		}
	}
	return have
}

func (c *Coordinator) appendReport(report *CycleReport) {
	if c.reportLog == nil {
		return
	}
	if err := c.reportLog.Append(report); err != nil {
		c.logger.Warn("report log append failed", zap.Error(err))
	}
}

// upsertTicket creates or updates the tracking ticket for a per-cycle
// report. Search-before-create keeps reruns idempotent: a crashed and
// restarted coordinator finds its predecessor's ticket.
func (c *Coordinator) upsertTicket(ctx context.Context, report *CycleReport) {
	c.mu.Lock()
	hasTicket := c.hasTicket
	ticketID := c.ticketID
	c.mu.Unlock()

	if !hasTicket {
		existing, err := c.issues.FindOpen(ctx, c.cfg.TicketTitle)
		if err != nil {
			c.logger.Warn("ticket lookup failed, skipping ticket update", zap.Error(err))
			return
		}
		if existing != nil {
			ticketID = existing.ID
			c.setTicket(ticketID)
			hasTicket = true
		}
	}

	if !hasTicket {
		created, err := c.issues.Create(ctx, c.cfg.TicketTitle, report.MarkdownBody(), c.cfg.TicketLabels)
		if err != nil {
			c.logger.Warn("ticket creation failed, remediation work unaffected", zap.Error(err))
			return
		}
		c.setTicket(created.ID)
		return
	}

	if err := c.issues.Update(ctx, ticketID, report.MarkdownBody(), tracker.StateOpen); err != nil {
		c.logger.Warn("ticket update failed, remediation work unaffected", zap.Error(err))
	}
}

// finishTicket posts the final summary, closing the ticket on all-clear.
func (c *Coordinator) finishTicket(ctx context.Context, final *CycleReport) {
	c.mu.Lock()
	hasTicket := c.hasTicket
	ticketID := c.ticketID
	c.mu.Unlock()

	if !hasTicket {
		existing, err := c.issues.FindOpen(ctx, c.cfg.TicketTitle)
		if err != nil || existing == nil {
			return
		}
		ticketID = existing.ID
		c.setTicket(ticketID)
	}

	state := tracker.StateOpen
	if final.Outcome == OutcomeAllClear || final.ErrorsDetected == 0 {
		state = tracker.StateClosed
	}
	if err := c.issues.Update(ctx, ticketID, final.MarkdownBody(), state); err != nil {
		c.logger.Warn("final ticket update failed", zap.Error(err))
	}
}

func (c *Coordinator) setTicket(id int) {
	c.mu.Lock()
	c.ticketID = id
	c.hasTicket = true
	c.mu.Unlock()
}
