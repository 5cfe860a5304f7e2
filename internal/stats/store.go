package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/stats"

const (
	// DefaultHistoryCap bounds the persisted attempt history. Aggregates
	// are never affected by trimming.
	DefaultHistoryCap = 200

	// DefaultRetryThreshold is the minimum historical success rate below
	// which ShouldRetry suppresses further attempts.
	DefaultRetryThreshold = 0.3
)

// ErrPersistence wraps ledger I/O failures. It is informational: the
// store keeps serving its in-memory state after reporting it.
var ErrPersistence = errors.New("stats persistence failure")

// Store owns the fix-outcome ledger. All methods are safe for concurrent
// use; mutation is serialized by an internal mutex.
type Store struct {
	path           string
	historyCap     int
	retryThreshold float64
	now            func() time.Time
	logger         *zap.Logger

	meter           metric.Meter
	fixCounter      metric.Int64Counter
	saveFailCounter metric.Int64Counter

	mu   sync.Mutex
	snap *Snapshot
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryCap overrides the bounded history length.
func WithHistoryCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithRetryThreshold overrides the ShouldRetry success-rate threshold.
func WithRetryThreshold(t float64) Option {
	return func(s *Store) { s.retryThreshold = t }
}

// WithClock overrides the time source. Tests use this for deterministic
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store backed by the ledger file at path and loads
// the existing ledger. A missing file is an empty ledger; an unreadable
// or corrupt file degrades to an empty in-memory ledger with a logged
// warning, never an error to the caller.
func NewStore(path string, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:           path,
		historyCap:     DefaultHistoryCap,
		retryThreshold: DefaultRetryThreshold,
		now:            time.Now,
		logger:         logger,
		meter:          otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initMetrics()
	s.snap = s.load()
	return s
}

func (s *Store) initMetrics() {
	var err error

	s.fixCounter, err = s.meter.Int64Counter(
		"remedyd.stats.fixes_recorded_total",
		metric.WithDescription("Total number of fix attempts recorded"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		s.logger.Warn("failed to create fix counter", zap.Error(err))
	}

	s.saveFailCounter, err = s.meter.Int64Counter(
		"remedyd.stats.save_failures_total",
		metric.WithDescription("Total number of failed ledger saves"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		s.logger.Warn("failed to create save failure counter", zap.Error(err))
	}
}

// load reads the ledger from disk, degrading to an empty snapshot.
func (s *Store) load() *Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("stats ledger unreadable, starting empty",
				zap.String("path", s.path),
				zap.Error(err))
		}
		return NewSnapshot()
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		s.logger.Warn("stats ledger corrupt, starting empty",
			zap.String("path", s.path),
			zap.Error(err))
		return NewSnapshot()
	}
	if snap.Patterns == nil {
		snap.Patterns = make(map[string]*PatternStats)
	}
	return snap
}

// Snapshot returns a deep copy of the current ledger state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Save atomically replaces the persisted ledger with the current state
// using write-to-temp-then-rename, so a crash mid-write never corrupts
// existing data. Failures are wrapped in ErrPersistence; callers log and
// continue, they never abort a cycle over a lost save.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling ledger: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.countSaveFailure(ctx)
		return fmt.Errorf("%w: creating ledger directory: %v", ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		s.countSaveFailure(ctx)
		return fmt.Errorf("%w: creating temp file: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		s.countSaveFailure(ctx)
		return fmt.Errorf("%w: writing ledger: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		s.countSaveFailure(ctx)
		return fmt.Errorf("%w: closing temp file: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		s.countSaveFailure(ctx)
		return fmt.Errorf("%w: replacing ledger: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Store) countSaveFailure(ctx context.Context) {
	if s.saveFailCounter != nil {
		s.saveFailCounter.Add(ctx, 1)
	}
}

// RecordFix records one remediation outcome: it creates the pattern
// aggregate on first sight, updates it incrementally, and appends a
// FixAttempt to the bounded history.
func (s *Store) RecordFix(ctx context.Context, pattern string, success bool, duration time.Duration, note string) FixAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	ps, ok := s.snap.Patterns[pattern]
	if !ok {
		ps = &PatternStats{FirstSeen: now}
		s.snap.Patterns[pattern] = ps
	}

	ps.Attempts++
	if success {
		ps.Successes++
	} else {
		ps.Failures++
	}
	ps.TotalDurationMs += duration.Milliseconds()
	last := now
	ps.LastAttempt = &last

	s.snap.Overall.TotalAttempts++
	if success {
		s.snap.Overall.TotalSuccesses++
	} else {
		s.snap.Overall.TotalFailures++
	}
	s.snap.Overall.LastUpdated = now

	attempt := FixAttempt{
		Pattern:    pattern,
		Success:    success,
		DurationMs: duration.Milliseconds(),
		Timestamp:  now,
		Note:       note,
	}
	s.snap.History = append(s.snap.History, attempt)
	if len(s.snap.History) > s.historyCap {
		// Drop oldest first; aggregates are unaffected.
		s.snap.History = s.snap.History[len(s.snap.History)-s.historyCap:]
	}

	if s.fixCounter != nil {
		s.fixCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pattern", pattern),
			attribute.Bool("success", success),
		))
	}
	return attempt
}

// SuccessRate returns the historical success rate for pattern, 0.0 when
// the pattern has never been attempted.
func (s *Store) SuccessRate(pattern string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.snap.Patterns[pattern]
	if !ok {
		return 0
	}
	return ps.SuccessRate()
}

// ShouldRetry is the circuit breaker: an unattempted pattern is always
// worth one try; otherwise the historical success rate must meet the
// configured threshold.
func (s *Store) ShouldRetry(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.snap.Patterns[pattern]
	if !ok || ps.Attempts == 0 {
		return true
	}
	return ps.SuccessRate() >= s.retryThreshold
}

// RetryThreshold returns the configured circuit-breaker threshold.
func (s *Store) RetryThreshold() float64 {
	return s.retryThreshold
}

// TopPatterns returns up to n patterns sorted by success rate descending,
// ties broken by attempts descending (more data ranks first), then by
// pattern name for determinism.
func (s *Store) TopPatterns(n int) []PatternRank {
	return s.sortedPatterns(n, func(a, b PatternRank) bool {
		ra, rb := a.Stats.SuccessRate(), b.Stats.SuccessRate()
		if ra != rb {
			return ra > rb
		}
		if a.Stats.Attempts != b.Stats.Attempts {
			return a.Stats.Attempts > b.Stats.Attempts
		}
		return a.Pattern < b.Pattern
	})
}

// WorstPatterns returns up to n patterns sorted by success rate
// ascending, ties broken by attempts descending.
func (s *Store) WorstPatterns(n int) []PatternRank {
	return s.sortedPatterns(n, func(a, b PatternRank) bool {
		ra, rb := a.Stats.SuccessRate(), b.Stats.SuccessRate()
		if ra != rb {
			return ra < rb
		}
		if a.Stats.Attempts != b.Stats.Attempts {
			return a.Stats.Attempts > b.Stats.Attempts
		}
		return a.Pattern < b.Pattern
	})
}

func (s *Store) sortedPatterns(n int, less func(a, b PatternRank) bool) []PatternRank {
	s.mu.Lock()
	ranks := make([]PatternRank, 0, len(s.snap.Patterns))
	for pattern, ps := range s.snap.Patterns {
		ranks = append(ranks, PatternRank{Pattern: pattern, Stats: *ps})
	}
	s.mu.Unlock()

	sort.Slice(ranks, func(i, j int) bool { return less(ranks[i], ranks[j]) })
	if n > 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

// History returns the most recent n fix attempts, newest last. n <= 0
// returns the full bounded history.
func (s *Store) History(n int) []FixAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.snap.History
	if n > 0 && len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	out := make([]FixAttempt, len(hist))
	copy(out, hist)
	return out
}

// Clear resets the ledger to empty in memory and on disk. This is the
// explicit reset operation; nothing else ever deletes pattern stats.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = NewSnapshot()
	return s.saveLocked(ctx)
}
