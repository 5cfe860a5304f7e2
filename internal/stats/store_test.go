package stats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	return NewStore(path, zap.NewNop(), opts...)
}

func TestRecordFixAggregates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Three successes then one failure.
	s.RecordFix(ctx, "p", true, 100*time.Millisecond, "fixed")
	s.RecordFix(ctx, "p", true, 100*time.Millisecond, "fixed")
	s.RecordFix(ctx, "p", true, 100*time.Millisecond, "fixed")
	s.RecordFix(ctx, "p", false, 50*time.Millisecond, "retry failed")

	assert.InDelta(t, 0.75, s.SuccessRate("p"), 1e-9)

	snap := s.Snapshot()
	ps := snap.Patterns["p"]
	require.NotNil(t, ps)
	assert.Equal(t, 4, ps.Attempts)
	assert.Equal(t, 3, ps.Successes)
	assert.Equal(t, 1, ps.Failures)
	assert.Equal(t, int64(350), ps.TotalDurationMs)
	assert.NotNil(t, ps.LastAttempt)
	assert.Equal(t, 4, snap.Overall.TotalAttempts)
	assert.Equal(t, 3, snap.Overall.TotalSuccesses)
	assert.Equal(t, 1, snap.Overall.TotalFailures)
}

func TestAggregateInvariantHolds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	outcomes := []bool{true, false, false, true, false, true, true, false, false, true}
	for i, ok := range outcomes {
		s.RecordFix(ctx, "p", ok, time.Duration(i)*time.Millisecond, "")
		ps := s.Snapshot().Patterns["p"]
		assert.Equal(t, ps.Attempts, ps.Successes+ps.Failures,
			"attempts must equal successes+failures after every record")
	}
}

func TestSuccessRateUnseenPattern(t *testing.T) {
	s := newTestStore(t)
	assert.Zero(t, s.SuccessRate("never-seen"))
}

func TestShouldRetryCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Unseen pattern: always worth one try.
	assert.True(t, s.ShouldRetry("p"))

	// 1 success out of 10 attempts: rate 0.1, below the 0.3 default.
	s.RecordFix(ctx, "p", true, time.Millisecond, "")
	for i := 0; i < 9; i++ {
		s.RecordFix(ctx, "p", false, time.Millisecond, "")
	}
	assert.False(t, s.ShouldRetry("p"))

	// Successes lift the rate back over the threshold: 4/13 ≈ 0.31.
	s.RecordFix(ctx, "p", true, time.Millisecond, "")
	s.RecordFix(ctx, "p", true, time.Millisecond, "")
	s.RecordFix(ctx, "p", true, time.Millisecond, "")
	assert.True(t, s.ShouldRetry("p"))
}

func TestShouldRetryCustomThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithRetryThreshold(0.5))

	s.RecordFix(ctx, "p", true, time.Millisecond, "")
	s.RecordFix(ctx, "p", false, time.Millisecond, "")
	assert.True(t, s.ShouldRetry("p")) // exactly at threshold

	s.RecordFix(ctx, "p", false, time.Millisecond, "")
	assert.False(t, s.ShouldRetry("p"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")

	s := NewStore(path, zap.NewNop())
	s.RecordFix(ctx, "build-x", true, 120*time.Millisecond, "reinstalled deps")
	s.RecordFix(ctx, "doc-y", false, 30*time.Millisecond, "no remediator registered")
	require.NoError(t, s.Save(ctx))
	before := s.Snapshot()

	// A fresh store over the same file sees the identical snapshot, and
	// saving it back is a no-op for the observable state.
	reloaded := NewStore(path, zap.NewNop())
	assert.Equal(t, before, reloaded.Snapshot())
	require.NoError(t, reloaded.Save(ctx))

	again := NewStore(path, zap.NewNop())
	assert.Equal(t, before, again.Snapshot())
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent", "ledger.json"), zap.NewNop())
	snap := s.Snapshot()
	assert.Empty(t, snap.Patterns)
	assert.Empty(t, snap.History)
	assert.Zero(t, snap.Overall.TotalAttempts)
}

func TestLoadCorruptFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	s := NewStore(path, zap.NewNop())
	assert.Empty(t, s.Snapshot().Patterns)

	// The store is still writable afterwards.
	s.RecordFix(context.Background(), "p", true, time.Millisecond, "")
	require.NoError(t, s.Save(context.Background()))
}

func TestHistoryBounded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithHistoryCap(5))

	for i := 0; i < 8; i++ {
		s.RecordFix(ctx, "p", true, time.Millisecond, "")
	}

	hist := s.History(0)
	assert.Len(t, hist, 5)

	// Trimming never touches aggregates.
	assert.Equal(t, 8, s.Snapshot().Patterns["p"].Attempts)
	assert.Equal(t, 8, s.Snapshot().Overall.TotalAttempts)
}

func TestHistoryNewestLast(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordFix(ctx, "a", true, time.Millisecond, "")
	s.RecordFix(ctx, "b", true, time.Millisecond, "")
	s.RecordFix(ctx, "c", true, time.Millisecond, "")

	hist := s.History(2)
	require.Len(t, hist, 2)
	assert.Equal(t, "b", hist[0].Pattern)
	assert.Equal(t, "c", hist[1].Pattern)
}

func TestTopAndWorstPatterns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// easy: 3/3, flaky: 1/2, hopeless: 0/4, fresh: 1/1
	for i := 0; i < 3; i++ {
		s.RecordFix(ctx, "easy", true, time.Millisecond, "")
	}
	s.RecordFix(ctx, "flaky", true, time.Millisecond, "")
	s.RecordFix(ctx, "flaky", false, time.Millisecond, "")
	for i := 0; i < 4; i++ {
		s.RecordFix(ctx, "hopeless", false, time.Millisecond, "")
	}
	s.RecordFix(ctx, "fresh", true, time.Millisecond, "")

	top := s.TopPatterns(2)
	require.Len(t, top, 2)
	// easy and fresh are both at 1.0; easy has more attempts so it wins.
	assert.Equal(t, "easy", top[0].Pattern)
	assert.Equal(t, "fresh", top[1].Pattern)

	worst := s.WorstPatterns(2)
	require.Len(t, worst, 2)
	assert.Equal(t, "hopeless", worst[0].Pattern)
	assert.Equal(t, "flaky", worst[1].Pattern)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	s := NewStore(path, zap.NewNop())

	s.RecordFix(ctx, "p", true, time.Millisecond, "")
	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Snapshot().Patterns)

	reloaded := NewStore(path, zap.NewNop())
	assert.Empty(t, reloaded.Snapshot().Patterns)
}

func TestLedgerIsHumanInspectable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	s := NewStore(path, zap.NewNop())
	s.RecordFix(ctx, "build-x", true, 100*time.Millisecond, "widened timeout")
	require.NoError(t, s.Save(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "patterns")
	assert.Contains(t, doc, "overall")
	assert.Contains(t, doc, "history")
}

func TestSaveFailureDoesNotLoseState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// Point the ledger at a path whose parent is a file, so MkdirAll fails.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewStore(filepath.Join(blocker, "ledger.json"), zap.NewNop())
	s.RecordFix(ctx, "p", true, time.Millisecond, "")

	err := s.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	// In-memory state survives the failed save.
	assert.Equal(t, 1, s.Snapshot().Patterns["p"].Attempts)
}
