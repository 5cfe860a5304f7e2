package priority

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/remedyd/internal/cifail"
	"github.com/fyrsmithlabs/remedyd/internal/stats"
)

// Tier is the severity band assigned from the final score.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Entry is one ranked failure, the ranker's ephemeral output. Entries are
// recomputed every cycle and never persisted.
type Entry struct {
	Record cifail.Record `json:"record"`
	Score  float64       `json:"score"`
	Tier   Tier          `json:"tier"`
}

// Weights holds the tunable scoring parameters.
type Weights struct {
	// Base scores per severity band of kinds.
	BasePipeline   float64 `koanf:"base_pipeline"`   // build/deploy failures
	BaseFunctional float64 `koanf:"base_functional"` // test/security/dependency
	BaseQuality    float64 `koanf:"base_quality"`    // lint/warning/performance
	BaseCosmetic   float64 `koanf:"base_cosmetic"`   // documentation/style

	// Additive adjustments.
	BlockingBonus  float64 `koanf:"blocking_bonus"`
	FrequencyBonus float64 `koanf:"frequency_bonus"`
	HistoryBonus   float64 `koanf:"history_bonus"`

	// Adjustment triggers.
	FrequencyFloor int     `koanf:"frequency_floor"` // bonus when frequencyRecent exceeds this
	HistoryFloor   float64 `koanf:"history_floor"`   // bonus when successRate exceeds this

	// Tier cutoffs on the final score.
	CriticalCutoff float64 `koanf:"critical_cutoff"`
	HighCutoff     float64 `koanf:"high_cutoff"`
	MediumCutoff   float64 `koanf:"medium_cutoff"`
}

// DefaultWeights returns the standard scoring parameters.
func DefaultWeights() Weights {
	return Weights{
		BasePipeline:   100,
		BaseFunctional: 80,
		BaseQuality:    60,
		BaseCosmetic:   30,
		BlockingBonus:  50,
		FrequencyBonus: 15,
		HistoryBonus:   10,
		FrequencyFloor: 5,
		HistoryFloor:   0.7,
		CriticalCutoff: 100,
		HighCutoff:     75,
		MediumCutoff:   50,
	}
}

// Validate checks that the weights preserve the ranking guarantees:
// strictly descending base bands and strictly descending tier cutoffs.
func (w Weights) Validate() error {
	if !(w.BasePipeline > w.BaseFunctional && w.BaseFunctional > w.BaseQuality && w.BaseQuality > w.BaseCosmetic) {
		return fmt.Errorf("base scores must be strictly descending: %.0f/%.0f/%.0f/%.0f",
			w.BasePipeline, w.BaseFunctional, w.BaseQuality, w.BaseCosmetic)
	}
	if !(w.CriticalCutoff > w.HighCutoff && w.HighCutoff > w.MediumCutoff && w.MediumCutoff > 0) {
		return fmt.Errorf("tier cutoffs must be strictly descending and positive: %.0f/%.0f/%.0f",
			w.CriticalCutoff, w.HighCutoff, w.MediumCutoff)
	}
	if w.BlockingBonus <= 0 || w.FrequencyBonus <= 0 || w.HistoryBonus < 0 {
		return fmt.Errorf("blocking and frequency bonuses must be positive")
	}
	return nil
}

// Ranker scores failures against a stats snapshot.
type Ranker struct {
	weights Weights
}

// NewRanker creates a ranker with the given weights.
func NewRanker(weights Weights) (*Ranker, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid priority weights: %w", err)
	}
	return &Ranker{weights: weights}, nil
}

// baseScore maps a kind to its base band. The switch is exhaustive over
// valid kinds; an unknown kind is a ValidationError surfaced by Rank.
func (r *Ranker) baseScore(k cifail.Kind) (float64, error) {
	switch k {
	case cifail.KindBuildFailure, cifail.KindDeployFailure:
		return r.weights.BasePipeline, nil
	case cifail.KindTestFailure, cifail.KindSecurityVulnerability, cifail.KindDependencyError:
		return r.weights.BaseFunctional, nil
	case cifail.KindLintError, cifail.KindWarning, cifail.KindPerformanceIssue:
		return r.weights.BaseQuality, nil
	case cifail.KindDocumentation, cifail.KindStyleIssue:
		return r.weights.BaseCosmetic, nil
	default:
		return 0, &cifail.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %d", int(k))}
	}
}

// Rank scores the records against the snapshot and returns them ordered
// for remediation: score descending, ties broken by base score
// descending, then by pattern ascending for determinism.
//
// Rank fails closed: any invalid record makes the whole call return a
// ValidationError. Callers wanting per-record tolerance validate and
// drop records before ranking.
func (r *Ranker) Rank(records []cifail.Record, snap *stats.Snapshot) ([]Entry, error) {
	if len(records) == 0 {
		return nil, nil
	}

	type scored struct {
		entry Entry
		base  float64
	}
	ranked := make([]scored, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		base, err := r.baseScore(rec.Kind)
		if err != nil {
			return nil, err
		}

		score := base
		if rec.Blocking {
			score += r.weights.BlockingBonus
		}
		if rec.FrequencyRecent > r.weights.FrequencyFloor {
			score += r.weights.FrequencyBonus
		}
		if snap != nil {
			if ps, ok := snap.Patterns[rec.Pattern]; ok && ps.Attempts > 0 && ps.SuccessRate() > r.weights.HistoryFloor {
				// Known-easy fixes are pulled forward so cheap wins land first.
				score += r.weights.HistoryBonus
			}
		}

		ranked = append(ranked, scored{
			entry: Entry{Record: rec, Score: score, Tier: r.tier(score)},
			base:  base,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].entry.Score != ranked[j].entry.Score {
			return ranked[i].entry.Score > ranked[j].entry.Score
		}
		if ranked[i].base != ranked[j].base {
			return ranked[i].base > ranked[j].base
		}
		return ranked[i].entry.Record.Pattern < ranked[j].entry.Record.Pattern
	})

	entries := make([]Entry, len(ranked))
	for i, s := range ranked {
		entries[i] = s.entry
	}
	return entries, nil
}

func (r *Ranker) tier(score float64) Tier {
	switch {
	case score >= r.weights.CriticalCutoff:
		return TierCritical
	case score >= r.weights.HighCutoff:
		return TierHigh
	case score >= r.weights.MediumCutoff:
		return TierMedium
	default:
		return TierLow
	}
}
