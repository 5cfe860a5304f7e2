package stats

import "time"

// PatternStats is the per-pattern aggregate, the durable learning unit.
// Invariant: Attempts == Successes + Failures after every recorded fix.
type PatternStats struct {
	Attempts        int        `json:"attempts"`
	Successes       int        `json:"successes"`
	Failures        int        `json:"failures"`
	TotalDurationMs int64      `json:"total_duration_ms"`
	LastAttempt     *time.Time `json:"last_attempt,omitempty"`
	FirstSeen       time.Time  `json:"first_seen"`
}

// SuccessRate returns successes/attempts, 0 when the pattern has never
// been attempted. Callers that need "unknown" semantics (the prioritizer)
// must check Attempts themselves.
func (p *PatternStats) SuccessRate() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Attempts)
}

// AvgDurationMs returns the running average attempt duration.
func (p *PatternStats) AvgDurationMs() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.TotalDurationMs) / float64(p.Attempts)
}

// FixAttempt is one remediation outcome, the unit appended to history.
type FixAttempt struct {
	Pattern    string    `json:"pattern"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
	Note       string    `json:"note,omitempty"`
}

// Overall is the ledger-wide rollup.
type Overall struct {
	TotalAttempts  int       `json:"total_attempts"`
	TotalSuccesses int       `json:"total_successes"`
	TotalFailures  int       `json:"total_failures"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Snapshot is the full persisted ledger. The on-disk format is this
// struct marshaled as indented JSON.
type Snapshot struct {
	Patterns map[string]*PatternStats `json:"patterns"`
	Overall  Overall                  `json:"overall"`
	History  []FixAttempt             `json:"history"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Patterns: make(map[string]*PatternStats)}
}

// Clone returns a deep copy. The store hands clones to readers so the
// prioritizer can score against a stable view without holding the lock.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Patterns: make(map[string]*PatternStats, len(s.Patterns)),
		Overall:  s.Overall,
	}
	for pattern, ps := range s.Patterns {
		cp := *ps
		if ps.LastAttempt != nil {
			last := *ps.LastAttempt
			cp.LastAttempt = &last
		}
		out.Patterns[pattern] = &cp
	}
	if len(s.History) > 0 {
		out.History = make([]FixAttempt, len(s.History))
		copy(out.History, s.History)
	}
	return out
}

// PatternRank is one entry of a sorted pattern view.
type PatternRank struct {
	Pattern string       `json:"pattern"`
	Stats   PatternStats `json:"stats"`
}
