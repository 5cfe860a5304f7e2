package cifail

import "context"

// Record is one detected failure. Records are constructed once per
// detection pass and treated as immutable for the rest of the cycle.
type Record struct {
	// Pattern is the stable identifier for the failure class, e.g. a named
	// regex match over CI logs. It is the key into the stats ledger.
	Pattern string `json:"pattern"`

	// Kind drives the base severity tier.
	Kind Kind `json:"kind"`

	// Message is the human-readable failure text.
	Message string `json:"message"`

	// Blocking reports whether this failure prevents the whole pipeline
	// from proceeding.
	Blocking bool `json:"blocking"`

	// FrequencyRecent is the number of occurrences in a recent window,
	// supplied by the detector.
	FrequencyRecent int `json:"frequency_recent"`
}

// Validate checks the record's structural invariants. An unknown kind or
// an empty pattern is a ValidationError.
func (r Record) Validate() error {
	if r.Pattern == "" {
		return &ValidationError{Field: "pattern", Reason: "must not be empty"}
	}
	if !r.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "unknown kind"}
	}
	return nil
}

// Detector produces the current set of detected failures. Implementations
// may call out to a CI provider; a detector error is treated by the
// coordinator as zero failures for that cycle, with a logged warning.
type Detector interface {
	Detect(ctx context.Context) ([]Record, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context) ([]Record, error)

// Detect implements Detector.
func (f DetectorFunc) Detect(ctx context.Context) ([]Record, error) {
	return f(ctx)
}

// StaticDetector returns the same records on every pass. Useful for
// one-shot runs and tests.
func StaticDetector(records []Record) Detector {
	return DetectorFunc(func(context.Context) ([]Record, error) {
		out := make([]Record, len(records))
		copy(out, records)
		return out, nil
	})
}
