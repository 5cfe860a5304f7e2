package remedy

import (
	"context"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/remedyd/internal/cifail"
)

// NoRemediatorNote is the outcome note recorded for patterns without a
// registered remediator.
const NoRemediatorNote = "no remediator registered"

// Outcome is the result of one repair attempt.
type Outcome struct {
	Success bool   `json:"success"`
	Note    string `json:"note,omitempty"`
}

// Remediator attempts to fix one failure instance. Implementations are
// registered per pattern and should honor ctx cancellation; the runner
// enforces a timeout around every call regardless.
type Remediator interface {
	Fix(ctx context.Context, record cifail.Record) (Outcome, error)
}

// RemediatorFunc adapts a function to the Remediator interface.
type RemediatorFunc func(ctx context.Context, record cifail.Record) (Outcome, error)

// Fix implements Remediator.
func (f RemediatorFunc) Fix(ctx context.Context, record cifail.Record) (Outcome, error) {
	return f(ctx, record)
}

// Registry maps failure patterns to their remediators. Safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	remediators map[string]Remediator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{remediators: make(map[string]Remediator)}
}

// Register binds a remediator to a pattern, replacing any previous
// binding.
func (r *Registry) Register(pattern string, rem Remediator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remediators[pattern] = rem
}

// Lookup returns the remediator bound to pattern, or false when none is
// registered.
func (r *Registry) Lookup(pattern string) (Remediator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rem, ok := r.remediators[pattern]
	return rem, ok
}

// Patterns returns the registered patterns, sorted.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.remediators))
	for p := range r.remediators {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
