package tracker

import (
	"context"
	"errors"
)

// Ticket states understood by Update.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// ErrTracker wraps issue-tracker failures (auth, network, API). Callers
// log and continue; reporting is best-effort.
var ErrTracker = errors.New("issue tracker failure")

// Ticket is the coordinator's view of a tracking issue.
type Ticket struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	State string `json:"state"`
}

// Tracker is the external issue-tracker seam.
type Tracker interface {
	// FindOpen returns the open ticket with the exact title, or nil when
	// none exists.
	FindOpen(ctx context.Context, title string) (*Ticket, error)

	// Create opens a new ticket.
	Create(ctx context.Context, title, body string, labels []string) (*Ticket, error)

	// Update replaces the ticket body and sets its state (StateOpen or
	// StateClosed).
	Update(ctx context.Context, id int, body, state string) error
}

// Noop is a tracker that does nothing. FindOpen always reports no ticket.
type Noop struct{}

// FindOpen implements Tracker.
func (Noop) FindOpen(context.Context, string) (*Ticket, error) { return nil, nil }

// Create implements Tracker.
func (Noop) Create(_ context.Context, title, _ string, _ []string) (*Ticket, error) {
	return &Ticket{ID: 0, Title: title, State: StateOpen}, nil
}

// Update implements Tracker.
func (Noop) Update(context.Context, int, string, string) error { return nil }
