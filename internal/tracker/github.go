package tracker

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

// DefaultLabel marks tickets managed by the coordinator.
const DefaultLabel = "remedyd"

// GitHub implements Tracker on the GitHub Issues API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	retry  *RetryConfig
	logger *zap.Logger
}

// NewGitHub creates a GitHub tracker with token authentication.
func NewGitHub(ctx context.Context, token config.Secret, owner, repo string, logger *zap.Logger) (*GitHub, error) {
	if !token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("GitHub owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	tc := oauth2.NewClient(ctx, ts)
	return NewGitHubWithClient(github.NewClient(tc), owner, repo, logger), nil
}

// NewGitHubWithClient creates a GitHub tracker over an existing client.
// Tests use this to point at an httptest server.
func NewGitHubWithClient(client *github.Client, owner, repo string, logger *zap.Logger) *GitHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitHub{
		client: client,
		owner:  owner,
		repo:   repo,
		retry:  DefaultRetryConfig(),
		logger: logger,
	}
}

// FindOpen implements Tracker. It pages through open issues carrying the
// coordinator label and matches titles exactly, so a crashed-and-restarted
// run finds its own ticket instead of creating a duplicate.
func (g *GitHub) FindOpen(ctx context.Context, title string) (*Ticket, error) {
	opts := &github.IssueListByRepoOptions{
		State:       StateOpen,
		Labels:      []string{DefaultLabel},
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		var issues []*github.Issue
		resp, err := retryOperation(ctx, g.retry, g.logger, func() (*github.Response, error) {
			var opErr error
			var opResp *github.Response
			issues, opResp, opErr = g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
			return opResp, opErr
		})
		if err != nil {
			return nil, fmt.Errorf("%w: listing issues: %v", ErrTracker, err)
		}

		for _, issue := range issues {
			if issue.GetTitle() == title {
				return &Ticket{
					ID:    issue.GetNumber(),
					Title: issue.GetTitle(),
					URL:   issue.GetHTMLURL(),
					State: issue.GetState(),
				}, nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// Create implements Tracker. The coordinator label is always applied
// alongside the caller's labels; FindOpen filters by it, so a ticket
// created without it would be invisible to a restarted run.
func (g *GitHub) Create(ctx context.Context, title, body string, labels []string) (*Ticket, error) {
	labels = ensureLabel(labels, DefaultLabel)

	req := &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	}

	var issue *github.Issue
	_, err := retryOperation(ctx, g.retry, g.logger, func() (*github.Response, error) {
		var opErr error
		var opResp *github.Response
		issue, opResp, opErr = g.client.Issues.Create(ctx, g.owner, g.repo, req)
		return opResp, opErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating issue: %v", ErrTracker, err)
	}

	g.logger.Info("created tracking ticket",
		zap.Int("number", issue.GetNumber()),
		zap.String("url", issue.GetHTMLURL()))

	return &Ticket{
		ID:    issue.GetNumber(),
		Title: issue.GetTitle(),
		URL:   issue.GetHTMLURL(),
		State: issue.GetState(),
	}, nil
}

func ensureLabel(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	out := make([]string, 0, len(labels)+1)
	out = append(out, labels...)
	return append(out, label)
}

// Update implements Tracker.
func (g *GitHub) Update(ctx context.Context, id int, body, state string) error {
	req := &github.IssueRequest{
		Body: github.String(body),
	}
	if state != "" {
		req.State = github.String(state)
	}

	_, err := retryOperation(ctx, g.retry, g.logger, func() (*github.Response, error) {
		_, opResp, opErr := g.client.Issues.Edit(ctx, g.owner, g.repo, id, req)
		return opResp, opErr
	})
	if err != nil {
		return fmt.Errorf("%w: updating issue %d: %v", ErrTracker, id, err)
	}
	return nil
}
