package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

// newTestGitHub wires a GitHub tracker to an httptest server with fast
// retries so failure tests finish quickly.
func newTestGitHub(t *testing.T, handler http.Handler) *GitHub {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	g := NewGitHubWithClient(client, "fyrsmithlabs", "remedyd", nil)
	g.retry = fastRetryConfig()
	return g
}

func TestNewGitHubRequiresToken(t *testing.T) {
	_, err := NewGitHub(context.Background(), config.Secret(""), "owner", "repo", nil)
	require.Error(t, err)

	_, err = NewGitHub(context.Background(), config.Secret("tok"), "", "repo", nil)
	require.Error(t, err)

	g, err := NewGitHub(context.Background(), config.Secret("tok"), "owner", "repo", nil)
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestFindOpenMatchesExactTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		assert.Equal(t, DefaultLabel, r.URL.Query().Get("labels"))

		fmt.Fprint(w, `[
			{"number": 10, "title": "CI auto-remediation status (old)", "state": "open"},
			{"number": 11, "title": "CI auto-remediation status", "state": "open",
			 "html_url": "https://github.com/fyrsmithlabs/remedyd/issues/11"}
		]`)
	})

	g := newTestGitHub(t, mux)
	ticket, err := g.FindOpen(context.Background(), "CI auto-remediation status")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, 11, ticket.ID)
	assert.Equal(t, "https://github.com/fyrsmithlabs/remedyd/issues/11", ticket.URL)
	assert.Equal(t, StateOpen, ticket.State)
}

func TestFindOpenNoMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 10, "title": "something else", "state": "open"}]`)
	})

	g := newTestGitHub(t, mux)
	ticket, err := g.FindOpen(context.Background(), "CI auto-remediation status")
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestFindOpenPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number": 20, "title": "CI auto-remediation status", "state": "open"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<https://%s%s?page=2>; rel="next"`, r.Host, r.URL.Path))
		fmt.Fprint(w, `[{"number": 10, "title": "unrelated", "state": "open"}]`)
	})

	g := newTestGitHub(t, mux)
	ticket, err := g.FindOpen(context.Background(), "CI auto-remediation status")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, 20, ticket.ID)
}

func TestFindOpenServerErrorWrapsErrTracker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	g := newTestGitHub(t, mux)
	_, err := g.FindOpen(context.Background(), "CI auto-remediation status")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTracker)
}

func TestCreateAppliesDefaultLabel(t *testing.T) {
	var got github.IssueRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 33, "title": "CI auto-remediation status", "state": "open"}`)
	})

	g := newTestGitHub(t, mux)
	ticket, err := g.Create(context.Background(), "CI auto-remediation status", "body text", nil)
	require.NoError(t, err)
	assert.Equal(t, 33, ticket.ID)

	require.NotNil(t, got.Labels)
	assert.Equal(t, []string{DefaultLabel}, *got.Labels)
	assert.Equal(t, "body text", got.GetBody())
}

func TestCreateAddsDefaultLabelToExplicitLabels(t *testing.T) {
	var got github.IssueRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 34, "state": "open"}`)
	})

	g := newTestGitHub(t, mux)
	_, err := g.Create(context.Background(), "t", "b", []string{"ci", "automation"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci", "automation", DefaultLabel}, *got.Labels)

	_, err = g.Create(context.Background(), "t", "b", []string{"ci", DefaultLabel})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci", DefaultLabel}, *got.Labels)
}

// Tickets created with configured labels must stay findable on a later
// run, otherwise every restart would open a duplicate.
func TestCreateWithCustomLabelsThenFindOpen(t *testing.T) {
	var createdLabels []string

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req github.IssueRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.Labels)
			createdLabels = *req.Labels
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"number": 5, "title": "CI auto-remediation status", "state": "open"}`)
		case http.MethodGet:
			// Filter the stored ticket by label the way GitHub does.
			want := r.URL.Query().Get("labels")
			for _, l := range createdLabels {
				if l == want {
					fmt.Fprint(w, `[{"number": 5, "title": "CI auto-remediation status", "state": "open"}]`)
					return
				}
			}
			fmt.Fprint(w, `[]`)
		}
	})

	g := newTestGitHub(t, mux)
	_, err := g.Create(context.Background(), "CI auto-remediation status", "body", []string{"ci", "automation"})
	require.NoError(t, err)

	ticket, err := g.FindOpen(context.Background(), "CI auto-remediation status")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, 5, ticket.ID)
}

func TestUpdateSetsBodyAndState(t *testing.T) {
	var got github.IssueRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues/11", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"number": 11, "state": "closed"}`)
	})

	g := newTestGitHub(t, mux)
	err := g.Update(context.Background(), 11, "final summary", StateClosed)
	require.NoError(t, err)

	assert.Equal(t, "final summary", got.GetBody())
	assert.Equal(t, StateClosed, got.GetState())
}

func TestUpdateOmitsStateWhenEmpty(t *testing.T) {
	var got github.IssueRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues/11", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"number": 11, "state": "open"}`)
	})

	g := newTestGitHub(t, mux)
	require.NoError(t, g.Update(context.Background(), 11, "body", ""))
	assert.Nil(t, got.State)
}

func TestUpdateNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/fyrsmithlabs/remedyd/issues/99", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	g := newTestGitHub(t, mux)
	err := g.Update(context.Background(), 99, "body", StateOpen)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTracker)
}

func TestNoopTracker(t *testing.T) {
	var n Noop

	ticket, err := n.FindOpen(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, ticket)

	created, err := n.Create(context.Background(), "title", "body", nil)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "title", created.Title)

	assert.NoError(t, n.Update(context.Background(), 1, "body", StateClosed))
}
