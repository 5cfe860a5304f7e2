package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/remedyd/internal/stats"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	topCount        = 5
)

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// SnapshotSource yields the current ledger snapshot. The dashboard
// refreshes from it on every tick.
type SnapshotSource func() *stats.Snapshot

// Model is the BubbleTea dashboard model over the stats ledger.
type Model struct {
	source     SnapshotSource
	interval   time.Duration
	snap       *stats.Snapshot
	lastUpdate time.Time
	quitting   bool

	rateProgress progress.Model
}

// NewModel creates a dashboard refreshing from source every interval.
func NewModel(source SnapshotSource, interval time.Duration) Model {
	rateProg := progress.New(
		progress.WithGradient("#ff0000", "#00ff00"),
		progress.WithWidth(40),
	)
	return Model{
		source:       source,
		interval:     interval,
		snap:         stats.NewSnapshot(),
		rateProgress: rateProg,
	}
}

type tickMsg time.Time
type snapshotMsg *stats.Snapshot

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), fetchSnapshot(m.source))
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshot(source SnapshotSource) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(source())
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.source)
		}

	case tickMsg:
		return m, tea.Batch(tick(m.interval), fetchSnapshot(m.source))

	case snapshotMsg:
		m.snap = (*stats.Snapshot)(msg)
		m.lastUpdate = time.Now()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	overall := m.snap.Overall
	var rate float64
	if overall.TotalAttempts > 0 {
		rate = float64(overall.TotalSuccesses) / float64(overall.TotalAttempts)
	}

	var content string
	content += headerStyle.Render("remedyd Remediation Dashboard") + "  " + rateBadge(rate, overall.TotalAttempts) + "\n"

	content += sectionStyle.Render("Overall") + "\n"
	content += labelStyle.Render("Attempts:     ") +
		valueStyle.Render(FormatAttempts(overall.TotalAttempts, overall.TotalSuccesses)) + "\n"
	content += labelStyle.Render("Success rate: ") +
		valueStyle.Render(FormatPercentage(rate)) + "\n"
	content += m.rateProgress.ViewAs(rate) + "\n"
	if !overall.LastUpdated.IsZero() {
		content += labelStyle.Render("Last update:  ") +
			dimStyle.Render(overall.LastUpdated.Local().Format(time.RFC822)) + "\n"
	}

	content += sectionStyle.Render("Recent outcomes") + "\n"
	content += outcomeSparkline(m.snap.History) + "\n"

	content += sectionStyle.Render(fmt.Sprintf("Top patterns (%d)", topCount)) + "\n"
	content += patternTable(topRanks(m.snap, topCount, true))

	content += sectionStyle.Render(fmt.Sprintf("Worst patterns (%d)", topCount)) + "\n"
	content += patternTable(topRanks(m.snap, topCount, false))

	content += footerStyle.Render("[q] quit  [r] refresh")

	return containerStyle.Render(content)
}

// rateBadge returns the overall health badge.
func rateBadge(rate float64, attempts int) string {
	switch {
	case attempts == 0:
		return dimStyle.Render("· NO DATA")
	case rate >= 0.7:
		return healthyStyle.Render("✓ HEALTHY")
	case rate >= 0.3:
		return warningStyle.Render("⚠ DEGRADED")
	default:
		return errorStyle.Render("✗ FAILING")
	}
}

// outcomeSparkline charts recent history: 1 for a success, 0 for a failure.
func outcomeSparkline(history []stats.FixAttempt) string {
	if len(history) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	start := 0
	if len(history) > sparklineWidth {
		start = len(history) - sparklineWidth
	}
	for _, attempt := range history[start:] {
		if attempt.Success {
			spark.Push(1)
		} else {
			spark.Push(0)
		}
	}
	return sparklineStyle.Render(spark.View())
}

// topRanks sorts patterns by success rate; best first when best is true.
func topRanks(snap *stats.Snapshot, n int, best bool) []stats.PatternRank {
	ranks := make([]stats.PatternRank, 0, len(snap.Patterns))
	for pattern, ps := range snap.Patterns {
		ranks = append(ranks, stats.PatternRank{Pattern: pattern, Stats: *ps})
	}
	sort.Slice(ranks, func(i, j int) bool {
		ri, rj := ranks[i].Stats.SuccessRate(), ranks[j].Stats.SuccessRate()
		if ri != rj {
			if best {
				return ri > rj
			}
			return ri < rj
		}
		if ranks[i].Stats.Attempts != ranks[j].Stats.Attempts {
			return ranks[i].Stats.Attempts > ranks[j].Stats.Attempts
		}
		return ranks[i].Pattern < ranks[j].Pattern
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

func patternTable(ranks []stats.PatternRank) string {
	if len(ranks) == 0 {
		return dimStyle.Render("  no patterns recorded") + "\n"
	}
	var content string
	for _, r := range ranks {
		content += fmt.Sprintf("  %s %s %s\n",
			valueStyle.Render(fmt.Sprintf("%-28s", r.Pattern)),
			labelStyle.Render(FormatPercentage(r.Stats.SuccessRate())),
			dimStyle.Render(fmt.Sprintf("(%d attempts)", r.Stats.Attempts)))
	}
	return content
}
