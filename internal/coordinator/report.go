package coordinator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/monitor"
)

// PriorityBreakdown counts ranked failures per severity tier.
type PriorityBreakdown struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// CycleReport is the audit record of one coordinator cycle. Reports are
// appended to a JSONL log and mirrored into the tracking ticket body.
type CycleReport struct {
	RunID             string            `json:"run_id"`
	Timestamp         time.Time         `json:"timestamp"`
	AttemptNumber     int               `json:"attempt_number"`
	ErrorsDetected    int               `json:"errors_detected"`
	ErrorsFixed       int               `json:"errors_fixed"`
	ErrorsFailed      int               `json:"errors_failed"`
	SuccessRate       float64           `json:"success_rate"`
	DurationMs        int64             `json:"duration_ms"`
	NextRunAt         *time.Time        `json:"next_run_at,omitempty"`
	PriorityBreakdown PriorityBreakdown `json:"priority_breakdown"`

	// Suppressed lists patterns the circuit breaker refused to attempt,
	// so an operator can see why they stopped being tried.
	Suppressed []string `json:"suppressed,omitempty"`

	// Final marks the run summary emitted at termination, distinct from
	// per-cycle reports.
	Final bool `json:"final,omitempty"`

	// Outcome is set on the final summary: "all_clear" or "exhausted".
	Outcome string `json:"outcome,omitempty"`
}

// MarkdownBody renders the report as the tracking ticket body.
func (r *CycleReport) MarkdownBody() string {
	var b strings.Builder

	if r.Final {
		fmt.Fprintf(&b, "## Remediation run complete: %s\n\n", r.Outcome)
	} else {
		fmt.Fprintf(&b, "## Remediation cycle %d\n\n", r.AttemptNumber)
	}
	fmt.Fprintf(&b, "_Run `%s` at %s_\n\n", r.RunID, r.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Errors detected | %d |\n", r.ErrorsDetected)
	fmt.Fprintf(&b, "| Errors fixed | %d |\n", r.ErrorsFixed)
	fmt.Fprintf(&b, "| Errors failed | %d |\n", r.ErrorsFailed)
	fmt.Fprintf(&b, "| Success rate | %s |\n", monitor.FormatPercentage(r.SuccessRate))
	fmt.Fprintf(&b, "| Cycle duration | %s |\n", monitor.FormatLatency(float64(r.DurationMs)/1000))
	fmt.Fprintf(&b, "| Priority | %d critical / %d high / %d medium / %d low |\n",
		r.PriorityBreakdown.Critical, r.PriorityBreakdown.High,
		r.PriorityBreakdown.Medium, r.PriorityBreakdown.Low)

	if len(r.Suppressed) > 0 {
		b.WriteString("\n### Suppressed patterns\n\n")
		b.WriteString("Below the retry threshold; not attempted until their success rate recovers:\n\n")
		for _, p := range r.Suppressed {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
	}

	if r.NextRunAt != nil {
		fmt.Fprintf(&b, "\nNext cycle at %s.\n", r.NextRunAt.Format(time.RFC3339))
	} else if r.Final {
		b.WriteString("\nNo further cycles scheduled.\n")
	}

	return b.String()
}

// ReportLog appends cycle reports to a JSONL file and reads them back
// for the CLI report command. Appending is best-effort from the
// coordinator's perspective; a failed append is logged, never fatal.
type ReportLog struct {
	path string
}

// NewReportLog creates a report log at path.
func NewReportLog(path string) *ReportLog {
	return &ReportLog{path: path}
}

// Append writes one report as a JSON line.
func (l *ReportLog) Append(report *CycleReport) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating report log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening report log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending report: %w", err)
	}
	return nil
}

// Tail returns the last n reports, oldest first. n <= 0 returns all.
// A missing log file yields no reports, not an error.
func (l *ReportLog) Tail(n int) ([]CycleReport, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening report log: %w", err)
	}
	defer f.Close()

	var reports []CycleReport
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var report CycleReport
		if err := json.Unmarshal([]byte(line), &report); err != nil {
			// A torn tail line (crash mid-append) is skipped.
			continue
		}
		reports = append(reports, report)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report log: %w", err)
	}

	if n > 0 && len(reports) > n {
		reports = reports[len(reports)-n:]
	}
	return reports, nil
}
