// Package monitor renders remediation statistics for operators: pure
// formatting helpers shared by reports and the CLI, and a live terminal
// dashboard over the stats ledger.
package monitor

import "fmt"

// FormatPercentage formats a ratio (0-1) as percentage.
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatLatency formats a duration in seconds as "X.Xms" or "X.Xs".
func FormatLatency(seconds float64) string {
	if seconds < 1.0 {
		return fmt.Sprintf("%.1fms", seconds*1000)
	}
	return fmt.Sprintf("%.1fs", seconds)
}

// FormatDuration formats a duration in seconds to "Xh Ym" or "Xm".
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatAttempts formats an attempt count with success/failure split.
func FormatAttempts(attempts, successes int) string {
	return fmt.Sprintf("%d (%d ok / %d failed)", attempts, successes, attempts-successes)
}
