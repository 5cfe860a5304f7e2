package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/remedyd/internal/monitor"
	"github.com/fyrsmithlabs/remedyd/internal/stats"
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsTopCmd)
	statsCmd.AddCommand(statsWorstCmd)
	statsCmd.AddCommand(statsHistoryCmd)
	statsCmd.AddCommand(statsClearCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fix-outcome statistics",
	Long: `Show aggregate fix-outcome statistics from the learning ledger.

Subcommands drill into per-pattern rankings and the attempt history.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var statsTopCmd = &cobra.Command{
	Use:   "top [n]",
	Short: "Show the patterns with the highest fix success rate",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatsRanking(args, true)
	},
}

var statsWorstCmd = &cobra.Command{
	Use:   "worst [n]",
	Short: "Show the patterns with the lowest fix success rate",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatsRanking(args, false)
	},
}

var statsHistoryCmd = &cobra.Command{
	Use:   "history [n]",
	Short: "Show recent fix attempts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatsHistory,
}

var statsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the learning ledger",
	Args:  cobra.NoArgs,
	RunE:  runStatsClear,
}

// openStore loads the ledger for the CLI without logging noise.
func openStore() (*stats.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return stats.NewStore(cfg.Stats.Path, nil,
		stats.WithHistoryCap(cfg.Stats.HistoryCap),
		stats.WithRetryThreshold(cfg.Stats.RetryThreshold),
	), nil
}

func countArg(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	snap := store.Snapshot()
	overall := snap.Overall

	fmt.Printf("Patterns:  %d\n", len(snap.Patterns))
	fmt.Printf("Attempts:  %s\n", monitor.FormatAttempts(overall.TotalAttempts, overall.TotalSuccesses))
	if overall.TotalAttempts > 0 {
		rate := float64(overall.TotalSuccesses) / float64(overall.TotalAttempts)
		fmt.Printf("Rate:      %s\n", monitor.FormatPercentage(rate))
	}
	if !overall.LastUpdated.IsZero() {
		fmt.Printf("Updated:   %s\n", overall.LastUpdated.Local().Format(time.DateTime))
	}
	return nil
}

func runStatsRanking(args []string, best bool) error {
	n, err := countArg(args, 10)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	var ranks []stats.PatternRank
	if best {
		ranks = store.TopPatterns(n)
	} else {
		ranks = store.WorstPatterns(n)
	}
	if len(ranks) == 0 {
		fmt.Println("No patterns recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tATTEMPTS\tRATE\tAVG DURATION")
	for _, r := range ranks {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			r.Pattern,
			r.Stats.Attempts,
			monitor.FormatPercentage(r.Stats.SuccessRate()),
			monitor.FormatLatency(r.Stats.AvgDurationMs()/1000))
	}
	return w.Flush()
}

func runStatsHistory(cmd *cobra.Command, args []string) error {
	n, err := countArg(args, 20)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	history := store.History(n)
	if len(history) == 0 {
		fmt.Println("No fix attempts recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPATTERN\tRESULT\tDURATION\tNOTE")
	for _, a := range history {
		result := "fail"
		if a.Success {
			result = "ok"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
			a.Timestamp.Local().Format(time.DateTime),
			a.Pattern,
			result,
			a.DurationMs,
			a.Note)
	}
	return w.Flush()
}

func runStatsClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Ledger cleared.")
	return nil
}
