package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/remedyd/internal/coordinator"
	"github.com/fyrsmithlabs/remedyd/internal/monitor"
)

var (
	reportLimit      int
	reportOutputJSON bool
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Maximum number of reports to show")
	reportCmd.Flags().BoolVar(&reportOutputJSON, "json", false, "Output reports as JSON")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recent cycle reports",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := coordinator.NewReportLog(cfg.Coordinator.ReportLog)
	reports, err := log.Tail(reportLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No cycle reports recorded.")
		return nil
	}

	if reportOutputJSON {
		return json.NewEncoder(os.Stdout).Encode(reports)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRUN\tATTEMPT\tDETECTED\tFIXED\tFAILED\tRATE\tOUTCOME")
	for _, r := range reports {
		outcome := r.Outcome
		if !r.Final {
			outcome = "-"
		}
		fmt.Fprintf(w, "%s\t%.8s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Timestamp.Local().Format(time.DateTime),
			r.RunID,
			r.AttemptNumber,
			r.ErrorsDetected,
			r.ErrorsFixed,
			r.ErrorsFailed,
			monitor.FormatPercentage(r.SuccessRate),
			outcome)
	}
	return w.Flush()
}
