package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/remedyd/internal/cifail"
)

var runOutputJSON bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOutputJSON, "json", false, "Print the cycle report as JSON")
}

var runCmd = &cobra.Command{
	Use:   "run <errors.json>",
	Short: "Run one remediation cycle against a failure report file",
	Long: `Run a single detect/prioritize/remediate cycle against the failure
records in the given JSON file and print the cycle report.

The file is either a bare array of failure records or an object with a
"failures" field:

  [{"pattern": "npm-install", "kind": "dependency_error",
    "message": "npm install failed", "blocking": true}]`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	records, err := cifail.ReadDropFile(args[0])
	if err != nil {
		return fmt.Errorf("reading failure report %s: %w", args[0], err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	report, err := a.coord.RunOnce(ctx, records)
	if err != nil {
		return err
	}

	if runOutputJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	fmt.Printf("Detected:   %d\n", report.ErrorsDetected)
	fmt.Printf("Fixed:      %d\n", report.ErrorsFixed)
	fmt.Printf("Failed:     %d\n", report.ErrorsFailed)
	if len(report.Suppressed) > 0 {
		fmt.Printf("Suppressed: %v\n", report.Suppressed)
	}
	fmt.Printf("Priority:   %d critical / %d high / %d medium / %d low\n",
		report.PriorityBreakdown.Critical, report.PriorityBreakdown.High,
		report.PriorityBreakdown.Medium, report.PriorityBreakdown.Low)
	fmt.Printf("Duration:   %dms\n", report.DurationMs)
	return nil
}
