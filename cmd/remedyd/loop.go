package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/cifail"
	"github.com/fyrsmithlabs/remedyd/internal/coordinator"
)

var loopDropDir string

func init() {
	rootCmd.AddCommand(loopCmd)
	loopCmd.Flags().StringVar(&loopDropDir, "drop-dir", "", "failure drop directory (overrides coordinator.drop_dir)")
}

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the bounded remediation loop against a failure drop directory",
	Long: `Run the remediation loop: watch the drop directory for failure report
files, remediate what arrives, and repeat until a cycle finds no
failures or the attempt budget is exhausted.

The wait between cycles is cut short when a new drop file is written.
Consumed drop files are deleted after reading.`,
	Args: cobra.NoArgs,
	RunE: runLoop,
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	dropDir := loopDropDir
	if dropDir == "" {
		dropDir = a.cfg.Coordinator.DropDir
	}
	if dropDir == "" {
		return fmt.Errorf("no drop directory configured; set coordinator.drop_dir or pass --drop-dir")
	}

	detector, err := cifail.NewWatchDetector(dropDir, a.logger)
	if err != nil {
		return err
	}
	defer detector.Stop()

	a.logger.Info("remediation loop starting",
		zap.String("drop_dir", dropDir),
		zap.Int("max_attempts", a.cfg.Coordinator.MaxAttempts),
		zap.Duration("interval", a.cfg.Coordinator.Interval.Duration()))

	reports, err := a.coord.Run(ctx, detector)
	if err != nil {
		return err
	}

	final := reports[len(reports)-1]
	fmt.Printf("Run complete: %s after %d cycle(s), %d fixed, %d failed\n",
		final.Outcome, final.AttemptNumber, final.ErrorsFixed, final.ErrorsFailed)
	if final.Outcome == coordinator.OutcomeExhausted {
		fmt.Println("Attempt budget exhausted with failures remaining; see the tracking ticket.")
	}
	return nil
}
