package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/remedyd/internal/monitor"
	"github.com/fyrsmithlabs/remedyd/internal/stats"
)

var dashInterval time.Duration

func init() {
	rootCmd.AddCommand(dashCmd)
	dashCmd.Flags().DurationVar(&dashInterval, "interval", 2*time.Second, "Refresh interval")
}

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Live terminal dashboard over the remediation ledger",
	Long: `Render a live dashboard of fix-outcome statistics: overall success
rate, recent attempt outcomes, and the best and worst patterns.

The ledger file is re-read on every refresh, so a concurrently running
loop shows up live. Press q to quit, r to refresh immediately.`,
	Args: cobra.NoArgs,
	RunE: runDash,
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := func() *stats.Snapshot {
		// A fresh store per refresh picks up writes from other processes.
		return stats.NewStore(cfg.Stats.Path, nil).Snapshot()
	}

	model := monitor.NewModel(source, dashInterval)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
