// Package main implements the remedyd CLI: the CI failure remediation
// coordinator and its operator commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// version information, overridden at build time.
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remedyd",
	Short: "Autonomous CI failure remediation coordinator",
	Long: `remedyd watches for CI failure reports, prioritizes them, applies
configured remediation commands, and tracks progress in a GitHub issue.

Fix outcomes are recorded in a persistent ledger so repeatedly failing
remediations are suppressed until their success rate recovers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/remedyd/config.yaml)")
}
