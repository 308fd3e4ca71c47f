package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hunter",
	Short: "StockHunter - incremental daily-series sync and technical screening",
	Long: `StockHunter Unified CLI

Keeps a local per-symbol daily price store in sync with the upstream
source, derives technical features, filters candidates and writes
result reports.

Usage:
  go run ./cmd/hunter [command]

Examples:
  go run ./cmd/hunter sync watchlist
  go run ./cmd/hunter analyze --mode backtest --date 2024-06-03
  go run ./cmd/hunter api
  go run ./cmd/hunter scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
