package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store and report status",
	Long: `Prints the state of the local data dir: stored symbols, data
freshness, watchlist size and available reports.

Example:
  go run ./cmd/hunter status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	symbols, err := a.store.List()
	if err != nil {
		return fmt.Errorf("list series: %w", err)
	}

	latest := ""
	stale := 0
	for _, sym := range symbols {
		d, err := a.store.LastDate(sym)
		if err != nil {
			stale++
			continue
		}
		if d > latest {
			latest = d
		}
	}

	codes, err := a.watch.Load()
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	reports, err := a.reports.List()
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	PrintRunHeader("StockHunter Status", map[string]string{
		"Data":   a.cfg.DataDir,
		"Output": a.cfg.OutputDir,
	}, []string{"Data", "Output"})

	PrintCount("Symbols", len(symbols))
	PrintCount("Watchlist", len(codes))
	PrintCount("Reports", len(reports))
	if stale > 0 {
		PrintCount("Unreadable", stale)
	}
	if latest != "" {
		fmt.Printf("  %-12s: %s\n", "Latest date", latest)
	}
	if len(reports) > 0 {
		fmt.Printf("  %-12s: %s\n", "Last report", reports[0].Name)
	}
	return nil
}
