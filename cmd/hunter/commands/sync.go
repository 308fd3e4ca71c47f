package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncer "github.com/stockhunter/stockhunter/internal/sync"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [watchlist|all]",
	Short: "Synchronize the local series store",
	Long: `Fetches missing daily bars from the upstream source and merges
them into the per-symbol CSV store.

Scope:
  watchlist - only watchlisted symbols (default)
  all       - the full market universe

Example:
  go run ./cmd/hunter sync
  go run ./cmd/hunter sync all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	scope := syncer.ScopeWatchlist
	if len(args) == 1 {
		switch syncer.Scope(args[0]) {
		case syncer.ScopeWatchlist, syncer.ScopeAll:
			scope = syncer.Scope(args[0])
		default:
			return fmt.Errorf("unknown scope %q, want watchlist or all", args[0])
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	service, err := a.buildSyncService()
	if err != nil {
		return err
	}

	start := time.Now()
	PrintRunHeader("StockHunter Sync", map[string]string{
		"Scope": string(scope),
		"Data":  a.cfg.DataDir,
	}, []string{"Scope", "Data"})

	// Ctrl+C stops scheduling new chunks; in-flight work winds down.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := service.Run(ctx, scope, time.Now())
	if err != nil {
		PrintRunFailure(time.Since(start), err.Error())
		return err
	}

	PrintCount("Planned", result.Planned)
	PrintCount("Succeeded", result.Succeeded)
	PrintCount("Failed", result.Failed)
	PrintCount("Rounds", result.Rounds)

	if result.Aborted {
		PrintRunFailure(time.Since(start), "circuit breaker tripped")
		return fmt.Errorf("sync aborted")
	}
	if result.Failed > 0 {
		fmt.Printf("\n⚠️  Unfinished symbols: %s\n", strings.Join(result.FailedCodes, ", "))
	}

	PrintRunCompletion(time.Since(start))
	return nil
}
