package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockhunter/stockhunter/internal/analyze"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run feature analysis and write a result report",
	Long: `Derives technical features for every stored symbol, applies the
strategy filter and writes one result CSV into the output dir.

Modes:
  current  - evaluate the latest stored row (default)
  backtest - evaluate at a historical date and compute forward returns

Example:
  go run ./cmd/hunter analyze
  go run ./cmd/hunter analyze --scope watchlist
  go run ./cmd/hunter analyze --mode backtest --date 2024-06-03`,
	RunE: runAnalyze,
}

var (
	analyzeMode  string
	analyzeDate  string
	analyzeScope string
	skipAdvice   bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "current", "analysis mode (current|backtest)")
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "evaluation date for backtest mode (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeScope, "scope", "all", "symbol scope (all|watchlist)")
	analyzeCmd.Flags().BoolVar(&skipAdvice, "no-advice", false, "skip the LLM advisory pass")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mode := analyze.Mode(analyzeMode)
	if mode != analyze.ModeCurrent && mode != analyze.ModeBacktest {
		return fmt.Errorf("unknown mode %q, want current or backtest", analyzeMode)
	}
	if mode == analyze.ModeBacktest && analyzeDate == "" {
		return fmt.Errorf("backtest mode requires --date")
	}
	if analyzeScope != "all" && analyzeScope != "watchlist" {
		return fmt.Errorf("unknown scope %q, want all or watchlist", analyzeScope)
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	start := time.Now()
	PrintRunHeader("StockHunter Analysis", map[string]string{
		"Mode":  string(mode),
		"Date":  analyzeDate,
		"Scope": analyzeScope,
	}, []string{"Mode", "Date", "Scope"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	analyzer := a.buildAnalyzer()
	result, err := analyzer.Run(ctx, analyze.Request{
		Mode:          mode,
		Date:          analyzeDate,
		WatchlistOnly: analyzeScope == "watchlist",
	})
	if err != nil {
		PrintRunFailure(time.Since(start), err.Error())
		return err
	}

	if !skipAdvice {
		adv := a.buildAdvisor()
		if adv.Enabled() {
			adv.Annotate(ctx, result.Rows)
		} else {
			a.log.Info("No LLM API key configured, skipping advice")
		}
	}

	name, err := a.reports.Write(result, time.Now())
	if err != nil {
		PrintRunFailure(time.Since(start), err.Error())
		return fmt.Errorf("write report: %w", err)
	}

	PrintCount("Analyzed", result.Analyzed)
	PrintCount("Retained", len(result.Rows))
	PrintCount("Filtered", result.Filtered)
	for reason, n := range result.Skipped {
		PrintCount("Skip: "+reason, n)
	}
	fmt.Printf("\n📄 Report: %s\n", name)

	PrintRunCompletion(time.Since(start))
	return nil
}
