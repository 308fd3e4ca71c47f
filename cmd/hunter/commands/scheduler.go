package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stockhunter/stockhunter/internal/scheduler"
	"github.com/stockhunter/stockhunter/internal/scheduler/jobs"
	syncer "github.com/stockhunter/stockhunter/internal/sync"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the daily job scheduler",
	Long: `Starts the scheduler daemon with the daily jobs registered.

Registered jobs:
  daily_sync     - sync pass after the data-ready hour, weekdays
  daily_analysis - analysis + report an hour later, weekdays

Example:
  go run ./cmd/hunter scheduler start
  go run ./cmd/hunter scheduler run daily_sync`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

var schedulerScope string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringVar(&schedulerScope, "scope", "watchlist", "sync scope (watchlist|all)")
}

func buildScheduler() (*scheduler.Scheduler, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}

	scope := syncer.Scope(schedulerScope)
	if scope != syncer.ScopeWatchlist && scope != syncer.ScopeAll {
		return nil, fmt.Errorf("unknown scope %q, want watchlist or all", schedulerScope)
	}

	service, err := a.buildSyncService()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewDailySyncJob(service, scope, a.cfg, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewDailyAnalysisJob(a.buildAnalyzer(), a.buildAdvisor(), a.reports, a.cfg, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}

	sched.Start()
	fmt.Println("\n✅ Scheduler running")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()

	for name, stats := range sched.GetJobStats() {
		fmt.Printf("  %s: %d runs, %.0f%% success\n", name, stats.TotalRuns, stats.SuccessRate*100)
	}
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}
	if err := sched.RunJob(args[0]); err != nil {
		return err
	}

	fmt.Printf("✅ Job %s triggered\n", args[0])
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	return nil
}
