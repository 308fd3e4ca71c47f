package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockhunter/stockhunter/internal/api"
	"github.com/stockhunter/stockhunter/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only API server",
	Long: `Starts the HTTP API server over the local store and reports.

Endpoints:
  GET    /health               - Health check
  GET    /api/reports          - List result reports
  GET    /api/reports/{name}   - Fetch one report
  GET    /api/watchlist        - List watchlisted codes
  POST   /api/watchlist        - Add a code
  DELETE /api/watchlist/{code} - Remove a code
  GET    /api/status           - Data-dir status

Example:
  go run ./cmd/hunter api
  go run ./cmd/hunter api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	router := api.NewRouter(
		handlers.NewReportHandler(a.reports, a.log),
		handlers.NewWatchlistHandler(a.watch, a.log),
		handlers.NewStatusHandler(a.store, a.watch, a.log),
		a.log,
	)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
