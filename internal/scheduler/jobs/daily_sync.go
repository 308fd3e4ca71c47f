package jobs

import (
	"context"
	"fmt"
	"time"

	syncer "github.com/stockhunter/stockhunter/internal/sync"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// DailySyncJob refreshes the local series store every trading day
// after the close data is published.
type DailySyncJob struct {
	service *syncer.Service
	scope   syncer.Scope
	config  *config.Config
	logger  *logger.Logger
}

// NewDailySyncJob creates a new daily sync job
func NewDailySyncJob(service *syncer.Service, scope syncer.Scope, cfg *config.Config, log *logger.Logger) *DailySyncJob {
	return &DailySyncJob{
		service: service,
		scope:   scope,
		config:  cfg,
		logger:  log,
	}
}

// Name returns the job name
func (j *DailySyncJob) Name() string {
	return "daily_sync"
}

// Schedule fires 30 minutes past the data-ready hour, weekdays only.
func (j *DailySyncJob) Schedule() string {
	return fmt.Sprintf("0 30 %d * * 1-5", j.config.Sync.DataReadyHour)
}

// Run executes one sync pass
func (j *DailySyncJob) Run(ctx context.Context) error {
	j.logger.WithField("scope", string(j.scope)).Info("Starting scheduled sync")

	result, err := j.service.Run(ctx, j.scope, time.Now())
	if err != nil {
		return fmt.Errorf("sync run: %w", err)
	}
	if result.Aborted {
		return fmt.Errorf("sync aborted by circuit breaker, %d symbols unfinished", result.Failed)
	}
	if result.Failed > 0 {
		return fmt.Errorf("sync finished with %d failed symbols", result.Failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"planned":   result.Planned,
		"succeeded": result.Succeeded,
		"rounds":    result.Rounds,
	}).Info("Scheduled sync completed")
	return nil
}
