package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/stockhunter/stockhunter/internal/advisor"
	"github.com/stockhunter/stockhunter/internal/analyze"
	"github.com/stockhunter/stockhunter/internal/report"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// DailyAnalysisJob evaluates the stored series and writes the daily
// result report once the sync job has had time to finish.
type DailyAnalysisJob struct {
	analyzer *analyze.Analyzer
	advisor  *advisor.Advisor
	reports  *report.Store
	config   *config.Config
	logger   *logger.Logger
}

// NewDailyAnalysisJob creates a new daily analysis job
func NewDailyAnalysisJob(an *analyze.Analyzer, adv *advisor.Advisor, reports *report.Store, cfg *config.Config, log *logger.Logger) *DailyAnalysisJob {
	return &DailyAnalysisJob{
		analyzer: an,
		advisor:  adv,
		reports:  reports,
		config:   cfg,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyAnalysisJob) Name() string {
	return "daily_analysis"
}

// Schedule fires an hour past the data-ready hour, weekdays only.
func (j *DailyAnalysisJob) Schedule() string {
	return fmt.Sprintf("0 0 %d * * 1-5", j.config.Sync.DataReadyHour+1)
}

// Run executes one analysis pass over the watchlist scope
func (j *DailyAnalysisJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled analysis")

	result, err := j.analyzer.Run(ctx, analyze.Request{Mode: analyze.ModeCurrent})
	if err != nil {
		return fmt.Errorf("analysis run: %w", err)
	}

	j.advisor.Annotate(ctx, result.Rows)

	name, err := j.reports.Write(result, time.Now())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"report":   name,
		"retained": len(result.Rows),
		"analyzed": result.Analyzed,
	}).Info("Scheduled analysis completed")
	return nil
}
