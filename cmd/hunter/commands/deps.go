package commands

import (
	"fmt"

	"github.com/stockhunter/stockhunter/internal/advisor"
	"github.com/stockhunter/stockhunter/internal/analyze"
	"github.com/stockhunter/stockhunter/internal/feature"
	"github.com/stockhunter/stockhunter/internal/report"
	"github.com/stockhunter/stockhunter/internal/store"
	syncer "github.com/stockhunter/stockhunter/internal/sync"
	"github.com/stockhunter/stockhunter/internal/upstream"
	"github.com/stockhunter/stockhunter/internal/watchlist"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/httputil"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store
	watch   *watchlist.Store
	reports *report.Store
}

// newApp loads config and builds the common components.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare dirs: %w", err)
	}

	log := logger.New(cfg)
	return &app{
		cfg:     cfg,
		log:     log,
		store:   store.New(cfg.DataDir, log),
		watch:   watchlist.New(cfg.WatchlistFile),
		reports: report.New(cfg.OutputDir, log),
	}, nil
}

// buildSyncService wires the upstream clients, planner and executor.
// The proxied source only exists when a proxy URL is configured.
func (a *app) buildSyncService() (*syncer.Service, error) {
	directHTTP := httputil.New(a.log, a.cfg.Upstream.Timeout)
	direct := upstream.NewClient(a.cfg.Upstream.BaseURL, directHTTP, a.cfg.Upstream.RateLimit, a.log)

	var proxied syncer.Source
	if a.cfg.Upstream.ProxyURL != "" {
		proxiedHTTP, err := httputil.NewWithProxy(a.log, a.cfg.Upstream.Timeout, a.cfg.Upstream.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("build proxied client: %w", err)
		}
		proxied = syncer.NewUpstreamSource(upstream.NewClient(a.cfg.Upstream.BaseURL, proxiedHTTP, a.cfg.Upstream.RateLimit, a.log))
	}

	planner := syncer.NewPlanner(a.store, a.cfg.Sync, a.log)
	executor := syncer.NewExecutor(a.store, syncer.NewUpstreamSource(direct), proxied, a.cfg.Sync, a.log)
	return syncer.NewService(a.store, direct, planner, executor, a.watch, a.log), nil
}

// buildAnalyzer wires the feature engine into the analysis pool.
func (a *app) buildAnalyzer() *analyze.Analyzer {
	engine := feature.NewEngine(a.log)
	return analyze.New(a.store, engine, a.watch, a.cfg.Analyze.Workers, a.log)
}

// buildAdvisor wires the LLM advisory client.
func (a *app) buildAdvisor() *advisor.Advisor {
	return advisor.New(a.cfg.LLM, nil, a.log)
}
