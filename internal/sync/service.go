package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/internal/upstream"
	"github.com/stockhunter/stockhunter/internal/watchlist"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// Scope selects which symbol universe a sync pass covers.
type Scope string

const (
	ScopeWatchlist Scope = "watchlist"
	ScopeAll       Scope = "all"
)

// Service ties universe resolution, planning and execution together
// into one sync pass.
type Service struct {
	store    *store.Store
	universe *upstream.Client
	planner  *Planner
	executor *Executor
	watch    *watchlist.Store
	logger   *logger.Logger
}

// NewService creates a sync service.
func NewService(st *store.Store, universe *upstream.Client, planner *Planner, exec *Executor, watch *watchlist.Store, log *logger.Logger) *Service {
	return &Service{
		store:    st,
		universe: universe,
		planner:  planner,
		executor: exec,
		watch:    watch,
		logger:   log.WithField("module", "sync"),
	}
}

// Run performs one full sync pass over the requested scope.
func (s *Service) Run(ctx context.Context, scope Scope, now time.Time) (*Result, error) {
	symbols, err := s.resolveUniverse(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		s.logger.WithField("scope", string(scope)).Warn("Universe is empty, nothing to sync")
		return &Result{}, nil
	}

	plan := s.planner.Plan(symbols, now)
	s.logger.WithFields(map[string]interface{}{
		"scope":   string(scope),
		"symbols": len(symbols),
		"tasks":   len(plan.Tasks),
		"skipped": len(plan.Skipped),
	}).Info("Sync plan ready")

	if len(plan.Tasks) == 0 {
		return &Result{}, nil
	}
	return s.executor.Run(ctx, plan.Tasks, now), nil
}

// resolveUniverse maps the scope to concrete symbols. Watchlist codes
// without a local series get their names from the full-market listing,
// falling back to the bare code.
func (s *Service) resolveUniverse(ctx context.Context, scope Scope, now time.Time) ([]store.Symbol, error) {
	if scope == ScopeAll {
		symbols, err := s.universe.QueryUniverse(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("query universe: %w", err)
		}
		return symbols, nil
	}

	codes, err := s.watch.Load()
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}

	symbols := make([]store.Symbol, 0, len(codes))
	var missing []string
	for _, code := range codes {
		if sym, ok := s.store.Lookup(code); ok {
			symbols = append(symbols, sym)
		} else {
			missing = append(missing, code)
		}
	}
	if len(missing) == 0 {
		return symbols, nil
	}

	names := make(map[string]string)
	listing, err := s.universe.QueryUniverse(ctx, now)
	if err != nil {
		s.logger.WithError(err).Warn("Name lookup failed, using bare codes")
	} else {
		for _, sym := range listing {
			names[sym.Code] = sym.Name
		}
	}
	for _, code := range missing {
		name := names[code]
		if name == "" {
			name = code
		}
		symbols = append(symbols, store.Symbol{Code: code, Name: name})
	}
	return symbols, nil
}
