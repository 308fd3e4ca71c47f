package sync

import (
	"time"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// FetchMode selects the merge semantics for a fetched window.
type FetchMode int

const (
	// FetchFull rewrites the whole series from the default start date.
	FetchFull FetchMode = iota
	// FetchIncremental appends the window after the last local date.
	FetchIncremental
)

// Task is one planned fetch for one symbol, consumed exactly once by
// the executor.
type Task struct {
	Symbol    store.Symbol
	StartDate string // YYYY-MM-DD, inclusive
	Mode      FetchMode
}

// Plan partitions the universe into fetch tasks and symbols already
// current.
type Plan struct {
	Tasks   []Task
	Skipped []store.Symbol
}

// Planner decides per symbol whether a fetch is needed and the fetch
// window, using only the store tail dates; full series bodies are
// never parsed here.
type Planner struct {
	store  *store.Store
	cfg    config.SyncConfig
	logger *logger.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(st *store.Store, cfg config.SyncConfig, log *logger.Logger) *Planner {
	return &Planner{
		store:  st,
		cfg:    cfg,
		logger: log.WithField("module", "planner"),
	}
}

// Plan inspects every symbol in the universe against the local store.
//
// Rules, in order:
//   - no local series (or unreadable tail) → full fetch from the
//     default start date
//   - last date on/after today → skip, already current
//   - last date is yesterday and the data-ready hour has not passed →
//     skip, today's close is not published yet
//   - otherwise → incremental fetch from the day after the last date
func (p *Planner) Plan(universe []store.Symbol, now time.Time) Plan {
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	var plan Plan
	for _, sym := range universe {
		task, skip := p.planOne(sym, today, yesterday, now.Hour())
		if skip {
			plan.Skipped = append(plan.Skipped, sym)
		} else {
			plan.Tasks = append(plan.Tasks, task)
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"universe": len(universe),
		"to_fetch": len(plan.Tasks),
		"skipped":  len(plan.Skipped),
	}).Info("Sync plan ready")

	return plan
}

func (p *Planner) planOne(sym store.Symbol, today, yesterday string, hour int) (Task, bool) {
	if !p.store.Exists(sym) {
		return Task{Symbol: sym, StartDate: p.cfg.DefaultStartDate, Mode: FetchFull}, false
	}

	last, err := p.store.LastDate(sym)
	if err != nil || last == "" {
		// File exists but its tail is unreadable: rebuild from scratch.
		return Task{Symbol: sym, StartDate: p.cfg.DefaultStartDate, Mode: FetchFull}, false
	}

	if last >= today {
		return Task{}, true
	}

	if last == yesterday && hour < p.cfg.DataReadyHour {
		return Task{}, true
	}

	start, err := nextDay(last)
	if err != nil {
		return Task{Symbol: sym, StartDate: p.cfg.DefaultStartDate, Mode: FetchFull}, false
	}
	if start > today {
		return Task{}, true
	}

	return Task{Symbol: sym, StartDate: start, Mode: FetchIncremental}, false
}

func nextDay(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02"), nil
}
