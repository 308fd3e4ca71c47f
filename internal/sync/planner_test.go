package sync

import (
	"testing"
	"time"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

var plannerCfg = config.SyncConfig{
	DefaultStartDate: "2023-01-01",
	DataReadyHour:    17,
}

func seedSeries(t *testing.T, st *store.Store, sym store.Symbol, lastDate string) {
	t.Helper()
	records := []store.Record{
		{Date: "2024-01-02", Code: sym.Code, Close: 10, AdjustFlag: "2"},
		{Date: lastDate, Code: sym.Code, Close: 11, AdjustFlag: "2"},
	}
	if err := st.Merge(sym, records, store.MergeFull); err != nil {
		t.Fatalf("seed merge failed: %v", err)
	}
}

func TestPlanFirstTimeFetch(t *testing.T) {
	st := store.New(t.TempDir(), logger.NewNop())
	p := NewPlanner(st, plannerCfg, logger.NewNop())

	sym := store.Symbol{Code: "sh.600000", Name: "浦发银行"}
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, time.Local)

	plan := p.Plan([]store.Symbol{sym}, now)
	if len(plan.Tasks) != 1 || len(plan.Skipped) != 0 {
		t.Fatalf("expected 1 task, got %d tasks %d skipped", len(plan.Tasks), len(plan.Skipped))
	}
	task := plan.Tasks[0]
	if task.Mode != FetchFull {
		t.Error("first-time fetch must be full mode")
	}
	if task.StartDate != "2023-01-01" {
		t.Errorf("expected default start date, got %s", task.StartDate)
	}
}

func TestPlanAlreadyCurrent(t *testing.T) {
	st := store.New(t.TempDir(), logger.NewNop())
	p := NewPlanner(st, plannerCfg, logger.NewNop())

	sym := store.Symbol{Code: "sh.600000", Name: "浦发银行"}
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, time.Local)
	seedSeries(t, st, sym, "2024-03-08")

	plan := p.Plan([]store.Symbol{sym}, now)
	if len(plan.Tasks) != 0 || len(plan.Skipped) != 1 {
		t.Errorf("expected skip for current series, got %d tasks", len(plan.Tasks))
	}
}

func TestPlanDataReadyCutoff(t *testing.T) {
	tests := []struct {
		name      string
		hour      int
		wantFetch bool
	}{
		{"before cutoff", 16, false},
		{"at cutoff", 17, true},
		{"after cutoff", 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.New(t.TempDir(), logger.NewNop())
			p := NewPlanner(st, plannerCfg, logger.NewNop())

			sym := store.Symbol{Code: "sh.600000", Name: "浦发银行"}
			seedSeries(t, st, sym, "2024-03-07") // yesterday
			now := time.Date(2024, 3, 8, tt.hour, 30, 0, 0, time.Local)

			plan := p.Plan([]store.Symbol{sym}, now)
			gotFetch := len(plan.Tasks) == 1
			if gotFetch != tt.wantFetch {
				t.Fatalf("fetch = %v, want %v", gotFetch, tt.wantFetch)
			}
			if gotFetch {
				task := plan.Tasks[0]
				if task.Mode != FetchIncremental {
					t.Error("expected incremental mode")
				}
				if task.StartDate != "2024-03-08" {
					t.Errorf("expected start the day after last date, got %s", task.StartDate)
				}
			}
		})
	}
}

func TestPlanStaleSeriesIncremental(t *testing.T) {
	st := store.New(t.TempDir(), logger.NewNop())
	p := NewPlanner(st, plannerCfg, logger.NewNop())

	sym := store.Symbol{Code: "sz.000001", Name: "平安银行"}
	seedSeries(t, st, sym, "2024-02-20")
	now := time.Date(2024, 3, 8, 9, 0, 0, 0, time.Local) // hour irrelevant, gap > 1 day

	plan := p.Plan([]store.Symbol{sym}, now)
	if len(plan.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(plan.Tasks))
	}
	if plan.Tasks[0].StartDate != "2024-02-21" || plan.Tasks[0].Mode != FetchIncremental {
		t.Errorf("unexpected task: %+v", plan.Tasks[0])
	}
}

func TestPlanMixedUniverse(t *testing.T) {
	st := store.New(t.TempDir(), logger.NewNop())
	p := NewPlanner(st, plannerCfg, logger.NewNop())

	current := store.Symbol{Code: "sh.600000", Name: "浦发银行"}
	stale := store.Symbol{Code: "sz.000001", Name: "平安银行"}
	missing := store.Symbol{Code: "bj.830799", Name: "艾融软件"}

	now := time.Date(2024, 3, 8, 18, 0, 0, 0, time.Local)
	seedSeries(t, st, current, "2024-03-08")
	seedSeries(t, st, stale, "2024-03-05")

	plan := p.Plan([]store.Symbol{current, stale, missing}, now)
	if len(plan.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(plan.Tasks))
	}
	if len(plan.Skipped) != 1 || plan.Skipped[0].Code != "sh.600000" {
		t.Errorf("unexpected skipped set: %+v", plan.Skipped)
	}
}
