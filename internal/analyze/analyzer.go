package analyze

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stockhunter/stockhunter/internal/feature"
	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/internal/strategy"
	"github.com/stockhunter/stockhunter/internal/watchlist"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// Mode selects between analyzing the latest row and re-evaluating a
// historical date.
type Mode string

const (
	ModeCurrent  Mode = "current"
	ModeBacktest Mode = "backtest"
)

// Request describes one analysis run.
type Request struct {
	Mode Mode
	// Date is the evaluation date, YYYY-MM-DD. Required in backtest
	// mode; ignored in current mode.
	Date string
	// WatchlistOnly restricts the run to watchlisted symbols.
	WatchlistOnly bool
}

// Row is one retained symbol in the result set.
type Row struct {
	Code        string
	Name        string
	Snapshot    *feature.Snapshot
	Reason      string
	Watchlisted bool
	// Returns is populated in backtest mode only.
	Returns strategy.Returns
	// Advice fields are filled in by the advisor after the run.
	Advice    string
	Rationale string
}

// Result aggregates the run outcome. Rows are sorted by symbol code;
// worker completion order never leaks into the output.
type Result struct {
	Mode     Mode
	Date     string
	Rows     []Row
	Analyzed int
	Filtered int
	// Skipped counts symbols omitted before the filter, by reason.
	Skipped map[string]int
}

// skipFiltered marks symbols the strategy dropped, as opposed to
// symbols the engine could not evaluate.
const skipFiltered = "not matched"

// Analyzer fans feature computation out over the stored symbols.
type Analyzer struct {
	store   *store.Store
	engine  *feature.Engine
	watch   *watchlist.Store
	workers int
	logger  *logger.Logger
}

// New creates an analyzer with the given pool size.
func New(st *store.Store, eng *feature.Engine, watch *watchlist.Store, workers int, log *logger.Logger) *Analyzer {
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{
		store:   st,
		engine:  eng,
		watch:   watch,
		workers: workers,
		logger:  log.WithField("module", "analyze"),
	}
}

type symbolOutcome struct {
	row  *Row
	skip string
}

// Run evaluates every in-scope symbol and returns the retained rows.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Mode == ModeBacktest && req.Date == "" {
		return nil, fmt.Errorf("backtest mode requires a date")
	}

	watchSet, err := a.watch.LoadSet()
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}

	symbols, err := a.store.List()
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	if req.WatchlistOnly {
		scoped := symbols[:0]
		for _, sym := range symbols {
			if watchSet[sym.Code] {
				scoped = append(scoped, sym)
			}
		}
		symbols = scoped
	}

	a.logger.WithFields(map[string]interface{}{
		"mode":    string(req.Mode),
		"date":    req.Date,
		"symbols": len(symbols),
		"workers": a.workers,
	}).Info("Starting analysis")

	symbolCh := make(chan store.Symbol, len(symbols))
	outCh := make(chan symbolOutcome, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symbolCh {
				if ctx.Err() != nil {
					return
				}
				outCh <- a.evaluate(sym, req, watchSet[sym.Code])
			}
		}()
	}

	for _, sym := range symbols {
		symbolCh <- sym
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(outCh)
	}()

	res := &Result{Mode: req.Mode, Date: req.Date, Skipped: make(map[string]int)}
	for out := range outCh {
		res.Analyzed++
		switch {
		case out.row != nil:
			res.Rows = append(res.Rows, *out.row)
		case out.skip == skipFiltered:
			res.Filtered++
		default:
			res.Skipped[out.skip]++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(res.Rows, func(i, j int) bool {
		return res.Rows[i].Code < res.Rows[j].Code
	})

	a.logger.WithFields(map[string]interface{}{
		"analyzed": res.Analyzed,
		"retained": len(res.Rows),
		"filtered": res.Filtered,
		"skipped":  res.Analyzed - len(res.Rows) - res.Filtered,
	}).Info("Analysis completed")

	return res, nil
}

// evaluate runs feature derivation, the strategy filter and, in
// backtest mode, the forward returns for one symbol. Per-symbol
// failures become skip reasons, never run-level errors.
func (a *Analyzer) evaluate(sym store.Symbol, req Request, watchlisted bool) symbolOutcome {
	series, err := a.store.Load(sym)
	if err != nil {
		a.logger.WithError(err).WithField("code", sym.Code).Warn("Load series failed")
		return symbolOutcome{skip: "load failed"}
	}

	idx := len(series) - 1
	if req.Mode == ModeBacktest {
		var ok bool
		idx, ok = feature.LocateIndex(series, req.Date)
		if !ok {
			return symbolOutcome{skip: feature.SkipNoData}
		}
		// A backtest needs full history strictly before the evaluation
		// row, one row more than the latest-row case.
		if idx < feature.MinHistory {
			return symbolOutcome{skip: feature.SkipInsufficientHistory}
		}
	}

	out := a.engine.At(series, idx)
	if !out.OK() {
		return symbolOutcome{skip: out.Skip}
	}

	verdict := strategy.Evaluate(out.Snapshot, watchlisted)
	if !verdict.Retained {
		return symbolOutcome{skip: skipFiltered}
	}

	row := &Row{
		Code:        sym.Code,
		Name:        sym.Name,
		Snapshot:    out.Snapshot,
		Reason:      verdict.Reason(),
		Watchlisted: watchlisted,
	}
	if req.Mode == ModeBacktest {
		row.Returns = strategy.ForwardReturns(series, idx)
	}
	return symbolOutcome{row: row}
}
