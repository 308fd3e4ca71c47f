package feature

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// MinHistory is the shortest series the engine will analyze. Shorter
// series (or backtest indices with less history) are reported as
// insufficient data, never zero-filled.
const MinHistory = 60

// srWindow is the trailing row count for the support/resistance range.
const srWindow = 30

// trajectoryLen is how many recent closes the trajectory string shows.
const trajectoryLen = 5

// Descriptive state labels. These are the renderable values consumed
// by the result table and the advisory prompt.
const (
	TrendBullish       = "bullish alignment"
	TrendBearish       = "bearish alignment"
	TrendRebound       = "rebound"
	TrendConsolidation = "consolidation"

	YearLineAbove  = "above year line"
	YearLineBelow  = "below year line"
	YearLineNoData = "no data"

	CrossGolden = "golden cross"
	CrossDeath  = "death cross"

	VolumeSurge       = "volume surge"
	VolumeContraction = "volume contraction"
)

// volumeSurgeRatio is the current-volume/5-day-average cut for the
// surge label.
const volumeSurgeRatio = 1.2

// Skip reasons for symbols omitted from the result set.
const (
	SkipNoData              = "no data at evaluation date"
	SkipInsufficientHistory = "insufficient history"
)

// Snapshot is the derived feature set for one symbol at one evaluation
// index. Ephemeral: recomputed every run.
type Snapshot struct {
	Date  string
	Close float64

	MA5      float64
	MA20     float64
	MA60     float64
	MA250    float64
	HasMA250 bool

	DIF float64
	DEA float64
	K   float64
	D   float64
	RSI float64

	VolumeRatio float64

	TrendState    string
	YearLineState string
	YearLineDist  float64 // pct distance of close from MA250
	MACDState     string
	KDJState      string
	VolumeState   string

	Resistance     float64 // trailing-window high
	Support        float64 // trailing-window low
	ResistanceDist float64 // pct above current close
	SupportDist    float64 // pct below current close

	RecentTrajectory string // last closes joined with "->"
}

// Outcome is the explicit result of analyzing one symbol: either a
// snapshot or a reason it was skipped, so omissions stay diagnosable.
type Outcome struct {
	Snapshot *Snapshot
	Skip     string
}

// OK reports whether the outcome carries a snapshot.
func (o Outcome) OK() bool {
	return o.Snapshot != nil
}

// Engine derives feature snapshots from raw series. All derivations at
// index i use rows <= i only; rows after i never influence the result.
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a feature engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log.WithField("module", "feature")}
}

// Latest analyzes the last available row.
func (e *Engine) Latest(series []store.Record) Outcome {
	return e.At(series, len(series)-1)
}

// At analyzes the series at evaluation index idx.
func (e *Engine) At(series []store.Record, idx int) Outcome {
	if idx < 0 || idx >= len(series) {
		return Outcome{Skip: SkipNoData}
	}
	if idx+1 < MinHistory {
		return Outcome{Skip: SkipInsufficientHistory}
	}

	// Truncate to rows <= idx so nothing below can look ahead.
	past := series[:idx+1]
	n := len(past)

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, rec := range past {
		closes[i] = rec.Close
		highs[i] = rec.High
		lows[i] = rec.Low
		volumes[i] = rec.Volume
	}

	curr := past[n-1]
	snap := &Snapshot{
		Date:  curr.Date,
		Close: curr.Close,
	}

	// The 60-row guard guarantees MA5/MA20/MA60, MACD, KDJ and RSI.
	snap.MA5, _ = smaAt(closes, 5, n-1)
	snap.MA20, _ = smaAt(closes, 20, n-1)
	snap.MA60, _ = smaAt(closes, 60, n-1)
	snap.MA250, snap.HasMA250 = smaAt(closes, 250, n-1)

	snap.TrendState = trendState(curr.Close, snap.MA5, snap.MA20, snap.MA60)

	if snap.HasMA250 && snap.MA250 > 0 {
		snap.YearLineDist = round1((curr.Close - snap.MA250) / snap.MA250 * 100)
		if curr.Close > snap.MA250 {
			snap.YearLineState = YearLineAbove
		} else {
			snap.YearLineState = YearLineBelow
		}
	} else {
		snap.YearLineState = YearLineNoData
	}

	snap.DIF, snap.DEA, _ = macdAt(closes)
	snap.MACDState = crossState(snap.DIF, snap.DEA)

	snap.K, snap.D, _ = kdjAt(highs, lows, closes)
	snap.KDJState = crossState(snap.K, snap.D)

	if rsi, ok := rsiAt(closes); ok {
		snap.RSI = round2(rsi)
	}

	if volMA5, ok := smaAt(volumes, 5, n-1); ok && volMA5 > 0 {
		snap.VolumeRatio = round2(curr.Volume / volMA5)
	}
	if snap.VolumeRatio > volumeSurgeRatio {
		snap.VolumeState = VolumeSurge
	} else {
		snap.VolumeState = VolumeContraction
	}

	start := n - srWindow
	if start < 0 {
		start = 0
	}
	high, low := highs[start], lows[start]
	for i := start + 1; i < n; i++ {
		high = math.Max(high, highs[i])
		low = math.Min(low, lows[i])
	}
	snap.Resistance = round2(high)
	snap.Support = round2(low)
	if curr.Close > 0 {
		snap.ResistanceDist = round1((high - curr.Close) / curr.Close * 100)
		snap.SupportDist = round1((curr.Close - low) / curr.Close * 100)
	}

	snap.RecentTrajectory = trajectory(closes)

	return Outcome{Snapshot: snap}
}

// LocateIndex finds the evaluation index for a backtest date: the last
// row on or before the date. ok is false when the series starts after
// the date.
func LocateIndex(series []store.Record, date string) (int, bool) {
	idx := -1
	for i, rec := range series {
		if rec.Date > date {
			break
		}
		idx = i
	}
	return idx, idx >= 0
}

// trendState classifies the moving-average formation.
func trendState(close, ma5, ma20, ma60 float64) string {
	switch {
	case ma5 > ma20 && ma20 > ma60:
		return TrendBullish
	case ma5 < ma20 && ma20 < ma60:
		return TrendBearish
	case close > ma60 && ma5 > ma20:
		return TrendRebound
	default:
		return TrendConsolidation
	}
}

// crossState labels a fast/slow line pair.
func crossState(fast, slow float64) string {
	if fast > slow {
		return CrossGolden
	}
	return CrossDeath
}

// trajectory renders the last closes as an arrow-joined sequence for
// human and advisory context.
func trajectory(closes []float64) string {
	start := len(closes) - trajectoryLen
	if start < 0 {
		start = 0
	}

	parts := make([]string, 0, trajectoryLen)
	for _, c := range closes[start:] {
		parts = append(parts, strconv.FormatFloat(round2(c), 'f', -1, 64))
	}
	return strings.Join(parts, "->")
}

// YearLineLabel renders the year-line state with its distance, e.g.
// "above year line(3.2%)".
func (s *Snapshot) YearLineLabel() string {
	if s.YearLineState == YearLineNoData {
		return YearLineNoData
	}
	return fmt.Sprintf("%s(%.1f%%)", s.YearLineState, s.YearLineDist)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
