package strategy

import (
	"github.com/stockhunter/stockhunter/internal/store"
)

// maxGainWindow is how many future rows the max-gain scan covers.
const maxGainWindow = 30

// Horizon is one forward-return figure. Known is false when the
// series does not yet extend far enough; the value is then
// meaningless and must not be rendered as a real return.
type Horizon struct {
	Value float64
	Known bool
}

// Returns holds the forward outcomes computed from rows strictly
// after the evaluation index.
type Returns struct {
	T5      Horizon // point return 5 rows out
	T10     Horizon // point return 10 rows out
	T30     Horizon // point return 30 rows out
	MaxGain Horizon // best high within the next 30 rows
}

// ForwardReturns evaluates the backtest outcomes at idx. The entry
// price is the close at idx; each horizon is populated only when
// that many future rows exist.
func ForwardReturns(series []store.Record, idx int) Returns {
	var r Returns
	if idx < 0 || idx >= len(series) {
		return r
	}
	entry := series[idx].Close
	if entry <= 0 {
		return r
	}

	r.T5 = pointReturn(series, idx, 5, entry)
	r.T10 = pointReturn(series, idx, 10, entry)
	r.T30 = pointReturn(series, idx, 30, entry)

	end := idx + maxGainWindow
	if end > len(series)-1 {
		end = len(series) - 1
	}
	if end > idx {
		maxHigh := series[idx+1].High
		for i := idx + 2; i <= end; i++ {
			if series[i].High > maxHigh {
				maxHigh = series[i].High
			}
		}
		r.MaxGain = Horizon{Value: (maxHigh - entry) / entry, Known: true}
	}
	return r
}

func pointReturn(series []store.Record, idx, offset int, entry float64) Horizon {
	target := idx + offset
	if target >= len(series) {
		return Horizon{}
	}
	return Horizon{Value: (series[target].Close - entry) / entry, Known: true}
}
