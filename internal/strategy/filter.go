package strategy

import (
	"strings"

	"github.com/stockhunter/stockhunter/internal/feature"
)

// Match reasons, recorded in this precedence order.
const (
	ReasonAboveMonthlyLine = "above monthly line"
	ReasonMACDGoldenCross  = "MACD golden cross"
	ReasonVolumeSurge      = "volume surge"
	ReasonWatchlist        = "watchlist observation"
)

// surgeRatio is the volume ratio above which a surge counts as a
// match reason. Looser than the feature engine's display label.
const surgeRatio = 1.5

// Verdict is the filter decision for one symbol snapshot.
type Verdict struct {
	// Matched reports whether the inclusion rule itself fired.
	Matched bool
	// Retained reports whether the symbol stays in the result set.
	// Watchlist symbols are retained even when unmatched.
	Retained bool
	Reasons  []string
}

// Reason renders the ordered reasons as a single cell value.
func (v Verdict) Reason() string {
	return strings.Join(v.Reasons, ",")
}

// Evaluate applies the inclusion rule to a snapshot. The rule is
// close above the 20-day line, or a golden cross on MACD or KDJ.
func Evaluate(snap *feature.Snapshot, watchlisted bool) Verdict {
	aboveMonthly := snap.Close > snap.MA20
	macdGolden := snap.MACDState == feature.CrossGolden
	kdjGolden := snap.KDJState == feature.CrossGolden

	v := Verdict{Matched: aboveMonthly || macdGolden || kdjGolden}
	v.Retained = v.Matched || watchlisted
	if !v.Retained {
		return v
	}

	if aboveMonthly {
		v.Reasons = append(v.Reasons, ReasonAboveMonthlyLine)
	}
	if macdGolden {
		v.Reasons = append(v.Reasons, ReasonMACDGoldenCross)
	}
	if snap.VolumeRatio > surgeRatio {
		v.Reasons = append(v.Reasons, ReasonVolumeSurge)
	}
	if len(v.Reasons) == 0 {
		v.Reasons = append(v.Reasons, ReasonWatchlist)
	}
	return v
}
