package strategy

import (
	"reflect"
	"testing"

	"github.com/stockhunter/stockhunter/internal/feature"
)

func snap(close, ma20 float64, macdState, kdjState string, volRatio float64) *feature.Snapshot {
	return &feature.Snapshot{
		Close:       close,
		MA20:        ma20,
		MACDState:   macdState,
		KDJState:    kdjState,
		VolumeRatio: volRatio,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		snap        *feature.Snapshot
		watchlisted bool
		retained    bool
		reasons     []string
	}{
		{
			name:     "above monthly line",
			snap:     snap(11, 10, feature.CrossDeath, feature.CrossDeath, 1.0),
			retained: true,
			reasons:  []string{ReasonAboveMonthlyLine},
		},
		{
			name:     "macd golden only",
			snap:     snap(9, 10, feature.CrossGolden, feature.CrossDeath, 1.0),
			retained: true,
			reasons:  []string{ReasonMACDGoldenCross},
		},
		{
			name:     "kdj golden retains without its own reason",
			snap:     snap(9, 10, feature.CrossDeath, feature.CrossGolden, 2.0),
			retained: true,
			reasons:  []string{ReasonVolumeSurge},
		},
		{
			name:     "all bearish non-watchlist dropped",
			snap:     snap(9, 10, feature.CrossDeath, feature.CrossDeath, 2.0),
			retained: false,
		},
		{
			name:        "all bearish watchlist retained",
			snap:        snap(9, 10, feature.CrossDeath, feature.CrossDeath, 1.0),
			watchlisted: true,
			retained:    true,
			reasons:     []string{ReasonWatchlist},
		},
		{
			name:     "reason precedence",
			snap:     snap(11, 10, feature.CrossGolden, feature.CrossGolden, 1.6),
			retained: true,
			reasons:  []string{ReasonAboveMonthlyLine, ReasonMACDGoldenCross, ReasonVolumeSurge},
		},
		{
			name:     "surge at exactly 1.5 does not count",
			snap:     snap(11, 10, feature.CrossDeath, feature.CrossDeath, 1.5),
			retained: true,
			reasons:  []string{ReasonAboveMonthlyLine},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.snap, tt.watchlisted)
			if v.Retained != tt.retained {
				t.Fatalf("retained = %v, want %v", v.Retained, tt.retained)
			}
			if !reflect.DeepEqual(v.Reasons, tt.reasons) {
				t.Errorf("reasons = %v, want %v", v.Reasons, tt.reasons)
			}
		})
	}
}

func TestVerdictReason(t *testing.T) {
	v := Verdict{Reasons: []string{ReasonAboveMonthlyLine, ReasonVolumeSurge}}
	want := "above monthly line,volume surge"
	if got := v.Reason(); got != want {
		t.Errorf("Reason() = %q, want %q", got, want)
	}
	if (Verdict{}).Reason() != "" {
		t.Error("empty verdict should render an empty reason")
	}
}
