package feature

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSMAAt(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	got, ok := smaAt(values, 5, 4)
	if !ok {
		t.Fatal("expected enough data for period 5")
	}
	if got != 3 {
		t.Errorf("smaAt = %v, want 3", got)
	}

	got, ok = smaAt(values, 3, 4)
	if !ok || got != 4 {
		t.Errorf("smaAt period 3 = %v ok=%v, want 4 true", got, ok)
	}

	if _, ok := smaAt(values, 6, 4); ok {
		t.Error("expected ok=false when period exceeds history")
	}
	if _, ok := smaAt(values, 3, 1); ok {
		t.Error("expected ok=false when idx+1 < period")
	}
}

func TestEMASeriesConstant(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 10
	}

	ema := emaSeries(values, 12)
	for i, v := range ema {
		if v != 10 {
			t.Fatalf("ema[%d] = %v, want 10 for constant input", i, v)
		}
	}
}

func TestEMASeriesConverges(t *testing.T) {
	// A step from 1 to 2 should pull the EMA toward 2 monotonically.
	values := make([]float64, 60)
	for i := range values {
		if i < 10 {
			values[i] = 1
		} else {
			values[i] = 2
		}
	}

	ema := emaSeries(values, 12)
	last := ema[len(ema)-1]
	if last <= 1.9 || last > 2 {
		t.Errorf("ema tail = %v, want close to 2", last)
	}
	for i := 11; i < len(ema); i++ {
		if ema[i] < ema[i-1] {
			t.Fatalf("ema decreased at %d: %v -> %v", i, ema[i-1], ema[i])
		}
	}
}

func TestMACDAtNeedsHistory(t *testing.T) {
	closes := make([]float64, 33)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	if _, _, ok := macdAt(closes); ok {
		t.Error("expected ok=false below the minimum window")
	}

	closes = append(closes, 34)
	if _, _, ok := macdAt(closes); !ok {
		t.Error("expected ok=true at the minimum window")
	}
}

func TestMACDAtUptrend(t *testing.T) {
	// In a steady uptrend the fast EMA stays above the slow one.
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 10 + float64(i)*0.5
	}

	dif, dea, ok := macdAt(closes)
	if !ok {
		t.Fatal("expected enough data")
	}
	if dif <= 0 {
		t.Errorf("dif = %v, want > 0 in an uptrend", dif)
	}
	if dea <= 0 {
		t.Errorf("dea = %v, want > 0 in an uptrend", dea)
	}
}

func TestKDJAtBounds(t *testing.T) {
	highs := make([]float64, 40)
	lows := make([]float64, 40)
	closes := make([]float64, 40)
	for i := range highs {
		base := 10 + float64(i%7)
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
	}

	k, d, ok := kdjAt(highs, lows, closes)
	if !ok {
		t.Fatal("expected enough data")
	}
	if k < 0 || k > 100 || d < 0 || d > 100 {
		t.Errorf("k=%v d=%v, want both within [0,100]", k, d)
	}
}

func TestKDJAtFlatSeries(t *testing.T) {
	highs := make([]float64, 20)
	lows := make([]float64, 20)
	closes := make([]float64, 20)
	for i := range highs {
		highs[i] = 10
		lows[i] = 10
		closes[i] = 10
	}

	k, d, ok := kdjAt(highs, lows, closes)
	if !ok {
		t.Fatal("expected enough data")
	}
	if !almostEqual(k, 50, 1e-9) || !almostEqual(d, 50, 1e-9) {
		t.Errorf("k=%v d=%v, want 50 for a flat range", k, d)
	}
}

func TestRSIAtExtremes(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(i + 1)
	}
	rsi, ok := rsiAt(up)
	if !ok {
		t.Fatal("expected enough data")
	}
	if rsi != 100 {
		t.Errorf("rsi = %v, want 100 for all-gain series", rsi)
	}

	down := make([]float64, 30)
	for i := range down {
		down[i] = float64(100 - i)
	}
	rsi, ok = rsiAt(down)
	if !ok {
		t.Fatal("expected enough data")
	}
	if rsi > 1e-9 {
		t.Errorf("rsi = %v, want 0 for all-loss series", rsi)
	}
}

func TestRSIAtNeedsHistory(t *testing.T) {
	closes := make([]float64, rsiPeriod)
	if _, ok := rsiAt(closes); ok {
		t.Error("expected ok=false with fewer than period+1 closes")
	}
}
