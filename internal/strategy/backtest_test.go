package strategy

import (
	"math"
	"testing"

	"github.com/stockhunter/stockhunter/internal/store"
)

func flatSeries(n int, close, high float64) []store.Record {
	recs := make([]store.Record, n)
	for i := range recs {
		recs[i] = store.Record{Close: close, High: high}
	}
	return recs
}

func TestForwardReturnsAllHorizons(t *testing.T) {
	series := flatSeries(41, 10, 10.5)
	series[15].Close = 11 // T+5 from idx 10
	series[20].Close = 12 // T+10
	series[40].Close = 8  // T+30
	series[25].High = 15  // window max

	r := ForwardReturns(series, 10)

	checks := []struct {
		name string
		got  Horizon
		want float64
	}{
		{"T5", r.T5, 0.1},
		{"T10", r.T10, 0.2},
		{"T30", r.T30, -0.2},
		{"MaxGain", r.MaxGain, 0.5},
	}
	for _, c := range checks {
		if !c.got.Known {
			t.Errorf("%s not known", c.name)
			continue
		}
		if math.Abs(c.got.Value-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got.Value, c.want)
		}
	}
}

func TestForwardReturnsShortHorizon(t *testing.T) {
	// Exactly 10 future rows: T+10 is determinable, T+30 is not.
	series := flatSeries(21, 10, 10.2)
	series[20].Close = 10.5
	series[20].High = 10.5

	r := ForwardReturns(series, 10)

	if !r.T5.Known || !r.T10.Known {
		t.Fatalf("T5/T10 should be known: %+v", r)
	}
	if math.Abs(r.T10.Value-0.05) > 1e-9 {
		t.Errorf("T10 = %v, want 0.05", r.T10.Value)
	}
	if r.T30.Known {
		t.Error("T30 must be unknown with only 10 future rows")
	}
	if !r.MaxGain.Known {
		t.Error("max gain covers however many future rows exist")
	}
	if math.Abs(r.MaxGain.Value-0.05) > 1e-9 {
		t.Errorf("MaxGain = %v, want 0.05", r.MaxGain.Value)
	}
}

func TestForwardReturnsNoFutureRows(t *testing.T) {
	series := flatSeries(11, 10, 10.2)

	r := ForwardReturns(series, 10)
	if r.T5.Known || r.T10.Known || r.T30.Known || r.MaxGain.Known {
		t.Errorf("no horizon should be known at the series tail: %+v", r)
	}
}

func TestForwardReturnsBadIndex(t *testing.T) {
	series := flatSeries(5, 10, 10.2)
	for _, idx := range []int{-1, 5} {
		r := ForwardReturns(series, idx)
		if r.T5.Known || r.MaxGain.Known {
			t.Errorf("idx %d: expected nothing known", idx)
		}
	}
}
