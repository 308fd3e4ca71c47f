package feature

// Indicator parameters. Fixed here rather than configurable: the
// strategy filter's thresholds are calibrated against these windows.
const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	kdjPeriod = 9
	kdjSmooth = 3

	rsiPeriod = 14
)

// smaAt returns the simple moving average of the period ending at idx.
// ok is false when the window exceeds available history.
func smaAt(values []float64, period, idx int) (float64, bool) {
	if period <= 0 || idx+1 < period || idx >= len(values) {
		return 0, false
	}
	var sum float64
	for i := idx - period + 1; i <= idx; i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// emaSeries computes the exponential moving average over the full
// input, seeded with the first value.
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / float64(period+1)

	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// macdAt computes MACD(12,26,9) at the last index of closes.
// DIF is the fast/slow EMA spread; DEA is the signal EMA of DIF.
// ok is false until enough history exists for a settled signal line.
func macdAt(closes []float64) (dif, dea float64, ok bool) {
	if len(closes) < macdSlow+macdSignal-1 {
		return 0, 0, false
	}

	fast := emaSeries(closes, macdFast)
	slow := emaSeries(closes, macdSlow)

	difs := make([]float64, len(closes))
	for i := range closes {
		difs[i] = fast[i] - slow[i]
	}
	deas := emaSeries(difs, macdSignal)

	last := len(closes) - 1
	return difs[last], deas[last], true
}

// kdjAt computes the KDJ(9,3) K and D lines at the last index. RSV is
// the close's position inside the trailing 9-row high/low range; K and
// D are 1/3-weighted recursive smoothings seeded at 50.
func kdjAt(highs, lows, closes []float64) (k, d float64, ok bool) {
	if len(closes) < kdjPeriod {
		return 0, 0, false
	}

	k, d = 50, 50
	for i := kdjPeriod - 1; i < len(closes); i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i - kdjPeriod + 1; j < i; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}

		rsv := 50.0
		if hh > ll {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}

		k = (float64(kdjSmooth-1)*k + rsv) / float64(kdjSmooth)
		d = (float64(kdjSmooth-1)*d + k) / float64(kdjSmooth)
	}
	return k, d, true
}

// rsiAt computes RSI(14) at the last index using Wilder smoothing.
func rsiAt(closes []float64) (float64, bool) {
	if len(closes) < rsiPeriod+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= rsiPeriod; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(rsiPeriod)
	avgLoss /= float64(rsiPeriod)

	for i := rsiPeriod + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(rsiPeriod-1) + gain) / float64(rsiPeriod)
		avgLoss = (avgLoss*float64(rsiPeriod-1) + loss) / float64(rsiPeriod)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
