package indicator

import "github.com/newthinker/structura/internal/core"

// ATRPeriod is the lookback used by zone and strategy stop placement.
const ATRPeriod = 14

// ATR returns, aligned to bar index, the simple mean of the last period
// true ranges. Indices below period are zero so callers can fall back to
// the bar's own range.
func ATR(bars []core.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if period <= 0 || len(bars) <= period {
		return out
	}

	tr := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		tr[i] = bars[i].TrueRange(bars[i-1].Close)
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(bars); i++ {
		sum += tr[i] - tr[i-period]
		out[i] = sum / float64(period)
	}
	return out
}

// ATRAt returns atr[i], or the bar's range when no ATR is available.
func ATRAt(atr []float64, bars []core.Bar, i int) float64 {
	if i < len(atr) && atr[i] != 0 {
		return atr[i]
	}
	return bars[i].Range()
}
