package indicator

import (
	"math"

	"github.com/newthinker/structura/internal/core"
)

// HurstWindow is the number of closes the rescaled-range statistic uses.
const HurstWindow = 200

// Regime classifies the Hurst exponent.
type Regime string

const (
	RegimeUnknown       Regime = "unknown"
	RegimeTrending      Regime = "trending"
	RegimeMeanReverting Regime = "mean_reverting"
	RegimeRandom        Regime = "random_walk"
)

// HurstResult is the regime classifier output.
type HurstResult struct {
	Exponent float64 `json:"exponent"`
	Regime   Regime  `json:"regime"`
}

// Hurst estimates the Hurst exponent from the rescaled range of the last
// HurstWindow-1 log returns. Fewer than HurstWindow bars yield an unknown
// regime; a flat series is classified as a random walk at 0.5.
func Hurst(bars []core.Bar) HurstResult {
	if len(bars) < HurstWindow {
		return HurstResult{Regime: RegimeUnknown}
	}

	closes := core.Closes(bars[len(bars)-HurstWindow:])
	logs := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return HurstResult{Exponent: 0.5, Regime: RegimeRandom}
		}
		logs = append(logs, math.Log(closes[i]/closes[i-1]))
	}

	var mean float64
	for _, v := range logs {
		mean += v
	}
	mean /= float64(len(logs))

	var variance, cum float64
	maxCum, minCum := math.Inf(-1), math.Inf(1)
	for _, v := range logs {
		d := v - mean
		variance += d * d
		cum += d
		maxCum = math.Max(maxCum, cum)
		minCum = math.Min(minCum, cum)
	}
	std := math.Sqrt(variance / float64(len(logs)))
	if std == 0 {
		return HurstResult{Exponent: 0.5, Regime: RegimeRandom}
	}

	rs := (maxCum - minCum) / std
	h := math.Log(rs) / math.Log(float64(len(logs)))
	if math.IsNaN(h) || math.IsInf(h, 0) {
		h = 0.01
	}
	h = math.Min(0.99, math.Max(0.01, h))

	return HurstResult{Exponent: h, Regime: classify(h)}
}

func classify(h float64) Regime {
	switch {
	case h > 0.55:
		return RegimeTrending
	case h < 0.45:
		return RegimeMeanReverting
	default:
		return RegimeRandom
	}
}
