package indicator

import (
	"math"

	"github.com/newthinker/structura/internal/core"
)

// ChannelProjection is how many bars past the last one a channel extends.
const ChannelProjection = 20

// DefaultIntervalSeconds is used when the bar spacing cannot be inferred.
const DefaultIntervalSeconds = 900

// ChannelParams configures the regression channel.
type ChannelParams struct {
	Period  int
	StdMult float64
	// IntervalSeconds is the bar spacing used to project the channel end
	// time. Zero infers it from the last two bars.
	IntervalSeconds int64
}

// Channel is a least-squares regression channel over the last Period closes.
// Index 1 is the first bar of the window, index 2 the projected end.
type Channel struct {
	T1     int64   `json:"t1"`
	T2     int64   `json:"t2"`
	Mid1   float64 `json:"mid1"`
	Mid2   float64 `json:"mid2"`
	Upper1 float64 `json:"upper1"`
	Upper2 float64 `json:"upper2"`
	Lower1 float64 `json:"lower1"`
	Lower2 float64 `json:"lower2"`
	Slope  float64 `json:"slope"`
	StdDev float64 `json:"std_dev"`
}

// RegressionChannel fits close = slope*x + intercept over the window and
// offsets it by StdMult residual standard deviations. Returns nil when
// there are fewer than Period bars or Period < 2.
func RegressionChannel(bars []core.Bar, p ChannelParams) *Channel {
	if p.Period < 2 || len(bars) < p.Period {
		return nil
	}

	window := bars[len(bars)-p.Period:]
	n := float64(len(window))

	var sumX, sumY, sumXY, sumXX float64
	for i, b := range window {
		x := float64(i)
		sumX += x
		sumY += b.Close
		sumXY += x * b.Close
		sumXX += x * x
	}

	m := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	b := (sumY - m*sumX) / n

	var sse float64
	for i, bar := range window {
		r := bar.Close - (m*float64(i) + b)
		sse += r * r
	}
	std := math.Sqrt(sse / n)

	interval := p.IntervalSeconds
	if interval <= 0 {
		interval = inferInterval(bars)
	}

	start := b
	end := b + m*(n-1+ChannelProjection)
	band := std * p.StdMult

	return &Channel{
		T1:     window[0].Time,
		T2:     bars[len(bars)-1].Time + ChannelProjection*interval,
		Mid1:   start,
		Mid2:   end,
		Upper1: start + band,
		Upper2: end + band,
		Lower1: start - band,
		Lower2: end - band,
		Slope:  m,
		StdDev: std,
	}
}

func inferInterval(bars []core.Bar) int64 {
	if len(bars) >= 2 {
		if d := bars[len(bars)-1].Time - bars[len(bars)-2].Time; d > 0 {
			return d
		}
	}
	return DefaultIntervalSeconds
}
