package core

import "math"

// Bar is one OHLCV candle. Time is the open time in unix seconds.
type Bar struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	BuyVolume  float64 `json:"buy_volume"`
	SellVolume float64 `json:"sell_volume"`
	Delta      float64 `json:"delta"`
}

// NewBar builds a bar and derives the sell side and delta from the
// taker-buy volume.
func NewBar(t int64, open, high, low, close, volume, buyVolume float64) Bar {
	sell := volume - buyVolume
	return Bar{
		Time:       t,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		Volume:     volume,
		BuyVolume:  buyVolume,
		SellVolume: sell,
		Delta:      buyVolume - sell,
	}
}

// IsBullish reports a close above the open.
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish reports a close below the open.
func (b Bar) IsBearish() bool {
	return b.Close < b.Open
}

// Range returns high minus low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Touches reports whether the bar's [low, high] range overlaps the band
// between a and b. The band bounds may be given in either order.
func (b Bar) Touches(a, c float64) bool {
	top := math.Max(a, c)
	bottom := math.Min(a, c)
	return b.Low <= top && b.High >= bottom
}

// TrueRange is the Wilder true range against the previous close.
func (b Bar) TrueRange(prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// Closes extracts closing prices.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
