package strategy

import (
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/trade"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

// AnalysisContext provides bars and detection settings to strategies.
// Zones and Lines may be filled by Prepare so several strategies can share
// one structure pass over the same bars.
type AnalysisContext struct {
	Symbol            string
	Interval          string
	Bars              []core.Bar
	ZoneParams        zone.Params
	LineParams        trendline.Params
	UseVolumeAnalysis bool

	Zones *zone.Result
	Lines []trendline.Line
}

// Prepare computes zones and lines if they are not already present.
// Zones are detected without trade ideas.
func (c *AnalysisContext) Prepare() {
	if c.Zones == nil {
		p := c.ZoneParams
		p.SkipTrades = true
		res := zone.Analyze(c.Bars, p)
		c.Zones = &res
	}
	if c.Lines == nil {
		c.Lines = trendline.Calculate(c.Bars, c.LineParams)
	}
}

// VolumeSignals describes the entry candle's order-flow characteristics.
type VolumeSignals struct {
	Absorption bool `json:"absorption"`
	Rejection  bool `json:"rejection"`
	HighVolume bool `json:"high_volume"`
	Score      int  `json:"score"`
}

// Setup is a simulated trade plus the structure that produced it. The
// structural fields are nil for strategies that do not use them.
type Setup struct {
	trade.Trade

	OrderBlock *zone.Zone      `json:"order_block,omitempty"`
	Gap        *zone.Zone      `json:"gap,omitempty"`
	Line       *trendline.Line `json:"line,omitempty"`
	Signals    *VolumeSignals  `json:"signals,omitempty"`
	Score      float64         `json:"score"`
}

// Trades extracts the trade records of setups.
func Trades(setups []Setup) []trade.Trade {
	out := make([]trade.Trade, len(setups))
	for i, s := range setups {
		out[i] = s.Trade
	}
	return out
}

// Strategy turns analysed bars into simulated setups.
type Strategy interface {
	Name() string
	Description() string
	Run(ctx *AnalysisContext) ([]Setup, error)
}
