// Package analysis is the single recompute entry point: one call turns a
// bar window and a configuration into every derived output.
package analysis

import (
	"context"

	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/indicator"
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

// Config holds the plain values a pass depends on.
type Config struct {
	Symbol            string
	Interval          string
	Zones             zone.Params
	Lines             trendline.Params
	Channel           indicator.ChannelParams
	Strategy          string
	UseVolumeAnalysis bool
	PnL               backtest.PnLConfig
}

// Result is everything derived from one bar window. It shares nothing with
// the input bars or with other results.
type Result struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Bars     int    `json:"bars"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`

	Zones   []zone.Zone           `json:"zones"`
	Lines   []trendline.Line      `json:"lines"`
	Hurst   indicator.HurstResult `json:"hurst"`
	Channel *indicator.Channel    `json:"channel,omitempty"`

	Strategy string           `json:"strategy,omitempty"`
	Setups   []strategy.Setup `json:"setups"`
	Report   backtest.Report  `json:"report"`
}

// ActiveZones returns the zones still unmitigated at the end of the window.
func (r *Result) ActiveZones() []zone.Zone {
	var out []zone.Zone
	for _, z := range r.Zones {
		if !z.IsMitigated() {
			out = append(out, z)
		}
	}
	return out
}

// ActiveLines returns the lines not yet broken.
func (r *Result) ActiveLines() []trendline.Line {
	var out []trendline.Line
	for _, l := range r.Lines {
		if !l.IsBroken() {
			out = append(out, l)
		}
	}
	return out
}

// Analyzer runs passes against a strategy registry.
type Analyzer struct {
	engine *strategy.Engine
}

// NewAnalyzer creates an analyzer. A nil engine disables the strategy step.
func NewAnalyzer(engine *strategy.Engine) *Analyzer {
	return &Analyzer{engine: engine}
}

// Recompute runs a full pass. It never fails for thin data, returning
// empty structure instead; the only error is an unknown strategy name.
func (a *Analyzer) Recompute(ctx context.Context, bars []core.Bar, cfg Config) (*Result, error) {
	res := &Result{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Bars:     len(bars),
		Strategy: cfg.Strategy,
		Zones:    []zone.Zone{},
		Lines:    []trendline.Line{},
		Setups:   []strategy.Setup{},
	}
	if len(bars) > 0 {
		res.Start = bars[0].Time
		res.End = bars[len(bars)-1].Time
	}

	actx := &strategy.AnalysisContext{
		Symbol:            cfg.Symbol,
		Interval:          cfg.Interval,
		Bars:              bars,
		ZoneParams:        cfg.Zones,
		LineParams:        cfg.Lines,
		UseVolumeAnalysis: cfg.UseVolumeAnalysis,
	}
	actx.Prepare()

	res.Zones = append(res.Zones, actx.Zones.Zones...)
	res.Lines = append(res.Lines, actx.Lines...)
	res.Hurst = indicator.Hurst(bars)
	res.Channel = indicator.RegressionChannel(bars, cfg.Channel)

	if cfg.Strategy != "" && a.engine != nil {
		setups, err := a.engine.Run(ctx, cfg.Strategy, actx)
		if err != nil {
			return nil, err
		}
		res.Setups = append(res.Setups, setups...)
	}
	res.Report = backtest.Aggregate(strategy.Trades(res.Setups), bars, cfg.PnL)
	return res, nil
}

// CountZones tallies zones by label and status.
func CountZones(zones []zone.Zone) map[zone.Label]map[zone.Status]int {
	out := map[zone.Label]map[zone.Status]int{
		zone.LabelFVG: {zone.StatusActive: 0, zone.StatusMitigated: 0},
		zone.LabelOB:  {zone.StatusActive: 0, zone.StatusMitigated: 0},
	}
	for _, z := range zones {
		out[z.Label][z.Status]++
	}
	return out
}

// StrategyNames returns the registered names in order, or nil without an
// engine.
func (a *Analyzer) StrategyNames() []string {
	if a.engine == nil {
		return nil
	}
	return a.engine.Names()
}
