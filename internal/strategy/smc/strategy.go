// Package smc turns every accepted fair value gap into a retracement
// trade idea at the gap edge.
package smc

import (
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trade"
	"github.com/newthinker/structura/internal/zone"
)

// Name is the registry name of the strategy.
const Name = "smc"

// SMC implements strategy.Strategy over the zone detector's trade ideas.
type SMC struct{}

// New creates the SMC strategy.
func New() *SMC {
	return &SMC{}
}

func (s *SMC) Name() string {
	return Name
}

func (s *SMC) Description() string {
	return "Fair value gap retracement with stop beyond the gap origin"
}

// Run detects zones with trade ideas enabled and attaches the gap and its
// order block to each idea.
func (s *SMC) Run(ctx *strategy.AnalysisContext) ([]strategy.Setup, error) {
	p := ctx.ZoneParams
	p.SkipTrades = false
	res := zone.Analyze(ctx.Bars, p)

	setups := make([]strategy.Setup, 0, len(res.Trades))
	for _, t := range res.Trades {
		st := strategy.Setup{Trade: t}

		side := zone.Bull
		if t.Side == trade.Short {
			side = zone.Bear
		}
		for _, gap := range res.FVGs(side) {
			if gap.Index != t.SignalIndex {
				continue
			}
			st.Gap = &gap
			st.Score = gap.Score
			if ob, ok := res.ByID(gap.OrderBlockID); ok {
				st.OrderBlock = &ob
			}
			break
		}
		setups = append(setups, st)
	}
	return setups, nil
}
