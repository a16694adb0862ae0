// Package liquidity implements the trendline liquidity trap: order blocks
// sitting on a trend line's touches are faded after the line breaks.
package liquidity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trade"
)

// Trap is a strategy.Strategy running one mode.
type Trap struct {
	mode     Mode
	settings Settings
}

// New creates the trap strategy for mode.
func New(mode Mode) (*Trap, error) {
	s, err := mode.Settings()
	if err != nil {
		return nil, err
	}
	return &Trap{mode: mode, settings: s}, nil
}

// All returns one strategy per mode.
func All() []*Trap {
	out := make([]*Trap, 0, len(Modes()))
	for _, m := range Modes() {
		t, _ := New(m)
		out = append(out, t)
	}
	return out
}

func (t *Trap) Name() string {
	return t.mode.StrategyName()
}

func (t *Trap) Description() string {
	return fmt.Sprintf("%s [%s]", t.settings.Label, t.settings.Ratio)
}

// Mode returns the configured mode.
func (t *Trap) Mode() Mode {
	return t.mode
}

// Run finds the mode's entries and manages each to its outcome. Setups
// are ordered by entry time, newest first.
func (t *Trap) Run(ctx *strategy.AnalysisContext) ([]strategy.Setup, error) {
	entries := FindEntries(ctx, t.settings.ATREntry)
	setups := make([]strategy.Setup, 0, len(entries))
	for _, e := range entries {
		setups = append(setups, t.manage(ctx.Bars, e))
	}
	sort.SliceStable(setups, func(a, b int) bool {
		return setups[a].EntryTime > setups[b].EntryTime
	})
	return setups, nil
}

func (t *Trap) manage(bars []core.Bar, e Entry) strategy.Setup {
	id := fmt.Sprintf("trap-%s-%s-%s", t.mode, e.Line.Type, e.OrderBlock.ID)
	tr := Simulate(bars, e, id, t.settings.FinalTarget(), t.settings.management())
	tr.Description = t.describe(e.Signals)

	ob, gap, line := e.OrderBlock, e.Gap, e.Line
	return strategy.Setup{
		Trade:      tr,
		OrderBlock: &ob,
		Gap:        &gap,
		Line:       &line,
		Signals:    e.Signals,
		Score:      e.Score(),
	}
}

func (t *Trap) describe(sig *strategy.VolumeSignals) string {
	var b strings.Builder
	b.WriteString(t.settings.Label)
	if p := t.settings.Partial; p != nil {
		fmt.Fprintf(&b, " [%g:1 + %g:1]", p.FirstR, p.SecondR)
	} else {
		fmt.Fprintf(&b, " [%g:1]", t.settings.RiskReward)
	}
	if sig != nil {
		if sig.Absorption {
			b.WriteString(" absorption")
		}
		if sig.Rejection {
			b.WriteString(" rejection")
		}
		if sig.HighVolume {
			b.WriteString(" high-volume")
		}
	}
	return b.String()
}

// Simulate opens e at its fill bar with a target rr risk units away and
// manages it from the next bar. The signal is the line break.
func Simulate(bars []core.Bar, e Entry, id string, rr float64, m trade.Management) trade.Trade {
	target := trade.TargetFor(e.Side, e.Price, e.Stop, rr)
	tr := trade.New(id, e.Side, e.Price, e.Stop, target, bars[e.BreakIndex].Time, e.BreakIndex).
		Fill(bars[e.Index].Time, e.Index)
	m.TargetR = rr
	return trade.Simulate(tr, bars, e.Index+1, m)
}
