package liquidity

import (
	"math"
	"sort"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/indicator"
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trade"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

const (
	lookaheadBars     = 100
	touchToleranceBar = 5
	clusterPct        = 0.01
	maxGapDistance    = 10
	closeStopATR      = 1.0
	limitStopATR      = 1.1
	volumePeriod      = 20
	minVolumeScore    = 2
)

// Entry is a filled trap entry before exit management.
type Entry struct {
	Side       trade.Side
	Price      float64
	Stop       float64
	Index      int
	BreakIndex int
	OrderBlock zone.Zone
	Gap        zone.Zone
	Line       trendline.Line
	Signals    *strategy.VolumeSignals
}

// Risk is the entry-to-stop distance.
func (e Entry) Risk() float64 {
	return math.Abs(e.Price - e.Stop)
}

// Score ranks setups by line duration plus ten points per volume signal.
func (e Entry) Score() float64 {
	s := e.Line.DurationHours
	if e.Signals != nil {
		s += float64(e.Signals.Score * 10)
	}
	return s
}

type finder struct {
	bars      []core.Bar
	atr       []float64
	priorVol  []float64
	useVolume bool
	atrEntry  bool
}

// FindEntries walks the broken lines of ctx and returns one entry per
// order block that traps price at a line touch. ctx is prepared if needed.
func FindEntries(ctx *strategy.AnalysisContext, atrEntry bool) []Entry {
	if len(ctx.Bars) == 0 {
		return nil
	}
	ctx.Prepare()

	f := finder{
		bars:      ctx.Bars,
		atr:       indicator.ATR(ctx.Bars, indicator.ATRPeriod),
		useVolume: ctx.UseVolumeAnalysis,
		atrEntry:  atrEntry,
	}
	if f.useVolume {
		f.priorVol = indicator.PriorVolumeAverage(ctx.Bars, volumePeriod)
	}

	var entries []Entry
	processed := make(map[string]bool)
	for _, line := range ctx.Lines {
		if !line.IsBroken() {
			continue
		}
		b := line.BreakIndex
		if b <= 0 || b >= len(f.bars) {
			continue
		}

		short := line.Type == trendline.Down
		obSide, tradeSide := zone.Bull, trade.Long
		if short {
			obSide, tradeSide = zone.Bear, trade.Short
		}
		breakTime := f.bars[b].Time

		var valid []zone.Zone
		for _, ob := range ctx.Zones.OrderBlocks(obSide) {
			if !nearTouch(ob.Index, line.TouchIndices) {
				continue
			}
			if ob.Index >= b || ob.MitigatedBefore(breakTime) {
				continue
			}
			valid = append(valid, ob)
		}
		if len(valid) == 0 {
			continue
		}

		for _, ob := range cluster(valid, short) {
			if processed[ob.ID] {
				continue
			}
			gap, ok := nearestGap(ctx.Zones.FVGs(obSide), ob.Index, b, breakTime)
			if !ok {
				continue
			}

			e, ok := f.trigger(ob, b, tradeSide)
			if !ok {
				continue
			}
			if f.useVolume {
				sig := f.volumeSignals(e.Index, short)
				if sig.Score < minVolumeScore {
					continue
				}
				e.Signals = &sig
			}

			processed[ob.ID] = true
			if e.Risk() <= 0 {
				continue
			}
			e.BreakIndex = b
			e.OrderBlock = ob
			e.Gap = gap
			e.Line = line
			entries = append(entries, e)
		}
	}
	return entries
}

func nearTouch(idx int, touches []int) bool {
	for _, t := range touches {
		d := idx - t
		if d < 0 {
			d = -d
		}
		if d <= touchToleranceBar {
			return true
		}
	}
	return false
}

// cluster groups blocks whose midpoints sit within 1% of the group's first
// midpoint and keeps the most extreme of each: the highest top for shorts,
// the lowest bottom for longs.
func cluster(obs []zone.Zone, short bool) []zone.Zone {
	if len(obs) <= 1 {
		return obs
	}
	sorted := append([]zone.Zone(nil), obs...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Mid() < sorted[b].Mid() })

	var out []zone.Zone
	for i := 0; i < len(sorted); {
		first := sorted[i].Mid()
		best := sorted[i]
		j := i + 1
		for ; j < len(sorted); j++ {
			if math.Abs(sorted[j].Mid()-first)/first > clusterPct {
				break
			}
			if short && sorted[j].Top > best.Top {
				best = sorted[j]
			}
			if !short && sorted[j].Bottom < best.Bottom {
				best = sorted[j]
			}
		}
		out = append(out, best)
		i = j
	}
	return out
}

func nearestGap(gaps []zone.Zone, obIdx, breakIdx int, breakTime int64) (zone.Zone, bool) {
	var best zone.Zone
	bestDist := -1
	for _, g := range gaps {
		if g.Index >= breakIdx || g.MitigatedBefore(breakTime) {
			continue
		}
		d := g.Index - obIdx
		if d < 0 {
			d = -d
		}
		if d > maxGapDistance {
			continue
		}
		if bestDist == -1 || d < bestDist {
			best, bestDist = g, d
		}
	}
	return best, bestDist != -1
}

// trigger searches the bars after the break for the entry fill.
func (f *finder) trigger(ob zone.Zone, b int, side trade.Side) (Entry, bool) {
	top, bottom := ob.Upper(), ob.Lower()
	end := min(len(f.bars), b+lookaheadBars)
	short := side == trade.Short

	if f.atrEntry {
		atr := indicator.ATRAt(f.atr, f.bars, b)
		limit := bottom - atr
		if short {
			limit = top + atr
		}
		for k := b + 1; k < end; k++ {
			bar := f.bars[k]
			if (short && bar.High >= limit) || (!short && bar.Low <= limit) {
				stopDist := indicator.ATRAt(f.atr, f.bars, k) * limitStopATR
				stop := limit - stopDist
				if short {
					stop = limit + stopDist
				}
				return Entry{Side: side, Price: limit, Stop: stop, Index: k}, true
			}
		}
		return Entry{}, false
	}

	for k := b + 1; k < end; k++ {
		bar := f.bars[k]
		if !bar.Touches(ob.Top, ob.Bottom) {
			continue
		}
		// the first touch must close back on the trap side of the block
		if (short && bar.Close > top) || (!short && bar.Close < bottom) {
			return Entry{}, false
		}
		stopDist := indicator.ATRAt(f.atr, f.bars, k) * closeStopATR
		stop := bottom - stopDist
		if short {
			stop = top + stopDist
		}
		return Entry{Side: side, Price: bar.Close, Stop: stop, Index: k}, true
	}
	return Entry{}, false
}

func (f *finder) volumeSignals(i int, short bool) strategy.VolumeSignals {
	bar := f.bars[i]
	avg := f.priorVol[i]
	if avg == 0 {
		avg = 1
	}

	rng := bar.Range()
	var bodyRatio, wickRatio float64
	if rng > 0 {
		bodyRatio = math.Abs(bar.Close-bar.Open) / rng
		wick := math.Min(bar.Open, bar.Close) - bar.Low
		if short {
			wick = bar.High - math.Max(bar.Open, bar.Close)
		}
		wickRatio = wick / rng
	}
	volRatio := bar.Volume / avg

	var s strategy.VolumeSignals
	if volRatio > 1.2 && bodyRatio < 0.4 {
		s.Absorption = true
		s.Score += 2
	}
	if wickRatio > 0.5 {
		s.Rejection = true
		s.Score += 2
	}
	if volRatio > 1.5 {
		s.HighVolume = true
		s.Score++
	}
	if s.Absorption && s.Rejection {
		s.Score += 2
	}
	return s
}
