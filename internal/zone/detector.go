package zone

import (
	"math"
	"sort"
	"strconv"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/indicator"
	"github.com/newthinker/structura/internal/trade"
)

const (
	// MinBars is the smallest window that is analysed.
	MinBars = 50

	minStartIndex  = 20
	volumePeriod   = 20
	obLookback     = 10
	swingLookback  = 10
	bosLookahead   = 20
	minImpulse     = 0.003
	minGapATR      = 0.2
	minVolumeRatio = 0.5
)

// Params configures a detection pass.
type Params struct {
	// Sensitivity is the minimum gap as a fraction of the close.
	Sensitivity float64
	// HistoryWindow limits the scan to this many trailing bars.
	HistoryWindow int
	// RiskReward sets the take profit of generated trade ideas.
	RiskReward float64
	// SkipTrades suppresses trade idea generation.
	SkipTrades bool
}

// DefaultParams returns the standard detection settings.
func DefaultParams() Params {
	return Params{
		Sensitivity:   0.0001,
		HistoryWindow: 30000,
		RiskReward:    2,
	}
}

// Result holds the zones of one pass ordered by origin time, and the trade
// ideas spawned by accepted gaps.
type Result struct {
	Zones  []Zone        `json:"zones"`
	Trades []trade.Trade `json:"trades"`
}

// FVGs returns the gap zones on the given side.
func (r Result) FVGs(side Side) []Zone {
	return r.filter(LabelFVG, side)
}

// OrderBlocks returns the order-block zones on the given side.
func (r Result) OrderBlocks(side Side) []Zone {
	return r.filter(LabelOB, side)
}

// ByID looks up a zone by identifier.
func (r Result) ByID(id string) (Zone, bool) {
	for _, z := range r.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

func (r Result) filter(label Label, side Side) []Zone {
	var out []Zone
	for _, z := range r.Zones {
		if z.Label == label && z.Side == side {
			out = append(out, z)
		}
	}
	return out
}

type swing struct {
	index int
	price float64
}

type detector struct {
	bars   []core.Bar
	p      Params
	atr    []float64
	avgVol []float64
	highs  []swing
	lows   []swing
	seenOB map[int]bool
	res    Result
}

// Analyze scans bars for gaps and order blocks. Fewer than MinBars bars
// yield an empty result. The pass is a pure function of its inputs.
func Analyze(bars []core.Bar, p Params) Result {
	if len(bars) < MinBars {
		return Result{Zones: []Zone{}, Trades: []trade.Trade{}}
	}
	if p.RiskReward <= 0 {
		p.RiskReward = 2
	}
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = len(bars)
	}

	d := &detector{
		bars:   bars,
		p:      p,
		atr:    indicator.ATR(bars, indicator.ATRPeriod),
		avgVol: indicator.VolumeAverage(bars, volumePeriod),
		seenOB: make(map[int]bool),
		res:    Result{Zones: []Zone{}, Trades: []trade.Trade{}},
	}
	d.findSwings()

	start := max(minStartIndex, len(bars)-p.HistoryWindow)
	for i := max(start, 2); i < len(bars); i++ {
		for _, g := range FindGaps(bars, i) {
			d.accept(i, g)
		}
	}

	sort.SliceStable(d.res.Zones, func(a, b int) bool {
		return d.res.Zones[a].OriginTime < d.res.Zones[b].OriginTime
	})
	return d.res
}

func (d *detector) findSwings() {
	n := len(d.bars)
	for i := swingLookback; i < n-swingLookback; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= swingLookback; j++ {
			if d.bars[i-j].High > d.bars[i].High || d.bars[i+j].High > d.bars[i].High {
				isHigh = false
			}
			if d.bars[i-j].Low < d.bars[i].Low || d.bars[i+j].Low < d.bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			d.highs = append(d.highs, swing{i, d.bars[i].High})
		}
		if isLow {
			d.lows = append(d.lows, swing{i, d.bars[i].Low})
		}
	}
}

func lastBefore(swings []swing, idx int) (swing, bool) {
	for k := len(swings) - 1; k >= 0; k-- {
		if swings[k].index < idx {
			return swings[k], true
		}
	}
	return swing{}, false
}

func (d *detector) volumeAt(i int) float64 {
	if v := d.avgVol[i]; v != 0 {
		return v
	}
	return 1
}

func (d *detector) accept(i int, g Gap) {
	curr, prev1, prev2 := d.bars[i], d.bars[i-1], d.bars[i-2]
	atr := indicator.ATRAt(d.atr, d.bars, i)
	avgVol := d.volumeAt(i)
	gap := g.Size()

	if gap < curr.Close*d.p.Sensitivity || gap < atr*minGapATR {
		return
	}
	impulse := math.Abs((curr.Close - prev2.Close) / prev2.Close)
	if impulse < minImpulse {
		return
	}
	if curr.Volume != 0 && prev1.Volume != 0 && prev2.Volume != 0 {
		if curr.Volume < (prev1.Volume+prev2.Volume)/2*minVolumeRatio {
			return
		}
	}

	fvg := Zone{
		ID:             zoneID(LabelFVG, g.Side, i),
		Label:          LabelFVG,
		Side:           g.Side,
		Top:            g.Top,
		Bottom:         g.Bottom,
		Index:          i,
		OriginTime:     prev1.Time,
		Status:         StatusActive,
		MitigatedIndex: -1,
		GapSize:        gap,
		Impulse:        impulse,
	}
	impulseVol := (prev2.Volume + prev1.Volume + curr.Volume) / 3
	fvg.Score = fvgScore(gap, impulse, atr, impulseVol/avgVol)
	mitigate(&fvg, d.bars, i+1)
	d.res.Zones = append(d.res.Zones, fvg)

	if ob, ok := d.orderBlock(i, g.Side, atr, avgVol); ok {
		d.res.Zones[len(d.res.Zones)-1].OrderBlockID = ob.ID
		d.res.Zones = append(d.res.Zones, ob)
	}

	if !d.p.SkipTrades {
		d.tradeIdea(i, g.Side)
	}
}

// orderBlock finds the nearest opposite-coloured candle before the gap.
// Each candle becomes an order block at most once.
func (d *detector) orderBlock(i int, side Side, atr, avgVol float64) (Zone, bool) {
	idx := -1
	for k := i - 1; k >= max(0, i-obLookback); k-- {
		c := d.bars[k]
		if (side == Bull && c.IsBearish()) || (side == Bear && c.IsBullish()) {
			idx = k
			break
		}
	}
	if idx == -1 || d.seenOB[idx] {
		return Zone{}, false
	}
	d.seenOB[idx] = true

	c := d.bars[idx]
	obATR := d.atr[idx]
	if obATR == 0 {
		obATR = atr
	}
	obVol := d.avgVol[idx]
	if obVol == 0 {
		obVol = avgVol
	}

	score, bos := d.obScore(idx, side, obATR, obVol)
	ob := Zone{
		ID:             zoneID(LabelOB, side, idx),
		Label:          LabelOB,
		Side:           side,
		Top:            c.High,
		Bottom:         c.Low,
		Index:          idx,
		OriginTime:     c.Time,
		Status:         StatusActive,
		MitigatedIndex: -1,
		Score:          score,
		Volume:         c.Volume,
		Size:           c.Range(),
		HasBOS:         bos,
	}
	mitigate(&ob, d.bars, i+1)
	return ob, true
}

func (d *detector) obScore(idx int, side Side, atr, avgVol float64) (float64, bool) {
	c := d.bars[idx]
	var score float64

	volRatio := 1.0
	if avgVol > 0 {
		volRatio = c.Volume / avgVol
	}
	score += tier(volRatio, []float64{2.0, 1.5, 1.2}, []float64{30, 20, 10})

	sizeRatio := 1.0
	if atr > 0 {
		sizeRatio = c.Range() / atr
	}
	score += tier(sizeRatio, []float64{1.5, 1.0, 0.7}, []float64{25, 15, 8})

	bos := d.breakOfStructure(idx, side)
	if bos {
		score += 35
	}

	if idx > 0 {
		prev := d.bars[idx-1]
		if c.High > prev.High && c.Low < prev.Low {
			score += 15
		}
	}

	mid := (c.High + c.Low) / 2
	if mid > 0 {
		round := math.Round(mid/1000) * 1000
		dist := math.Abs(mid-round) / mid
		switch {
		case dist < 0.005:
			score += 20
		case dist < 0.01:
			score += 10
		}
	}

	return score, bos
}

// breakOfStructure reports whether price exceeded the last swing extreme
// before idx within the following bars.
func (d *detector) breakOfStructure(idx int, side Side) bool {
	end := min(idx+bosLookahead, len(d.bars))
	if side == Bull {
		sw, ok := lastBefore(d.highs, idx)
		if !ok {
			return false
		}
		for k := idx + 1; k < end; k++ {
			if d.bars[k].High > sw.price {
				return true
			}
		}
		return false
	}

	sw, ok := lastBefore(d.lows, idx)
	if !ok {
		return false
	}
	for k := idx + 1; k < end; k++ {
		if d.bars[k].Low < sw.price {
			return true
		}
	}
	return false
}

func (d *detector) tradeIdea(i int, side Side) {
	curr := d.bars[i]
	var t trade.Trade
	id := "smc-" + strconv.Itoa(i)
	if side == Bull {
		stop := math.Min(d.bars[i-1].Low, d.bars[i-2].Low)
		t = trade.New(id, trade.Long, curr.Low, stop, trade.TargetFor(trade.Long, curr.Low, stop, d.p.RiskReward), curr.Time, i)
	} else {
		stop := math.Max(d.bars[i-1].High, d.bars[i-2].High)
		t = trade.New(id, trade.Short, curr.High, stop, trade.TargetFor(trade.Short, curr.High, stop, d.p.RiskReward), curr.Time, i)
	}
	t.Description = "SMC setup"

	t = trade.Simulate(t, d.bars, i+1, trade.Management{TargetR: d.p.RiskReward})
	if t.Status == trade.StatusCancelled {
		return
	}
	d.res.Trades = append(d.res.Trades, t)
}

func fvgScore(gap, impulse, atr, volRatio float64) float64 {
	var score float64
	if atr > 0 {
		score += tier(gap/atr, []float64{1.0, 0.7, 0.5, 0.3}, []float64{30, 20, 12, 5})
	}
	score += tier(impulse, []float64{0.015, 0.01, 0.005}, []float64{25, 18, 10})
	score += tier(volRatio, []float64{2.0, 1.5, 1.2}, []float64{25, 15, 8})
	return score
}

// tier awards the bonus of the first threshold that v strictly exceeds.
func tier(v float64, thresholds, bonus []float64) float64 {
	for k, th := range thresholds {
		if v > th {
			return bonus[k]
		}
	}
	return 0
}
