// Package trendline detects swing pivots and fits, validates and scores
// the trend lines connecting them.
package trendline

import (
	"math"
	"sort"

	"github.com/newthinker/structura/internal/core"
)

// Type is the line direction. DOWN lines connect falling swing highs,
// UP lines connect rising swing lows.
type Type string

const (
	Up   Type = "UP"
	Down Type = "DOWN"
)

// Status tells whether price has closed the line.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusBroken Status = "BROKEN"
)

const (
	// MinBars is the smallest window that is analysed.
	MinBars = 100

	toleranceUnit  = 0.0005
	touchTolerance = 0.002
	maxActive      = 20
	maxBroken      = 100
	activeCluster  = 0.01
	brokenCluster  = 0.01
	brokenWindow   = 3600
)

// Params configures line fitting.
type Params struct {
	FractalStrength int
	AngleFilter     bool
	AngleMax        float64
	// Tolerance is expressed in units of 0.05% of price.
	Tolerance   float64
	StrictMode  bool
	ShowHistory bool
}

// DefaultParams returns the standard fitting settings.
func DefaultParams() Params {
	return Params{
		FractalStrength: 5,
		AngleFilter:     true,
		AngleMax:        20,
		Tolerance:       1,
		StrictMode:      true,
		ShowHistory:     true,
	}
}

// Pivot is a local extreme.
type Pivot struct {
	Index    int     `json:"index"`
	Time     int64   `json:"time"`
	Price    float64 `json:"price"`
	Strength int     `json:"strength"`
}

// Line runs from the origin pivot (P1, T1) to either the last bar or the
// break point (P2, T2).
type Line struct {
	Type          Type    `json:"type"`
	Status        Status  `json:"status"`
	P1            float64 `json:"p1"`
	T1            int64   `json:"t1"`
	P2            float64 `json:"p2"`
	T2            int64   `json:"t2"`
	Slope         float64 `json:"slope"`
	SlopeNorm     float64 `json:"slope_norm"`
	Score         float64 `json:"score"`
	Touches       int     `json:"touches"`
	TouchIndices  []int   `json:"touch_indices"`
	DurationHours float64 `json:"duration_hours"`
	StartIndex    int     `json:"start_index"`
	EndPivotIndex int     `json:"end_pivot_index"`
	EndIndex      int     `json:"end_index"`
	BreakIndex    int     `json:"break_index"`
}

// PriceAt projects the line to bar index i.
func (l Line) PriceAt(i int) float64 {
	return l.P1 + l.Slope*float64(i-l.StartIndex)
}

// IsBroken reports whether the line was broken.
func (l Line) IsBroken() bool { return l.Status == StatusBroken }

// Pivots finds swing highs and swing lows at each strength. A bar is a
// pivot when no bar within strength on either side exceeds it. Each index
// is reported once, with the first strength that found it.
func Pivots(bars []core.Bar, strengths ...int) (highs, lows []Pivot) {
	seenHigh := make(map[int]bool)
	seenLow := make(map[int]bool)

	for _, s := range strengths {
		for i := s; i < len(bars)-s; i++ {
			isHigh, isLow := true, true
			for j := 1; j <= s; j++ {
				if bars[i-j].High > bars[i].High || bars[i+j].High > bars[i].High {
					isHigh = false
				}
				if bars[i-j].Low < bars[i].Low || bars[i+j].Low < bars[i].Low {
					isLow = false
				}
			}
			if isHigh && !seenHigh[i] {
				seenHigh[i] = true
				highs = append(highs, Pivot{Index: i, Time: bars[i].Time, Price: bars[i].High, Strength: s})
			}
			if isLow && !seenLow[i] {
				seenLow[i] = true
				lows = append(lows, Pivot{Index: i, Time: bars[i].Time, Price: bars[i].Low, Strength: s})
			}
		}
	}

	byIndex := func(p []Pivot) {
		sort.SliceStable(p, func(a, b int) bool { return p[a].Index < p[b].Index })
	}
	byIndex(highs)
	byIndex(lows)
	return highs, lows
}

// Calculate fits lines over bars and returns the kept active lines followed
// by the kept broken lines. Fewer than MinBars bars yield no lines.
func Calculate(bars []core.Bar, p Params) []Line {
	if len(bars) < MinBars {
		return []Line{}
	}
	if p.FractalStrength <= 0 {
		p.FractalStrength = 5
	}

	fs := p.FractalStrength
	highs, lows := Pivots(bars, fs, max(2, fs-2), fs+3)

	f := fitter{bars: bars, p: p, tol: p.Tolerance * toleranceUnit}
	f.candidates(highs, Down)
	f.candidates(lows, Up)

	sort.SliceStable(f.out, func(a, b int) bool {
		return f.out[a].DurationHours > f.out[b].DurationHours
	})

	var active, broken []Line
	for _, l := range f.out {
		if l.IsBroken() {
			broken = append(broken, l)
		} else {
			active = append(active, l)
		}
	}

	lines := filterActive(active, len(bars)-1)
	return append(lines, filterBroken(broken)...)
}

type fitter struct {
	bars []core.Bar
	p    Params
	tol  float64
	out  []Line
}

func (f *fitter) candidates(pivots []Pivot, typ Type) {
	for i := len(pivots) - 1; i >= 1; i-- {
		a := pivots[i]
		for j := i - 1; j >= 0; j-- {
			b := pivots[j]
			if typ == Down && !(b.Price > a.Price) {
				continue
			}
			if typ == Up && !(b.Price < a.Price) {
				continue
			}
			if l, ok := f.fit(a, b, typ); ok {
				f.out = append(f.out, l)
			}
		}
	}
}

func (f *fitter) fit(a, b Pivot, typ Type) (Line, bool) {
	slope := (a.Price - b.Price) / float64(a.Index-b.Index)
	slopeNorm := math.Abs(slope/b.Price) * 10000
	if f.p.AngleFilter && slopeNorm > f.p.AngleMax*2 {
		return Line{}, false
	}

	theo := func(k int) float64 { return b.Price + slope*float64(k-b.Index) }

	if f.p.StrictMode {
		for k := b.Index + 1; k < a.Index; k++ {
			if typ == Down && f.bars[k].High > theo(k)*(1+f.tol) {
				return Line{}, false
			}
			if typ == Up && f.bars[k].Low < theo(k)*(1-f.tol) {
				return Line{}, false
			}
		}
	}

	touches := []int{b.Index, a.Index}
	for k := b.Index + 1; k < a.Index; k++ {
		price := f.bars[k].Low
		if typ == Down {
			price = f.bars[k].High
		}
		t := theo(k)
		if math.Abs(price-t)/t <= touchTolerance {
			touches = append(touches, k)
		}
	}

	breakIdx := -1
	for k := a.Index + 1; k < len(f.bars); k++ {
		if typ == Down && f.bars[k].High > theo(k)*(1+f.tol*0.5) {
			breakIdx = k
			break
		}
		if typ == Up && f.bars[k].Low < theo(k)*(1-f.tol*0.5) {
			breakIdx = k
			break
		}
	}
	if breakIdx != -1 && !f.p.ShowHistory {
		return Line{}, false
	}

	end := len(f.bars) - 1
	status := StatusActive
	if breakIdx != -1 {
		end = breakIdx
		status = StatusBroken
	}
	hours := float64(f.bars[end].Time-f.bars[b.Index].Time) / 3600

	return Line{
		Type:          typ,
		Status:        status,
		P1:            b.Price,
		T1:            b.Time,
		P2:            theo(end),
		T2:            f.bars[end].Time,
		Slope:         slope,
		SlopeNorm:     slopeNorm,
		Score:         float64(max(0, len(touches)-2))*15 + hours*2,
		Touches:       len(touches),
		TouchIndices:  touches,
		DurationHours: hours,
		StartIndex:    b.Index,
		EndPivotIndex: a.Index,
		EndIndex:      end,
		BreakIndex:    breakIdx,
	}, true
}

// filterActive keeps the first line of each same-type cluster whose current
// projected prices are within 1% of each other.
func filterActive(lines []Line, last int) []Line {
	kept := make([]Line, 0, maxActive)
	for _, l := range lines {
		dominated := false
		for _, k := range kept {
			pk := k.PriceAt(last)
			if l.Type == k.Type && math.Abs(l.PriceAt(last)-pk)/pk < activeCluster {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, l)
		}
		if len(kept) >= maxActive {
			break
		}
	}
	return kept
}

// filterBroken keeps the first line of each same-type cluster broken within
// an hour and 1% of each other, then the maxBroken most recently broken of
// those in their original order.
func filterBroken(lines []Line) []Line {
	type bucket struct {
		typ  Type
		hour int64
	}
	byHour := make(map[bucket][]int)

	var kept []Line
	for _, l := range lines {
		h := l.T2 / brokenWindow
		dominated := false
	scan:
		for d := int64(-1); d <= 1; d++ {
			for _, ki := range byHour[bucket{l.Type, h + d}] {
				k := kept[ki]
				dt := l.T2 - k.T2
				if dt < 0 {
					dt = -dt
				}
				if dt < brokenWindow && math.Abs(l.P2-k.P2)/k.P2 < brokenCluster {
					dominated = true
					break scan
				}
			}
		}
		if !dominated {
			byHour[bucket{l.Type, h}] = append(byHour[bucket{l.Type, h}], len(kept))
			kept = append(kept, l)
		}
	}
	if len(kept) <= maxBroken {
		return kept
	}

	idx := make([]int, len(kept))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return kept[idx[a]].T2 > kept[idx[b]].T2 })
	idx = idx[:maxBroken]
	sort.Ints(idx)

	out := make([]Line, len(idx))
	for i, k := range idx {
		out[i] = kept[k]
	}
	return out
}
