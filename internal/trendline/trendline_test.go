package trendline

import (
	"math"
	"testing"

	"github.com/newthinker/structura/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHighs(highs []float64) []core.Bar {
	bars := make([]core.Bar, len(highs))
	for i, h := range highs {
		bars[i] = core.Bar{Time: int64(i * 900), Open: h - 1, High: h, Low: h - 2, Close: h - 1}
	}
	return bars
}

// descendingFixture has swing highs at 5 (110) and 15 (105), a touch at
// 10 and a break at 20.
func descendingFixture() []core.Bar {
	theo := func(k int) float64 { return 110 - 0.5*float64(k-5) }
	highs := make([]float64, 30)
	for k := range highs {
		highs[k] = theo(k) - 1
	}
	highs[5] = 110
	highs[15] = 105
	highs[10] = theo(10)
	highs[20] = theo(20) * 1.001
	return withHighs(highs)
}

func testFitter(bars []core.Bar, p Params) *fitter {
	return &fitter{bars: bars, p: p, tol: p.Tolerance * toleranceUnit}
}

func TestPivots(t *testing.T) {
	bars := withHighs([]float64{1, 2, 5, 2, 1, 3, 1})
	for i := range bars {
		bars[i].Low = bars[i].High - 0.5
	}

	highs, lows := Pivots(bars, 2, 2)
	require.Len(t, highs, 1)
	assert.Equal(t, 2, highs[0].Index)
	assert.Equal(t, 5.0, highs[0].Price)
	assert.Equal(t, 2, highs[0].Strength)

	require.Len(t, lows, 1)
	assert.Equal(t, 4, lows[0].Index)
}

func TestFit_BrokenDownLine(t *testing.T) {
	bars := descendingFixture()
	p := DefaultParams()
	p.AngleMax = 30

	a := Pivot{Index: 15, Time: bars[15].Time, Price: 105}
	b := Pivot{Index: 5, Time: bars[5].Time, Price: 110}

	l, ok := testFitter(bars, p).fit(a, b, Down)
	require.True(t, ok)

	assert.Equal(t, StatusBroken, l.Status)
	assert.Equal(t, 20, l.BreakIndex)
	assert.Equal(t, 20, l.EndIndex)
	assert.InDelta(t, -0.5, l.Slope, 1e-9)
	assert.InDelta(t, 102.5, l.P2, 1e-9)
	assert.Equal(t, bars[20].Time, l.T2)
	assert.Equal(t, 3, l.Touches)
	assert.Equal(t, []int{5, 15, 10}, l.TouchIndices)
	assert.InDelta(t, 3.75, l.DurationHours, 1e-9)
	assert.InDelta(t, 15+3.75*2, l.Score, 1e-9)
	assert.InDelta(t, 102.5, l.PriceAt(20), 1e-9)
}

func TestFit_AngleFilter(t *testing.T) {
	bars := descendingFixture()
	a := Pivot{Index: 15, Price: 105}
	b := Pivot{Index: 5, Price: 110}

	// normalized slope is 45.5, above the default limit of 40
	_, ok := testFitter(bars, DefaultParams()).fit(a, b, Down)
	assert.False(t, ok)

	p := DefaultParams()
	p.AngleFilter = false
	_, ok = testFitter(bars, p).fit(a, b, Down)
	assert.True(t, ok)
}

func TestFit_StrictMode(t *testing.T) {
	bars := descendingFixture()
	bars[8].High = (110 - 0.5*3) * 1.01

	a := Pivot{Index: 15, Price: 105}
	b := Pivot{Index: 5, Price: 110}

	p := DefaultParams()
	p.AngleFilter = false
	_, ok := testFitter(bars, p).fit(a, b, Down)
	assert.False(t, ok)

	p.StrictMode = false
	_, ok = testFitter(bars, p).fit(a, b, Down)
	assert.True(t, ok)
}

func TestFit_HideHistory(t *testing.T) {
	bars := descendingFixture()
	p := DefaultParams()
	p.AngleFilter = false
	p.ShowHistory = false

	_, ok := testFitter(bars, p).fit(Pivot{Index: 15, Price: 105}, Pivot{Index: 5, Price: 110}, Down)
	assert.False(t, ok)
}

func TestFit_ActiveRunsToLastBar(t *testing.T) {
	bars := descendingFixture()
	bars[20].High = 100 // remove the break

	p := DefaultParams()
	p.AngleFilter = false
	l, ok := testFitter(bars, p).fit(Pivot{Index: 15, Price: 105}, Pivot{Index: 5, Time: bars[5].Time, Price: 110}, Down)
	require.True(t, ok)

	assert.Equal(t, StatusActive, l.Status)
	assert.Equal(t, -1, l.BreakIndex)
	assert.Equal(t, 29, l.EndIndex)
	assert.Equal(t, bars[29].Time, l.T2)
	assert.InDelta(t, 110-0.5*24, l.P2, 1e-9)
}

func flatLine(typ Type, price float64) Line {
	return Line{Type: typ, Status: StatusActive, P1: price, P2: price}
}

func TestFilterActive_KeepsFirstOfCluster(t *testing.T) {
	lines := []Line{
		flatLine(Up, 100),
		flatLine(Up, 100.5),
		flatLine(Down, 100.5),
		flatLine(Up, 102),
	}

	kept := filterActive(lines, 50)
	require.Len(t, kept, 3)
	assert.Equal(t, 100.0, kept[0].P1)
	assert.Equal(t, Down, kept[1].Type)
	assert.Equal(t, 102.0, kept[2].P1)
}

func TestFilterActive_Cap(t *testing.T) {
	var lines []Line
	for k := 0; k < 25; k++ {
		lines = append(lines, flatLine(Up, 100*math.Pow(1.02, float64(k))))
	}
	assert.Len(t, filterActive(lines, 10), 20)
}

func TestFilterBroken(t *testing.T) {
	broken := func(typ Type, t2 int64, p2 float64) Line {
		return Line{Type: typ, Status: StatusBroken, T2: t2, P2: p2}
	}
	lines := []Line{
		broken(Down, 1000, 100),
		broken(Down, 2000, 100.5),
		broken(Down, 10000, 100),
		broken(Up, 1000, 100),
	}

	kept := filterBroken(lines)
	require.Len(t, kept, 3)
	assert.Equal(t, int64(1000), kept[0].T2)
	assert.Equal(t, int64(10000), kept[1].T2)
	assert.Equal(t, Up, kept[2].Type)
}

func TestFilterBroken_KeepsNewest(t *testing.T) {
	var lines []Line
	for i := 0; i < maxBroken+50; i++ {
		// descending break time, as duration ordering would leave them
		lines = append(lines, Line{Type: Down, Status: StatusBroken, T2: int64(maxBroken+50-i) * 10000, P2: 100})
	}

	kept := filterBroken(lines)
	require.Len(t, kept, maxBroken)
	assert.Equal(t, lines[0].T2, kept[0].T2)
	assert.Equal(t, lines[maxBroken-1].T2, kept[maxBroken-1].T2)

	reversed := make([]Line, len(lines))
	for i, l := range lines {
		reversed[len(lines)-1-i] = l
	}
	kept = filterBroken(reversed)
	require.Len(t, kept, maxBroken)
	assert.Equal(t, int64(51*10000), kept[0].T2, "oldest breaks are dropped")
	assert.Equal(t, int64((maxBroken+50)*10000), kept[maxBroken-1].T2)
}

func TestFilterBroken_ClusterAcrossHourBoundary(t *testing.T) {
	lines := []Line{
		{Type: Up, Status: StatusBroken, T2: 3599, P2: 50},
		{Type: Up, Status: StatusBroken, T2: 3601, P2: 50.1},
		{Type: Up, Status: StatusBroken, T2: 7300, P2: 50},
	}

	kept := filterBroken(lines)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(3599), kept[0].T2)
	assert.Equal(t, int64(7300), kept[1].T2)
}

func sineBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		c := 100 + 5*math.Sin(float64(i)/8) + 0.02*float64(i)
		bars[i] = core.Bar{Time: int64(i * 900), Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return bars
}

func TestCalculate_TooFewBars(t *testing.T) {
	assert.Empty(t, Calculate(sineBars(99), DefaultParams()))
}

func TestCalculate_LineProperties(t *testing.T) {
	bars := sineBars(300)
	lines := Calculate(bars, DefaultParams())
	require.NotEmpty(t, lines)

	seenBroken := false
	active := 0
	for _, l := range lines {
		assert.Equal(t, len(l.TouchIndices), l.Touches)
		assert.GreaterOrEqual(t, l.Touches, 2)
		switch l.Type {
		case Up:
			assert.Greater(t, l.Slope, 0.0)
		case Down:
			assert.Less(t, l.Slope, 0.0)
		}

		if l.IsBroken() {
			seenBroken = true
			assert.Greater(t, l.BreakIndex, l.EndPivotIndex)
			assert.Equal(t, bars[l.BreakIndex].Time, l.T2)
		} else {
			assert.False(t, seenBroken, "active lines come before broken ones")
			assert.Equal(t, -1, l.BreakIndex)
			assert.Equal(t, len(bars)-1, l.EndIndex)
			active++
		}
	}
	assert.LessOrEqual(t, active, 20)

	assert.Equal(t, lines, Calculate(bars, DefaultParams()))
}
