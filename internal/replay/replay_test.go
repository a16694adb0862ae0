package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trade"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

func closedLong() trade.Trade {
	t := trade.New("t1", trade.Long, 100, 95, 110, 10000, 5)
	t.Status = trade.StatusWin
	t.EntryTime = 12000
	t.ExitTime = 30000
	return t
}

func TestMarkers_ClosedLong(t *testing.T) {
	ms := Markers(closedLong())
	require.Len(t, ms, 3)

	assert.Equal(t, Marker{Time: 10000, Position: BelowBar, Shape: ArrowUp, Color: "#3b82f6", Text: TextIdea}, ms[0])
	assert.Equal(t, TextEntry, ms[1].Text)
	assert.Equal(t, int64(12000), ms[1].Time)
	assert.Equal(t, Marker{Time: 30000, Position: AboveBar, Shape: Circle, Color: "#089981", Text: "WIN"}, ms[2])
}

func TestMarkers_Short(t *testing.T) {
	tr := trade.New("s", trade.Short, 100, 105, 90, 0, 5)
	tr.Status = trade.StatusLoss
	tr.EntryTime = 5000
	tr.ExitTime = 6000

	ms := Markers(tr)
	require.Len(t, ms, 3)
	// no signal time: the idea sits on the entry
	assert.Equal(t, int64(5000), ms[0].Time)
	assert.Equal(t, AboveBar, ms[0].Position)
	assert.Equal(t, ArrowDown, ms[0].Shape)
	assert.Equal(t, BelowBar, ms[2].Position)
	assert.Equal(t, "#f23645", ms[2].Color)
}

func TestMarkers_OpenHasNoExit(t *testing.T) {
	tr := trade.New("o", trade.Long, 100, 95, 110, 1000, 1)
	tr.Status = trade.StatusOpen
	tr.EntryTime = 2000

	ms := Markers(tr)
	require.Len(t, ms, 2)
	assert.Equal(t, TextEntry, ms[1].Text)

	assert.Len(t, Markers(trade.New("p", trade.Long, 1, 0, 2, 1000, 1)), 1)
}

func TestWindowFor(t *testing.T) {
	assert.Equal(t, Window{From: 12000 - 3600, To: 30000}, WindowFor(closedLong()))

	open := closedLong()
	open.ExitTime = 0
	assert.Equal(t, Window{From: 8400, To: 19200}, WindowFor(open))

	assert.Equal(t, Window{}, WindowFor(trade.Trade{}))
}

func TestWindow_Padded(t *testing.T) {
	// span 8000 * 0.25 = 2000
	assert.Equal(t, Window{From: 8000, To: 20000}, Window{From: 10000, To: 18000}.Padded())
	// small span falls back to 15 minutes
	assert.Equal(t, Window{From: 100, To: 2000}, Window{From: 1000, To: 1100}.Padded())
	// reversed input
	assert.Equal(t, Window{From: 8000, To: 20000}, Window{From: 18000, To: 10000}.Padded())
}

func TestPrepareAndBuild(t *testing.T) {
	ob := zone.Zone{ID: "ob-l-3", Label: zone.LabelOB}
	gap := zone.Zone{ID: "fvg-l-5", Label: zone.LabelFVG}
	line := trendline.Line{Type: trendline.Down, T1: 100, T2: 200}

	setups := []strategy.Setup{
		{Trade: closedLong(), OrderBlock: &ob, Gap: &gap, Line: &line},
		{Trade: trade.New("pending", trade.Long, 1, 0, 2, 1000, 1)},
	}

	recs := Build(setups)
	require.Len(t, recs, 1)

	r := recs[0]
	require.Len(t, r.Boxes, 2)
	assert.Equal(t, "ob-l-3", r.Boxes[0].ID)
	assert.Equal(t, "fvg-l-5", r.Boxes[1].ID)
	require.Len(t, r.Lines, 1)
	assert.Equal(t, int64(200), r.Lines[0].T2)

	found, ok := Find(recs, "t1")
	assert.True(t, ok)
	assert.Equal(t, r.Window, found.Window)
	_, ok = Find(recs, "pending")
	assert.False(t, ok)

	bare := Prepare(strategy.Setup{Trade: closedLong()})
	assert.Empty(t, bare.Boxes)
	assert.Empty(t, bare.Lines)
}
