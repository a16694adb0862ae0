// Package replay turns simulated setups into the records a chart needs to
// review them: markers, structure boxes and a zoom window.
package replay

import (
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trade"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

const (
	lookback    = 3600 // seconds shown before the entry
	lookahead   = 7200 // seconds shown after the entry when there is no exit
	minPad      = 900
	padFraction = 0.25
)

type Position string

const (
	BelowBar Position = "belowBar"
	AboveBar Position = "aboveBar"
)

type Shape string

const (
	ArrowUp   Shape = "arrowUp"
	ArrowDown Shape = "arrowDown"
	Circle    Shape = "circle"
)

// Marker texts.
const (
	TextIdea  = "IDEA"
	TextEntry = "ENTRY"
)

// Marker is a labelled point on a bar.
type Marker struct {
	Time     int64    `json:"time"`
	Position Position `json:"position"`
	Shape    Shape    `json:"shape"`
	Color    string   `json:"color"`
	Text     string   `json:"text"`
}

// Window is a visible time range in unix seconds.
type Window struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Padded widens the window on both sides by a quarter of its span, at
// least 15 minutes. A reversed window is swapped first.
func (w Window) Padded() Window {
	from, to := w.From, w.To
	if from > to {
		from, to = to, from
	}
	pad := int64(float64(to-from) * padFraction)
	if pad < minPad {
		pad = minPad
	}
	return Window{From: from - pad, To: to + pad}
}

// Record is one trade prepared for review.
type Record struct {
	Trade   trade.Trade      `json:"trade"`
	Markers []Marker         `json:"markers"`
	Boxes   []zone.Zone      `json:"boxes"`
	Lines   []trendline.Line `json:"lines"`
	Window  Window           `json:"window"`
}

// Markers returns the IDEA, ENTRY and exit markers of a trade. The exit
// marker is only drawn for trades that closed with a result.
func Markers(t trade.Trade) []Marker {
	var out []Marker

	entryPos, exitPos := BelowBar, AboveBar
	arrow := ArrowUp
	if t.Side == trade.Short {
		entryPos, exitPos = AboveBar, BelowBar
		arrow = ArrowDown
	}

	idea := t.SignalTime
	if idea == 0 {
		idea = t.EntryTime
	}
	if idea != 0 {
		out = append(out, Marker{Time: idea, Position: entryPos, Shape: arrow, Color: "#3b82f6", Text: TextIdea})
	}
	if t.EntryTime != 0 {
		out = append(out, Marker{Time: t.EntryTime, Position: entryPos, Shape: arrow, Color: "#2962ff", Text: TextEntry})
	}
	if t.ExitTime != 0 && t.Status.IsClosed() {
		out = append(out, Marker{Time: t.ExitTime, Position: exitPos, Shape: Circle, Color: exitColor(t.Status), Text: string(t.Status)})
	}
	return out
}

func exitColor(s trade.Status) string {
	switch s {
	case trade.StatusWin:
		return "#089981"
	case trade.StatusLoss:
		return "#f23645"
	default:
		return "#787b86"
	}
}

// WindowFor returns the unpadded review range of a trade: an hour before
// the entry (or signal) up to the exit, or two hours past the entry while
// the trade is unresolved.
func WindowFor(t trade.Trade) Window {
	from := t.EntryTime
	if from == 0 {
		from = t.SignalTime
	}
	if from == 0 {
		return Window{}
	}
	to := t.ExitTime
	if to == 0 {
		to = from + lookahead
	}
	return Window{From: from - lookback, To: to}
}

// Prepare builds the review record of one setup.
func Prepare(s strategy.Setup) Record {
	r := Record{
		Trade:   s.Trade,
		Markers: Markers(s.Trade),
		Boxes:   []zone.Zone{},
		Lines:   []trendline.Line{},
		Window:  WindowFor(s.Trade),
	}
	if s.OrderBlock != nil {
		r.Boxes = append(r.Boxes, *s.OrderBlock)
	}
	if s.Gap != nil {
		r.Boxes = append(r.Boxes, *s.Gap)
	}
	if s.Line != nil {
		r.Lines = append(r.Lines, *s.Line)
	}
	return r
}

// Build prepares every setup that reached the market, in input order.
// Pending and cancelled ideas have nothing to replay.
func Build(setups []strategy.Setup) []Record {
	out := make([]Record, 0, len(setups))
	for _, s := range setups {
		if s.EntryTime == 0 {
			continue
		}
		out = append(out, Prepare(s))
	}
	return out
}

// Find returns the record of a trade id.
func Find(records []Record, id string) (Record, bool) {
	for _, r := range records {
		if r.Trade.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
