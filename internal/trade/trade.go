// Package trade holds the trade record and the lifecycle engine that walks
// a trade through future bars to a terminal outcome.
package trade

import (
	"math"
)

// Side is the trade direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Status is the lifecycle state of a trade.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusOpen      Status = "OPEN"
	StatusWin       Status = "WIN"
	StatusLoss      Status = "LOSS"
	StatusBE        Status = "BE"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusWin, StatusLoss, StatusBE, StatusCancelled:
		return true
	}
	return false
}

// IsClosed reports a realized outcome: WIN, LOSS or BE.
func (s Status) IsClosed() bool {
	return s == StatusWin || s == StatusLoss || s == StatusBE
}

// Trade is one simulated trade idea. Times are unix seconds; zero means
// not reached. Indices are bar positions in the analysed window, -1 when
// not reached.
type Trade struct {
	ID          string  `json:"id"`
	Side        Side    `json:"side"`
	Status      Status  `json:"status"`
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit  float64 `json:"take_profit"`
	SignalTime  int64   `json:"signal_time"`
	SignalIndex int     `json:"signal_index"`
	EntryTime   int64   `json:"entry_time,omitempty"`
	EntryIndex  int     `json:"entry_index"`
	ExitTime    int64   `json:"exit_time,omitempty"`
	ExitIndex   int     `json:"exit_index"`
	PnLR        float64 `json:"pnl_r"`
	Description string  `json:"description,omitempty"`
}

// New creates a pending trade signalled at the given bar.
func New(id string, side Side, entry, stop, target float64, signalTime int64, signalIndex int) Trade {
	return Trade{
		ID:          id,
		Side:        side,
		Status:      StatusPending,
		Entry:       entry,
		StopLoss:    stop,
		TakeProfit:  target,
		SignalTime:  signalTime,
		SignalIndex: signalIndex,
		EntryIndex:  -1,
		ExitIndex:   -1,
	}
}

// Risk is the distance between entry and stop, one R.
func (t Trade) Risk() float64 {
	return math.Abs(t.Entry - t.StopLoss)
}

// RMultiple expresses a move from entry to price in units of risk, signed
// so that a favourable move is positive. Zero risk yields zero.
func (t Trade) RMultiple(price float64) float64 {
	risk := t.Risk()
	if risk == 0 {
		return 0
	}
	if t.Side == Short {
		return (t.Entry - price) / risk
	}
	return (price - t.Entry) / risk
}

// TargetFor returns the price r risk units from entry in the trade direction.
func TargetFor(side Side, entry, stop, r float64) float64 {
	risk := math.Abs(entry - stop)
	if side == Short {
		return entry - r*risk
	}
	return entry + r*risk
}

// Fill returns a copy of t opened at the given bar.
func (t Trade) Fill(time int64, index int) Trade {
	t.Status = StatusOpen
	t.EntryTime = time
	t.EntryIndex = index
	return t
}
