package trade

import (
	"github.com/newthinker/structura/internal/core"
)

// Partial configures a two-stage exit: half the position closes at FirstR
// and the remainder at SecondR, with the stop moved to entry once the first
// target fills.
type Partial struct {
	FirstR  float64
	SecondR float64
}

// Management describes how an open trade is managed. The zero value is a
// plain stop/target bracket.
type Management struct {
	// BreakEvenR moves the stop to entry once the favourable excursion
	// reaches this many R. Zero disables it.
	BreakEvenR float64
	// TargetR is the reward the take-profit was placed at. A take-profit
	// exit books exactly this; zero books the R measured from prices.
	TargetR float64
	Partial *Partial
}

// partialFraction is the share of the position closed at each partial target.
const partialFraction = 0.5

// Simulate advances t through bars starting at index from and returns the
// resulting trade. A PENDING trade fills when a bar reaches its entry and is
// cancelled when a bar reaches its stop first; the fill bar itself is not
// checked against stop or target. An OPEN trade is resolved against stop and
// target with the stop taking priority inside a bar. When bars run out the
// trade keeps its status and, if open, carries the unrealized R against the
// last close.
func Simulate(t Trade, bars []core.Bar, from int, m Management) Trade {
	if t.Status.IsTerminal() {
		return t
	}
	if from < 0 {
		from = 0
	}

	s := &sim{t: t, m: m, stop: t.StopLoss}
	for i := from; i < len(bars); i++ {
		if s.step(bars[i], i) {
			return s.t
		}
	}

	if s.t.Status == StatusOpen && len(bars) > 0 {
		last := bars[len(bars)-1].Close
		unrealized := s.t.RMultiple(last)
		if s.tp1Hit {
			s.t.PnLR = s.partialPnL + partialFraction*unrealized
		} else {
			s.t.PnLR = unrealized
		}
	}
	return s.t
}

type sim struct {
	t          Trade
	m          Management
	stop       float64
	atBE       bool
	tp1Hit     bool
	partialPnL float64
}

func (s *sim) hits(bar core.Bar, price float64, adverse bool) bool {
	// adverse prices sit above entry for shorts and below for longs
	if (s.t.Side == Short) == adverse {
		return bar.High >= price
	}
	return bar.Low <= price
}

func (s *sim) step(bar core.Bar, i int) bool {
	switch s.t.Status {
	case StatusPending:
		// entries are retracements, so they are reached from the adverse side
		if s.hits(bar, s.t.Entry, true) {
			s.t.Status = StatusOpen
			s.t.EntryTime = bar.Time
			s.t.EntryIndex = i
			return false
		}
		if s.hits(bar, s.t.StopLoss, true) {
			s.close(StatusCancelled, 0, bar, i)
			return true
		}
		return false
	case StatusOpen:
		if s.m.Partial != nil {
			return s.stepPartial(bar, i)
		}
		return s.stepBracket(bar, i)
	}
	return true
}

func (s *sim) excursion(bar core.Bar) float64 {
	if s.t.Side == Short {
		return s.t.RMultiple(bar.Low)
	}
	return s.t.RMultiple(bar.High)
}

func (s *sim) stepBracket(bar core.Bar, i int) bool {
	if s.m.BreakEvenR > 0 && !s.atBE && s.excursion(bar) >= s.m.BreakEvenR {
		s.stop = s.t.Entry
		s.atBE = true
	}
	if s.hits(bar, s.stop, true) {
		if s.atBE {
			s.close(StatusBE, 0, bar, i)
		} else {
			s.close(StatusLoss, -1, bar, i)
		}
		return true
	}
	if s.hits(bar, s.t.TakeProfit, false) {
		pnl := s.m.TargetR
		if pnl == 0 {
			pnl = s.t.RMultiple(s.t.TakeProfit)
		}
		s.close(StatusWin, pnl, bar, i)
		return true
	}
	return false
}

// stepPartial checks targets before the stop, so a bar reaching both the
// first target and the break-even stop books the partial and exits flat on
// the remainder.
func (s *sim) stepPartial(bar core.Bar, i int) bool {
	p := s.m.Partial
	if !s.atBE && s.excursion(bar) >= 1 {
		s.stop = s.t.Entry
		s.atBE = true
	}

	tp1 := TargetFor(s.t.Side, s.t.Entry, s.t.StopLoss, p.FirstR)
	tp2 := TargetFor(s.t.Side, s.t.Entry, s.t.StopLoss, p.SecondR)

	if !s.tp1Hit && s.hits(bar, tp1, false) {
		s.tp1Hit = true
		s.partialPnL += partialFraction * p.FirstR
		s.stop = s.t.Entry
		s.atBE = true
	}
	if s.tp1Hit && s.hits(bar, tp2, false) {
		s.close(StatusWin, s.partialPnL+partialFraction*p.SecondR, bar, i)
		return true
	}
	if s.hits(bar, s.stop, true) {
		switch {
		case s.tp1Hit:
			s.close(StatusWin, s.partialPnL, bar, i)
		case s.atBE:
			s.close(StatusBE, 0, bar, i)
		default:
			s.close(StatusLoss, -1, bar, i)
		}
		return true
	}
	return false
}

func (s *sim) close(status Status, pnl float64, bar core.Bar, i int) {
	s.t.Status = status
	s.t.PnLR = pnl
	s.t.ExitTime = bar.Time
	s.t.ExitIndex = i
}
