package backtest

import (
	"math"
	"sort"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/trade"
)

const (
	riskFraction = 0.01
	// noLossProfitFactor stands in for an infinite profit factor.
	noLossProfitFactor = 999
)

// Aggregate turns a trade set into an equity curve and summary statistics.
// Closed trades (WIN, LOSS, BE) are realized in exit-time order at 1% of
// the initial balance per R; open trades only contribute unrealized PnL.
// bars supplies the curve's starting time and the end of open trades.
func Aggregate(trades []trade.Trade, bars []core.Bar, cfg PnLConfig) Report {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = DefaultPnLConfig().InitialBalance
	}
	risk := cfg.RiskPerTrade()

	r := Report{
		InitialBalance: cfg.InitialBalance,
		RiskPerTrade:   risk,
		TotalTrades:    len(trades),
		Equity:         []EquityPoint{},
	}

	var lastBarTime int64
	if len(bars) > 0 {
		r.Equity = append(r.Equity, EquityPoint{Time: bars[0].Time, Equity: cfg.InitialBalance})
		lastBarTime = bars[len(bars)-1].Time
	}

	var closed []trade.Trade
	var totalDuration int64
	var durations int
	for _, t := range trades {
		switch {
		case t.Status.IsClosed():
			closed = append(closed, t)
		case t.Status == trade.StatusOpen:
			r.OpenTrades++
			r.UnrealizedPnL += t.PnLR * risk
		default:
			continue
		}

		if t.EntryTime == 0 {
			continue
		}
		end := t.ExitTime
		if end == 0 {
			end = lastBarTime
		}
		if r.FirstTradeTime == 0 || t.EntryTime < r.FirstTradeTime {
			r.FirstTradeTime = t.EntryTime
		}
		if end > r.LastTradeTime {
			r.LastTradeTime = end
		}
		d := end - t.EntryTime
		totalDuration += d
		if d > r.MaxDuration {
			r.MaxDuration = d
		}
		durations++
	}
	if durations > 0 {
		r.AvgDuration = float64(totalDuration) / float64(durations)
	}

	sort.SliceStable(closed, func(i, j int) bool { return closed[i].ExitTime < closed[j].ExitTime })

	equity, peak := cfg.InitialBalance, cfg.InitialBalance
	var maxDD float64
	returns := make([]float64, 0, len(closed))
	for _, t := range closed {
		pnl := t.PnLR * risk
		if cfg.IncludeFees {
			fee := fees(t, risk, cfg)
			pnl -= fee
			r.Fees += fee
		}

		r.RealizedPnL += pnl
		equity += pnl
		returns = append(returns, pnl)

		switch {
		case t.Status == trade.StatusBE:
			// flat before fees; a fee still adds to gross loss
			r.BreakEvens++
		case pnl > 0:
			r.Wins++
		default:
			r.Losses++
		}
		if pnl > 0 {
			r.GrossProfit += pnl
		} else {
			r.GrossLoss += math.Abs(pnl)
		}

		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			maxDD = math.Max(maxDD, (peak-equity)/peak)
		}

		if n := len(r.Equity); n > 0 && r.Equity[n-1].Time == t.ExitTime {
			r.Equity[n-1].Equity = equity
		} else {
			r.Equity = append(r.Equity, EquityPoint{Time: t.ExitTime, Equity: equity})
		}
	}

	r.ClosedTrades = len(closed)
	r.FinalEquity = equity
	r.CurrentEquity = equity + r.UnrealizedPnL
	r.MaxDrawdown = maxDD * 100
	if r.ClosedTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.ClosedTrades) * 100
	}
	r.ProfitFactor = profitFactor(r.GrossProfit, r.GrossLoss)
	r.Sharpe, r.Sortino = sharpeSortino(returns)
	return r
}

// fees charges taker on entry and maker (WIN) or taker (otherwise) on exit,
// sized so that a stop-out loses exactly risk before fees.
func fees(t trade.Trade, risk float64, cfg PnLConfig) float64 {
	dist := t.Risk()
	if dist <= 0 {
		return 0
	}
	units := risk / dist

	exit := t.StopLoss
	exitFee := cfg.FeeTaker
	switch t.Status {
	case trade.StatusWin:
		exit = t.TakeProfit
		exitFee = cfg.FeeMaker
	case trade.StatusBE:
		exit = t.Entry
	}

	return units*t.Entry*cfg.FeeTaker/100 + units*exit*exitFee/100
}

func profitFactor(gross, loss float64) float64 {
	if loss > 0 {
		return gross / loss
	}
	if gross > 0 {
		return noLossProfitFactor
	}
	return 0
}

// sharpeSortino returns per-trade mean over the population standard
// deviation, and over the downside root mean square.
func sharpeSortino(returns []float64) (float64, float64) {
	if len(returns) == 0 {
		return 0, 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sharpe float64
	if len(returns) > 1 {
		var variance float64
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		if std := math.Sqrt(variance / float64(len(returns))); std > 0 {
			sharpe = mean / std
		}
	}

	var downSq float64
	var downN int
	for _, r := range returns {
		if r < 0 {
			downSq += r * r
			downN++
		}
	}
	var sortino float64
	if downN > 0 {
		if dd := math.Sqrt(downSq / float64(downN)); dd > 0 {
			sortino = mean / dd
		}
	}
	return sharpe, sortino
}
