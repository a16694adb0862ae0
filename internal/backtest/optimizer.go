package backtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/strategy/liquidity"
	"github.com/newthinker/structura/internal/trade"
)

var (
	// DefaultTakeProfits is the take-profit axis of the grid, in R.
	DefaultTakeProfits = []float64{1.5, 2, 2.5, 3, 4, 5}
	// DefaultBreakEvens is the break-even axis of the grid, in R. Zero
	// disables break-even.
	DefaultBreakEvens = []float64{0, 0.5, 1, 1.5, 2}
)

// Summary holds the R-based statistics shared by sweep and grid results.
type Summary struct {
	Trades       []trade.Trade `json:"trades"`
	Total        int           `json:"total"`
	Wins         int           `json:"wins"`
	Losses       int           `json:"losses"`
	BreakEvens   int           `json:"break_evens"`
	TotalPnLR    float64       `json:"total_pnl_r"`
	WinRate      float64       `json:"win_rate"`
	ProfitFactor float64       `json:"profit_factor"`
}

// ModeResult is one row of the mode sweep.
type ModeResult struct {
	Mode     liquidity.Mode `json:"mode"`
	Strategy string         `json:"strategy"`
	Label    string         `json:"label"`
	Summary
}

// OptimizerResult is one cell of the take-profit/break-even grid.
type OptimizerResult struct {
	TakeProfitR float64 `json:"take_profit_r"`
	BreakEvenR  float64 `json:"break_even_r"`
	Summary
}

// Summarize computes R statistics over a trade set. Only WIN, LOSS and BE
// outcomes count towards the total; open trades contribute nothing. Win
// rate is wins over wins plus losses.
func Summarize(trades []trade.Trade) Summary {
	s := Summary{Trades: trades, Total: len(trades)}
	if s.Trades == nil {
		s.Trades = []trade.Trade{}
	}

	var gross, loss float64
	for _, t := range trades {
		switch t.Status {
		case trade.StatusWin:
			s.Wins++
		case trade.StatusLoss:
			s.Losses++
		case trade.StatusBE:
			s.BreakEvens++
		default:
			continue
		}
		s.TotalPnLR += t.PnLR
		if t.PnLR > 0 {
			gross += t.PnLR
		} else if t.PnLR < 0 {
			loss -= t.PnLR
		}
	}

	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = float64(s.Wins) / float64(decided) * 100
	}
	s.ProfitFactor = profitFactor(gross, loss)
	return s
}

// SweepModes runs every liquidity mode over one shared structure pass and
// returns the modes ordered by total R, best first. Every mode is present
// even when no trades are found.
func SweepModes(ctx context.Context, actx *strategy.AnalysisContext) ([]ModeResult, error) {
	actx.Prepare()

	results := make([]ModeResult, 0, len(liquidity.Modes()))
	for _, trap := range liquidity.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		setups, err := trap.Run(actx)
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", trap.Mode(), err)
		}
		results = append(results, ModeResult{
			Mode:     trap.Mode(),
			Strategy: trap.Name(),
			Label:    trap.Description(),
			Summary:  Summarize(strategy.Trades(setups)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalPnLR > results[j].TotalPnLR
	})
	return results, nil
}

// Grid replays the ATR limit entries under every take-profit and
// break-even combination and returns the cells ordered by total R.
// Nil axes use the defaults.
func Grid(ctx context.Context, actx *strategy.AnalysisContext, takeProfits, breakEvens []float64) ([]OptimizerResult, error) {
	if takeProfits == nil {
		takeProfits = DefaultTakeProfits
	}
	if breakEvens == nil {
		breakEvens = DefaultBreakEvens
	}

	entries := liquidity.FindEntries(actx, true)

	results := make([]OptimizerResult, 0, len(takeProfits)*len(breakEvens))
	for _, tp := range takeProfits {
		for _, be := range breakEvens {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			trades := make([]trade.Trade, 0, len(entries))
			for i, e := range entries {
				id := fmt.Sprintf("grid-%g-%g-%d", tp, be, i)
				trades = append(trades, liquidity.Simulate(actx.Bars, e, id, tp, trade.Management{BreakEvenR: be}))
			}
			results = append(results, OptimizerResult{
				TakeProfitR: tp,
				BreakEvenR:  be,
				Summary:     Summarize(trades),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalPnLR > results[j].TotalPnLR
	})
	return results, nil
}
