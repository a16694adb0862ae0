package backtest

import (
	"math"
	"testing"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/trade"
)

func closedTrade(status trade.Status, pnl float64, entryTime, exitTime int64) trade.Trade {
	t := trade.New("t", trade.Long, 100, 95, 110, entryTime, 0)
	t.Status = status
	t.PnLR = pnl
	t.EntryTime = entryTime
	t.ExitTime = exitTime
	return t
}

func barsAt(times ...int64) []core.Bar {
	bars := make([]core.Bar, len(times))
	for i, ts := range times {
		bars[i] = core.Bar{Time: ts, Open: 100, High: 101, Low: 99, Close: 100}
	}
	return bars
}

func TestAggregate_Empty(t *testing.T) {
	r := Aggregate(nil, nil, DefaultPnLConfig())
	if r.TotalTrades != 0 || r.RealizedPnL != 0 {
		t.Errorf("expected empty report, got %+v", r)
	}
	if r.FinalEquity != 10000 {
		t.Errorf("FinalEquity = %f, want 10000", r.FinalEquity)
	}
	if len(r.Equity) != 0 {
		t.Errorf("expected no equity points without bars, got %d", len(r.Equity))
	}
}

func TestAggregate_SingleLoss(t *testing.T) {
	trades := []trade.Trade{closedTrade(trade.StatusLoss, -1, 100, 200)}

	r := Aggregate(trades, barsAt(0, 100, 200), DefaultPnLConfig())

	if r.RiskPerTrade != 100 {
		t.Errorf("RiskPerTrade = %f, want 100", r.RiskPerTrade)
	}
	if r.RealizedPnL != -100 {
		t.Errorf("RealizedPnL = %f, want -100", r.RealizedPnL)
	}
	if r.FinalEquity != 9900 {
		t.Errorf("FinalEquity = %f, want 9900", r.FinalEquity)
	}
}

func TestAggregate_EquityCurve(t *testing.T) {
	trades := []trade.Trade{
		closedTrade(trade.StatusWin, 2, 50, 200),
		closedTrade(trade.StatusLoss, -1, 20, 100),
		closedTrade(trade.StatusBE, 0, 150, 200),
		closedTrade(trade.StatusCancelled, 0, 0, 0),
	}

	r := Aggregate(trades, barsAt(0, 100, 200), DefaultPnLConfig())

	want := []EquityPoint{{0, 10000}, {100, 9900}, {200, 10100}}
	if len(r.Equity) != len(want) {
		t.Fatalf("equity points = %v, want %v", r.Equity, want)
	}
	for i := range want {
		if r.Equity[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, r.Equity[i], want[i])
		}
	}

	var sum float64
	for i := 1; i < len(r.Equity); i++ {
		sum += r.Equity[i].Equity - r.Equity[i-1].Equity
	}
	if math.Abs(sum-r.RealizedPnL) > 1e-9 {
		t.Errorf("sum of equity deltas %f != realized %f", sum, r.RealizedPnL)
	}
	if math.Abs(r.FinalEquity-r.InitialBalance-r.RealizedPnL) > 1e-9 {
		t.Error("final equity does not reconcile with realized PnL")
	}

	if r.ClosedTrades != 3 || r.Wins != 1 || r.Losses != 1 || r.BreakEvens != 1 {
		t.Errorf("closed/wins/losses/be = %d/%d/%d/%d, want 3/1/1/1",
			r.ClosedTrades, r.Wins, r.Losses, r.BreakEvens)
	}
	if math.Abs(r.WinRate-100.0/3) > 1e-9 {
		t.Errorf("WinRate = %f", r.WinRate)
	}
	if r.ProfitFactor != 2 {
		t.Errorf("ProfitFactor = %f, want 2", r.ProfitFactor)
	}
	if math.Abs(r.MaxDrawdown-1) > 1e-9 {
		t.Errorf("MaxDrawdown = %f, want 1", r.MaxDrawdown)
	}
}

func TestAggregate_Fees(t *testing.T) {
	cfg := DefaultPnLConfig()
	cfg.IncludeFees = true

	r := Aggregate([]trade.Trade{closedTrade(trade.StatusWin, 2, 0, 100)}, nil, cfg)

	// 20 units: taker 2.0 on entry at 100, maker 2.2 on exit at 110
	if math.Abs(r.Fees-4.2) > 1e-9 {
		t.Errorf("Fees = %f, want 4.2", r.Fees)
	}
	if math.Abs(r.RealizedPnL-195.8) > 1e-9 {
		t.Errorf("RealizedPnL = %f, want 195.8", r.RealizedPnL)
	}
}

func TestAggregate_BreakEvenFeesExitAtEntry(t *testing.T) {
	cfg := DefaultPnLConfig()
	cfg.IncludeFees = true

	r := Aggregate([]trade.Trade{closedTrade(trade.StatusBE, 0, 0, 100)}, nil, cfg)
	if math.Abs(r.RealizedPnL+4) > 1e-9 {
		t.Errorf("RealizedPnL = %f, want -4", r.RealizedPnL)
	}
	if r.BreakEvens != 1 || r.Losses != 0 {
		t.Errorf("break-evens/losses = %d/%d, want 1/0", r.BreakEvens, r.Losses)
	}
	if math.Abs(r.GrossLoss-4) > 1e-9 {
		t.Errorf("GrossLoss = %f, want the 4 in fees", r.GrossLoss)
	}
}

func TestAggregate_OpenTrades(t *testing.T) {
	trades := []trade.Trade{
		closedTrade(trade.StatusWin, 2, 100, 400),
		closedTrade(trade.StatusOpen, 0.5, 200, 0),
	}

	r := Aggregate(trades, barsAt(0, 500, 1000), DefaultPnLConfig())

	if r.OpenTrades != 1 || r.UnrealizedPnL != 50 {
		t.Errorf("open=%d unrealized=%f, want 1 and 50", r.OpenTrades, r.UnrealizedPnL)
	}
	if r.CurrentEquity != r.FinalEquity+50 {
		t.Errorf("CurrentEquity = %f, want %f", r.CurrentEquity, r.FinalEquity+50)
	}
	if len(r.Equity) != 2 {
		t.Errorf("open trades must not add equity points, got %d", len(r.Equity))
	}
	if r.MaxDuration != 800 || r.AvgDuration != 550 {
		t.Errorf("durations max=%d avg=%f, want 800 and 550", r.MaxDuration, r.AvgDuration)
	}
	if r.FirstTradeTime != 100 || r.LastTradeTime != 1000 {
		t.Errorf("first/last = %d/%d, want 100/1000", r.FirstTradeTime, r.LastTradeTime)
	}
	if r.ProfitFactor != noLossProfitFactor {
		t.Errorf("ProfitFactor = %f, want %d", r.ProfitFactor, noLossProfitFactor)
	}
}

func TestSharpeSortino(t *testing.T) {
	sharpe, sortino := sharpeSortino([]float64{200, -100})
	if math.Abs(sharpe-1.0/3) > 1e-9 {
		t.Errorf("sharpe = %f, want 0.333", sharpe)
	}
	if math.Abs(sortino-0.5) > 1e-9 {
		t.Errorf("sortino = %f, want 0.5", sortino)
	}

	sharpe, sortino = sharpeSortino([]float64{100})
	if sharpe != 0 || sortino != 0 {
		t.Errorf("single return: sharpe=%f sortino=%f, want zeros", sharpe, sortino)
	}
}

func TestProfitFactor(t *testing.T) {
	if profitFactor(0, 0) != 0 {
		t.Error("no trades should be 0")
	}
	if profitFactor(10, 0) != 999 {
		t.Error("no losses should be 999")
	}
	if profitFactor(10, 5) != 2 {
		t.Error("expected 2")
	}
}
