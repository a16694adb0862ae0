package backtest

import (
	"github.com/newthinker/structura/internal/strategy"
)

// Result holds the complete backtest output
type Result struct {
	Strategy  string           `json:"strategy"`
	Symbol    string           `json:"symbol"`
	Interval  string           `json:"interval"`
	StartTime int64            `json:"start_time"`
	EndTime   int64            `json:"end_time"`
	Bars      int              `json:"bars"`
	Setups    []strategy.Setup `json:"setups"`
	Report    Report           `json:"report"`
}

// PnLConfig configures the account simulation. Fees are percentages of
// notional, so 0.1 means 0.1%.
type PnLConfig struct {
	InitialBalance float64
	IncludeFees    bool
	FeeMaker       float64
	FeeTaker       float64
}

// DefaultPnLConfig returns a 10k account without fees.
func DefaultPnLConfig() PnLConfig {
	return PnLConfig{InitialBalance: 10000, FeeMaker: 0.1, FeeTaker: 0.1}
}

// RiskPerTrade is the cash value of 1R.
func (c PnLConfig) RiskPerTrade() float64 {
	return c.InitialBalance * riskFraction
}

// EquityPoint is the account value after the exits at Time.
type EquityPoint struct {
	Time   int64   `json:"time"`
	Equity float64 `json:"equity"`
}

// Report holds performance statistics
type Report struct {
	InitialBalance float64 `json:"initial_balance"`
	RiskPerTrade   float64 `json:"risk_per_trade"`

	TotalTrades  int `json:"total_trades"`
	ClosedTrades int `json:"closed_trades"`
	OpenTrades   int `json:"open_trades"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	BreakEvens   int `json:"break_evens"`

	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Fees          float64 `json:"fees"`
	FinalEquity   float64 `json:"final_equity"`   // realized only
	CurrentEquity float64 `json:"current_equity"` // final plus unrealized

	WinRate      float64 `json:"win_rate"` // percentage of closed trades
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown"` // percentage of peak
	Sharpe       float64 `json:"sharpe"`
	Sortino      float64 `json:"sortino"`

	AvgDuration    float64 `json:"avg_duration"` // seconds
	MaxDuration    int64   `json:"max_duration"` // seconds
	FirstTradeTime int64   `json:"first_trade_time,omitempty"`
	LastTradeTime  int64   `json:"last_trade_time,omitempty"`

	Equity []EquityPoint `json:"equity"`
}
