package backtest

import (
	"context"
	"fmt"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
	"go.uber.org/zap"
)

// BarProvider loads the historical window a backtest runs over.
type BarProvider interface {
	LoadHistory(ctx context.Context, symbol, interval string, target int) ([]core.Bar, error)
}

// Request describes one backtest.
type Request struct {
	Strategy          string
	Symbol            string
	Interval          string
	Target            int
	Zones             zone.Params
	Lines             trendline.Params
	UseVolumeAnalysis bool
	PnL               PnLConfig
}

// Backtester runs named strategies against historical bars
type Backtester struct {
	provider BarProvider
	engine   *strategy.Engine
	logger   *zap.Logger
}

// New creates a new Backtester with the given bar provider and strategies
func New(provider BarProvider, engine *strategy.Engine, logger ...*zap.Logger) *Backtester {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Backtester{
		provider: provider,
		engine:   engine,
		logger:   l,
	}
}

// Run loads history and executes the requested strategy over it
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	bars, err := b.provider.LoadHistory(ctx, req.Symbol, req.Interval, req.Target)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	return b.RunBars(ctx, req, bars)
}

// RunBars executes the requested strategy over bars that are already loaded
func (b *Backtester) RunBars(ctx context.Context, req Request, bars []core.Bar) (*Result, error) {
	actx := &strategy.AnalysisContext{
		Symbol:            req.Symbol,
		Interval:          req.Interval,
		Bars:              bars,
		ZoneParams:        req.Zones,
		LineParams:        req.Lines,
		UseVolumeAnalysis: req.UseVolumeAnalysis,
	}

	setups, err := b.engine.Run(ctx, req.Strategy, actx)
	if err != nil {
		return nil, err
	}

	report := Aggregate(strategy.Trades(setups), bars, req.PnL)
	b.logger.Info("backtest finished",
		zap.String("strategy", req.Strategy),
		zap.String("symbol", req.Symbol),
		zap.Int("bars", len(bars)),
		zap.Int("trades", report.TotalTrades),
		zap.Float64("realized_pnl", report.RealizedPnL),
	)

	res := &Result{
		Strategy: req.Strategy,
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Bars:     len(bars),
		Setups:   setups,
		Report:   report,
	}
	if len(bars) > 0 {
		res.StartTime = bars[0].Time
		res.EndTime = bars[len(bars)-1].Time
	}
	return res, nil
}
