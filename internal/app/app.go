// Package app runs the live watch loop: backfill the series, run an initial
// analysis pass, then re-run a pass whenever the stream appends a bar.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/analysis"
	"github.com/newthinker/structura/internal/collector"
	"github.com/newthinker/structura/internal/config"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/notifier"
	"github.com/newthinker/structura/internal/series"
	"github.com/newthinker/structura/internal/storage/archive"
	"github.com/newthinker/structura/internal/strategy"
)

// seriesHeadroom is how many bars past the history target the live series
// keeps before trimming.
const seriesHeadroom = 1000

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	provider   collector.Provider
	strategies *strategy.Engine
	notifiers  *notifier.Registry
	store      *archive.Store
	metrics    *metrics.Registry

	series *series.Series
	runner *analysis.Runner

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	started time.Time
	updates map[series.UpdateKind]int
	failed  int
}

// New creates a new App instance
func New(cfg *config.Config, provider collector.Provider, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:        cfg,
		logger:     logger,
		provider:   provider,
		strategies: strategy.NewEngine(logger),
		notifiers:  notifier.NewRegistry(),
		series:     series.New(cfg.Market.HistoryTarget + seriesHeadroom),
		updates:    make(map[series.UpdateKind]int),
	}
}

// RegisterStrategy adds a strategy to the app
func (a *App) RegisterStrategy(s strategy.Strategy) {
	a.strategies.Register(s)
}

// RegisterNotifier adds a notifier to the app
func (a *App) RegisterNotifier(n notifier.Notifier) error {
	return a.notifiers.Register(n)
}

// SetStore enables the bar-batch archive for backfills.
func (a *App) SetStore(s *archive.Store) {
	a.store = s
}

// SetMetrics attaches a metrics registry.
func (a *App) SetMetrics(m *metrics.Registry) {
	a.metrics = m
}

// Series exposes the live bar window.
func (a *App) Series() *series.Series {
	return a.series
}

// Bars returns a snapshot of the live bar window.
func (a *App) Bars() []core.Bar {
	return a.series.Snapshot()
}

// Strategies exposes the strategy engine.
func (a *App) Strategies() *strategy.Engine {
	return a.strategies
}

// AnalysisConfig converts the loaded configuration into pass parameters.
func AnalysisConfig(cfg *config.Config) analysis.Config {
	return analysis.Config{
		Symbol:            cfg.Market.Symbol,
		Interval:          cfg.Market.Interval,
		Zones:             cfg.ZoneParams(),
		Lines:             cfg.LineParams(),
		Channel:           cfg.ChannelParams(),
		Strategy:          cfg.Strategy.Name,
		UseVolumeAnalysis: cfg.Strategy.UseVolumeAnalysis,
		PnL:               cfg.PnLConfig(),
	}
}

// Start backfills, runs the initial pass and then follows the live stream
// until ctx ends or the stream fails. It returns ctx.Err() on shutdown.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	a.started = time.Now()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	symbol, interval := a.cfg.Market.Symbol, a.cfg.Market.Interval
	a.logger.Info("structura starting",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("history_target", a.cfg.Market.HistoryTarget),
		zap.String("strategy", a.cfg.Strategy.Name),
	)

	loader := collector.NewLoader(a.provider, a.store, a.logger)
	loader.SetMetrics(a.metrics)
	if err := loader.Fill(ctx, a.series, symbol, interval, a.cfg.Market.HistoryTarget); err != nil {
		return err
	}
	if a.series.Len() == 0 {
		return core.WrapError(core.ErrNoData, fmt.Errorf("%s %s", symbol, interval))
	}
	a.recordSeries()

	runner := analysis.NewRunner(a.series, analysis.NewAnalyzer(a.strategies), AnalysisConfig(a.cfg), a.logger)
	runner.SetMetrics(a.metrics)
	if a.notifiers.Len() > 0 {
		runner.SetNotifier(a.notifiers)
	}
	a.mu.Lock()
	a.runner = runner
	a.mu.Unlock()

	if _, err := runner.Pass(ctx); err != nil {
		return err
	}

	trigger := make(chan struct{}, 1)
	sub, err := a.provider.Live(symbol, interval).SubscribeLive(ctx, func(bar core.Bar) {
		if a.onBar(bar) == series.UpdateAppended {
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s %s: %w", symbol, interval, err)
	}
	defer sub.Close()
	a.logger.Info("following live stream", zap.String("subscription", sub.ID().String()))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("structura shutting down")
			return ctx.Err()
		case <-sub.Done():
			if err := sub.Err(); err != nil {
				return err
			}
			return core.ErrStreamClosed
		case <-trigger:
			if _, err := runner.Pass(ctx); err != nil {
				a.logger.Error("analysis pass failed", zap.Error(err))
				a.mu.Lock()
				a.failed++
				a.mu.Unlock()
			}
		}
	}
}

// onBar applies one streamed bar to the series.
func (a *App) onBar(bar core.Bar) series.UpdateKind {
	kind := a.series.Update(bar)

	a.mu.Lock()
	a.updates[kind]++
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.RecordStreamUpdate(string(kind))
	}
	if kind == series.UpdateAppended {
		a.recordSeries()
	}
	if kind == series.UpdateDiscarded {
		a.logger.Debug("discarded stale bar", zap.Int64("time", bar.Time))
	}
	return kind
}

func (a *App) recordSeries() {
	if a.metrics != nil {
		a.metrics.SetSeriesBars(a.cfg.Market.Symbol, a.cfg.Market.Interval, a.series.Len())
	}
}

// Stop stops the monitoring loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Last returns the most recent analysis result, or nil before the first
// pass.
func (a *App) Last() *analysis.Result {
	a.mu.RLock()
	runner := a.runner
	a.mu.RUnlock()
	if runner == nil {
		return nil
	}
	return runner.Last()
}

// IsShutdown reports whether err is the normal result of cancelling Start.
func IsShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"running":    a.running,
		"symbol":     a.cfg.Market.Symbol,
		"interval":   a.cfg.Market.Interval,
		"bars":       a.series.Len(),
		"strategies": len(a.strategies.GetAll()),
		"notifiers":  a.notifiers.Len(),
		"appended":   a.updates[series.UpdateAppended],
		"replaced":   a.updates[series.UpdateReplaced],
		"discarded":  a.updates[series.UpdateDiscarded],
		"failed":     a.failed,
		"passes":     0,
	}
	if a.runner != nil {
		stats["passes"] = a.runner.Passes()
	}
	if a.running {
		stats["uptime"] = time.Since(a.started).Round(time.Second).String()
	}
	return stats
}
