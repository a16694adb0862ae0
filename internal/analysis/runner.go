package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/notifier"
	"github.com/newthinker/structura/internal/series"
	"github.com/newthinker/structura/internal/trade"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

// Runner re-runs analysis over a live series. Every pass reads a snapshot so
// concurrent stream updates are never observed mid-pass.
type Runner struct {
	series   *series.Series
	analyzer *Analyzer
	cfg      Config
	logger   *zap.Logger

	metrics  *metrics.Registry
	notifier notifier.Notifier

	mu     sync.Mutex
	last   *Result
	passes int
	seen   map[string]trade.Status
}

// NewRunner creates a runner over s.
func NewRunner(s *series.Series, analyzer *Analyzer, cfg Config, logger ...*zap.Logger) *Runner {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Runner{
		series:   s,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   l,
		seen:     make(map[string]trade.Status),
	}
}

// SetMetrics attaches a metrics registry.
func (r *Runner) SetMetrics(m *metrics.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// SetNotifier attaches the event sink for pass summaries and trade changes.
func (r *Runner) SetNotifier(n notifier.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

// Pass runs one recompute over a fresh snapshot. Passes are serialised.
// Notification failures are logged and never fail the pass.
func (r *Runner) Pass(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bars := r.series.Snapshot()
	start := time.Now()

	res, err := r.analyzer.Recompute(ctx, bars, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}
	elapsed := time.Since(start)

	first := r.passes == 0
	r.passes++
	r.last = res

	changed := r.diffTrades(res)
	r.record(res, changed, elapsed.Seconds())

	r.logger.Info("analysis pass",
		zap.String("symbol", res.Symbol),
		zap.Int("bars", res.Bars),
		zap.Int("zones", len(res.Zones)),
		zap.Int("lines", len(res.Lines)),
		zap.Float64("hurst", res.Hurst.Exponent),
		zap.Int("setups", len(res.Setups)),
		zap.Int("changed", len(changed)),
		zap.Duration("elapsed", elapsed),
	)

	r.publish(res, changed, first)
	return res, nil
}

// Last returns the result of the most recent pass, or nil.
func (r *Runner) Last() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Passes returns how many passes have completed.
func (r *Runner) Passes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes
}

// diffTrades returns the trades that are new or whose status moved since
// the previous pass.
func (r *Runner) diffTrades(res *Result) []trade.Trade {
	var changed []trade.Trade
	current := make(map[string]trade.Status, len(res.Setups))
	for _, s := range res.Setups {
		current[s.ID] = s.Status
		if prev, ok := r.seen[s.ID]; !ok || prev != s.Status {
			changed = append(changed, s.Trade)
		}
	}
	r.seen = current
	return changed
}

func (r *Runner) record(res *Result, changed []trade.Trade, seconds float64) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordAnalysis(seconds)
	r.metrics.SetSeriesBars(res.Symbol, res.Interval, res.Bars)
	r.metrics.SetHurst(res.Symbol, res.Hurst.Exponent)

	for label, byStatus := range CountZones(res.Zones) {
		for status, n := range byStatus {
			r.metrics.SetZones(res.Symbol, string(label), string(status), n)
		}
	}
	broken := 0
	for _, l := range res.Lines {
		if l.IsBroken() {
			broken++
		}
	}
	r.metrics.SetLines(res.Symbol, string(trendline.StatusActive), len(res.Lines)-broken)
	r.metrics.SetLines(res.Symbol, string(trendline.StatusBroken), broken)

	for _, t := range changed {
		r.metrics.RecordTrade(res.Strategy, string(t.Status))
	}
}

func (r *Runner) publish(res *Result, changed []trade.Trade, first bool) {
	if r.notifier == nil {
		return
	}

	now := time.Now()
	events := []notifier.Event{SummaryEvent(res, now)}
	// The first pass reports history, not news.
	if !first {
		for _, t := range changed {
			events = append(events, TradeEvent(res, t, now))
		}
	}

	status := "ok"
	if err := r.notifier.SendBatch(events); err != nil {
		status = "error"
		r.logger.Warn("notification failed",
			zap.String("notifier", r.notifier.Name()),
			zap.Error(err),
		)
	}
	if r.metrics != nil {
		r.metrics.RecordNotification(r.notifier.Name(), status)
	}
}

// SummaryEvent describes a finished pass.
func SummaryEvent(res *Result, at time.Time) notifier.Event {
	active := CountZones(res.Zones)
	return notifier.Event{
		Kind:     notifier.EventAnalysis,
		Symbol:   res.Symbol,
		Interval: res.Interval,
		Message: fmt.Sprintf("%d bars, %d active FVG, %d active OB, %d active lines, regime %s",
			res.Bars,
			active[zone.LabelFVG][zone.StatusActive],
			active[zone.LabelOB][zone.StatusActive],
			len(res.ActiveLines()),
			res.Hurst.Regime,
		),
		Fields: map[string]any{
			"bars":         res.Bars,
			"zones":        len(res.Zones),
			"lines":        len(res.Lines),
			"hurst":        res.Hurst.Exponent,
			"regime":       string(res.Hurst.Regime),
			"setups":       len(res.Setups),
			"realized_pnl": res.Report.RealizedPnL,
			"win_rate":     res.Report.WinRate,
		},
		GeneratedAt: at,
	}
}

// TradeEvent describes a new or updated trade.
func TradeEvent(res *Result, t trade.Trade, at time.Time) notifier.Event {
	return notifier.Event{
		Kind:     notifier.EventTrade,
		Symbol:   res.Symbol,
		Interval: res.Interval,
		Message:  fmt.Sprintf("%s %s %s %s", res.Strategy, t.ID, t.Side, t.Status),
		Fields: map[string]any{
			"id":          t.ID,
			"side":        string(t.Side),
			"status":      string(t.Status),
			"entry":       t.Entry,
			"stop_loss":   t.StopLoss,
			"take_profit": t.TakeProfit,
			"pnl_r":       t.PnLR,
			"description": t.Description,
		},
		GeneratedAt: at,
	}
}
