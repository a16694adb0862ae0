package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/series"
	"github.com/newthinker/structura/internal/storage/archive"
)

// Loader backfills complete histories from a provider. It satisfies the
// backtester's bar provider.
type Loader struct {
	provider Provider
	store    *archive.Store
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// NewLoader creates a loader. A nil store disables the archive cache.
func NewLoader(p Provider, store *archive.Store, logger ...*zap.Logger) *Loader {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Loader{provider: p, store: store, logger: l}
}

// SetMetrics attaches a metrics registry.
func (l *Loader) SetMetrics(m *metrics.Registry) {
	l.metrics = m
}

// Source returns the historical source for a symbol, cached when an
// archive is configured.
func (l *Loader) Source(symbol, interval string) HistoricalSource {
	src := l.provider.Historical(symbol, interval)
	if l.store != nil {
		src = NewCachedSource(src, l.store, symbol, interval, l.logger)
	}
	return src
}

// Fill backfills s to target bars.
func (l *Loader) Fill(ctx context.Context, s *series.Series, symbol, interval string, target int) error {
	bf := NewBackfiller(l.provider.Name(), l.logger)
	bf.SetMetrics(l.metrics)
	if _, err := bf.Run(ctx, l.Source(symbol, interval), s, target); err != nil {
		return fmt.Errorf("backfill %s %s: %w", symbol, interval, err)
	}
	return nil
}

// LoadHistory returns the most recent target bars.
func (l *Loader) LoadHistory(ctx context.Context, symbol, interval string, target int) ([]core.Bar, error) {
	s := series.New(0)
	if err := l.Fill(ctx, s, symbol, interval, target); err != nil {
		return nil, err
	}
	bars := s.Snapshot()
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	if target > 0 && len(bars) > target {
		bars = bars[len(bars)-target:]
	}
	return bars, nil
}
