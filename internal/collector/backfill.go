package collector

import (
	"context"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/series"
)

const progressEvery = 5000

// Backfiller pages a historical source into a series.
type Backfiller struct {
	name    string
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewBackfiller creates a backfiller; name labels its metrics and logs.
func NewBackfiller(name string, logger ...*zap.Logger) *Backfiller {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Backfiller{name: name, logger: l}
}

// SetMetrics attaches a metrics registry.
func (b *Backfiller) SetMetrics(m *metrics.Registry) {
	b.metrics = m
}

// Run fetches batches older than the series' first bar until it holds
// target bars, the source returns an empty batch, or a batch adds nothing.
// It returns the number of batches fetched.
func (b *Backfiller) Run(ctx context.Context, src HistoricalSource, s *series.Series, target int) (int, error) {
	var before int64
	if first, ok := s.First(); ok {
		before = first.Time
	}

	batches := 0
	reported := 0
	for s.Len() < target {
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		batch, err := src.FetchHistoricalBatch(ctx, before)
		if err != nil {
			b.record("error")
			return batches, core.WrapError(core.ErrSourceFailed, err)
		}
		batches++
		b.record("ok")
		if len(batch) == 0 {
			break
		}

		if added := s.Merge(batch); added <= 0 {
			b.logger.Debug("backfill made no progress", zap.String("source", b.name), zap.Int64("before", before))
			break
		}
		first, _ := s.First()
		before = first.Time

		if n := s.Len() / progressEvery; n > reported {
			reported = n
			b.logger.Info("backfill progress", zap.String("source", b.name), zap.Int("bars", s.Len()))
		}
	}

	b.logger.Info("backfill finished",
		zap.String("source", b.name),
		zap.Int("bars", s.Len()),
		zap.Int("batches", batches),
	)
	return batches, nil
}

func (b *Backfiller) record(status string) {
	if b.metrics != nil {
		b.metrics.RecordBackfillBatch(b.name, status)
	}
}

// Backfill runs a silent backfiller.
func Backfill(ctx context.Context, src HistoricalSource, s *series.Series, target int) (int, error) {
	return NewBackfiller("source").Run(ctx, src, s, target)
}
