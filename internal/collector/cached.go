package collector

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/storage/archive"
)

// CachedSource serves historical batches from an archive, falling back to
// the wrapped source and storing what it fetched. Requests for the latest
// batch always go to the source since that batch keeps changing. Archive
// failures are logged and never fail a fetch.
type CachedSource struct {
	src      HistoricalSource
	store    *archive.Store
	symbol   string
	interval string
	logger   *zap.Logger
}

// NewCachedSource wraps src with an archive cache.
func NewCachedSource(src HistoricalSource, store *archive.Store, symbol, interval string, logger ...*zap.Logger) *CachedSource {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &CachedSource{src: src, store: store, symbol: symbol, interval: interval, logger: l}
}

func (c *CachedSource) FetchHistoricalBatch(ctx context.Context, before int64) ([]core.Bar, error) {
	if before == 0 {
		return c.src.FetchHistoricalBatch(ctx, before)
	}

	bars, err := c.store.Get(ctx, c.symbol, c.interval, before)
	switch {
	case err == nil:
		c.logger.Debug("archive hit", zap.String("symbol", c.symbol), zap.Int64("before", before), zap.Int("bars", len(bars)))
		return bars, nil
	case !errors.Is(err, core.ErrArchiveMiss):
		c.logger.Warn("archive read failed", zap.String("symbol", c.symbol), zap.Int64("before", before), zap.Error(err))
	}

	bars, err = c.src.FetchHistoricalBatch(ctx, before)
	if err != nil {
		return nil, err
	}
	// An empty batch may only mean the venue was briefly behind.
	if len(bars) > 0 {
		if err := c.store.Put(ctx, c.symbol, c.interval, before, bars); err != nil {
			c.logger.Warn("archive write failed", zap.String("symbol", c.symbol), zap.Int64("before", before), zap.Error(err))
		}
	}
	return bars, nil
}
