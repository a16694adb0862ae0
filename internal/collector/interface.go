// Package collector defines the ingestion capabilities the analysis core
// depends on and the loops that drive them into a bar series.
package collector

import (
	"context"

	"github.com/google/uuid"

	"github.com/newthinker/structura/internal/core"
)

// HistoricalSource pages backwards through the history of one symbol and
// interval. before is an exclusive upper bound on bar open time in unix
// seconds; zero asks for the most recent batch. An empty batch means there
// is no older data.
type HistoricalSource interface {
	FetchHistoricalBatch(ctx context.Context, before int64) ([]core.Bar, error)
}

// LiveSource streams bar updates. The in-progress bar is delivered
// repeatedly with the same open time until it closes.
type LiveSource interface {
	SubscribeLive(ctx context.Context, onBar func(core.Bar)) (Subscription, error)
}

// Subscription is a handle on a running live stream.
type Subscription interface {
	ID() uuid.UUID
	// Done is closed once the stream has stopped for good.
	Done() <-chan struct{}
	// Err reports why the stream stopped, nil after Close.
	Err() error
	Close() error
}

// Provider builds sources for a market data venue.
type Provider interface {
	Name() string
	Historical(symbol, interval string) HistoricalSource
	Live(symbol, interval string) LiveSource
}
