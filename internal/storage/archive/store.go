package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/newthinker/structura/internal/core"
)

const batchVersion = 1

// Batch is the archived form of one historical fetch.
type Batch struct {
	Version  int        `json:"version"`
	Symbol   string     `json:"symbol"`
	Interval string     `json:"interval"`
	Before   int64      `json:"before"`
	Bars     []core.Bar `json:"bars"`
}

// Store keeps raw bar batches keyed by symbol, interval and the
// exclusive upper time bound the batch was requested with.
type Store struct {
	storage Storage
}

// NewStore wraps a storage backend.
func NewStore(s Storage) *Store {
	return &Store{storage: s}
}

// BatchPath returns the archive path of a batch. A before of zero means
// "latest" and is never cached by callers since it moves.
func BatchPath(symbol, interval string, before int64) string {
	return path.Join("bars", strings.ToUpper(symbol), interval, strconv.FormatInt(before, 10)+".json")
}

// Put writes a batch.
func (s *Store) Put(ctx context.Context, symbol, interval string, before int64, bars []core.Bar) error {
	data, err := json.Marshal(Batch{
		Version:  batchVersion,
		Symbol:   symbol,
		Interval: interval,
		Before:   before,
		Bars:     bars,
	})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	return s.storage.Write(ctx, BatchPath(symbol, interval, before), data)
}

// Get reads a batch. A missing batch returns an error matching
// core.ErrArchiveMiss.
func (s *Store) Get(ctx context.Context, symbol, interval string, before int64) ([]core.Bar, error) {
	p := BatchPath(symbol, interval, before)
	data, err := s.storage.Read(ctx, p)
	if err != nil {
		return nil, err
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding batch %s: %w", p, err)
	}
	if b.Version != batchVersion {
		return nil, missing(p, fmt.Errorf("unsupported batch version %d", b.Version))
	}
	return b.Bars, nil
}

// Befores lists the archived batch bounds for a symbol and interval.
func (s *Store) Befores(ctx context.Context, symbol, interval string) ([]int64, error) {
	paths, err := s.storage.List(ctx, path.Join("bars", strings.ToUpper(symbol), interval))
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(paths))
	for _, p := range paths {
		v, err := strconv.ParseInt(strings.TrimSuffix(path.Base(p), ".json"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
