// Package series holds the ordered, deduplicated bar window that every
// analysis pass reads from.
package series

import (
	"sort"
	"sync"

	"github.com/newthinker/structura/internal/core"
)

// UpdateKind describes what a streaming update did to the series.
type UpdateKind string

const (
	UpdateAppended  UpdateKind = "appended"
	UpdateReplaced  UpdateKind = "replaced"
	UpdateDiscarded UpdateKind = "discarded"
)

// Series is a bar window strictly increasing in time. It is safe for
// concurrent use; analysis passes must read through Snapshot.
type Series struct {
	mu       sync.RWMutex
	bars     []core.Bar
	capacity int
}

// New creates an empty series. A capacity <= 0 disables trimming.
func New(capacity int) *Series {
	return &Series{capacity: capacity}
}

// FromBars builds a series from an arbitrary batch.
func FromBars(bars []core.Bar, capacity int) *Series {
	s := New(capacity)
	s.Merge(bars)
	return s
}

// Merge folds a historical batch into the series. Bars are sorted by time;
// on a duplicate timestamp the incoming bar wins. Returns the number of
// bars added.
func (s *Series) Merge(batch []core.Bar) int {
	if len(batch) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.bars)
	combined := make([]core.Bar, 0, len(batch)+len(s.bars))
	combined = append(combined, batch...)
	combined = append(combined, s.bars...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Time < combined[j].Time
	})

	out := combined[:0]
	for i, b := range combined {
		if i > 0 && b.Time <= out[len(out)-1].Time {
			continue
		}
		out = append(out, b)
	}
	s.bars = out
	s.trim()
	return len(s.bars) - before
}

// Update applies one streaming bar. A bar older than the last one is
// discarded, one with the same timestamp replaces the in-progress bar and
// a newer one is appended.
func (s *Series) Update(bar core.Bar) UpdateKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.bars); n > 0 {
		last := s.bars[n-1]
		switch {
		case bar.Time < last.Time:
			return UpdateDiscarded
		case bar.Time == last.Time:
			s.bars[n-1] = bar
			return UpdateReplaced
		}
	}
	s.bars = append(s.bars, bar)
	s.trim()
	return UpdateAppended
}

func (s *Series) trim() {
	if s.capacity > 0 && len(s.bars) > s.capacity {
		drop := len(s.bars) - s.capacity
		s.bars = append([]core.Bar(nil), s.bars[drop:]...)
	}
}

// Snapshot returns a copy of the bars that later updates cannot mutate.
func (s *Series) Snapshot() []core.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Len returns the number of bars held.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// First returns the oldest bar.
func (s *Series) First() (core.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bars) == 0 {
		return core.Bar{}, false
	}
	return s.bars[0], true
}

// Last returns the newest bar.
func (s *Series) Last() (core.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bars) == 0 {
		return core.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}
