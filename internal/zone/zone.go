// Package zone detects fair value gaps and the order-block candles that
// precede them, scores them and tracks their mitigation.
package zone

import (
	"fmt"
	"math"

	"github.com/newthinker/structura/internal/core"
)

// Label distinguishes gap zones from order blocks.
type Label string

const (
	LabelFVG Label = "FVG"
	LabelOB  Label = "OB"
)

// Side is the direction a zone supports.
type Side string

const (
	Bull Side = "BULL"
	Bear Side = "BEAR"
)

// Status is the mitigation state of a zone.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusMitigated Status = "MITIGATED"
)

// Zone is a detected price band. Index is the originating bar: the third
// bar of the gap for FVGs, the candle itself for order blocks.
type Zone struct {
	ID             string  `json:"id"`
	Label          Label   `json:"label"`
	Side           Side    `json:"side"`
	Top            float64 `json:"top"`
	Bottom         float64 `json:"bottom"`
	Index          int     `json:"index"`
	OriginTime     int64   `json:"origin_time"`
	Status         Status  `json:"status"`
	MitigatedTime  int64   `json:"mitigated_time,omitempty"`
	MitigatedIndex int     `json:"mitigated_index"`
	Score          float64 `json:"score"`

	// FVG details
	GapSize      float64 `json:"gap_size,omitempty"`
	Impulse      float64 `json:"impulse,omitempty"`
	OrderBlockID string  `json:"order_block_id,omitempty"`

	// OB details
	Volume float64 `json:"volume,omitempty"`
	Size   float64 `json:"size,omitempty"`
	HasBOS bool    `json:"has_bos,omitempty"`
}

// Upper returns the higher bound regardless of construction order.
func (z Zone) Upper() float64 { return math.Max(z.Top, z.Bottom) }

// Lower returns the lower bound regardless of construction order.
func (z Zone) Lower() float64 { return math.Min(z.Top, z.Bottom) }

// Mid is the zone midpoint.
func (z Zone) Mid() float64 { return (z.Top + z.Bottom) / 2 }

// IsMitigated reports whether the zone has been revisited.
func (z Zone) IsMitigated() bool { return z.Status == StatusMitigated }

// MitigatedBefore reports whether the zone was revisited strictly before t.
func (z Zone) MitigatedBefore(t int64) bool {
	return z.IsMitigated() && z.MitigatedTime < t
}

func zoneID(label Label, side Side, index int) string {
	prefix := "fvg"
	if label == LabelOB {
		prefix = "ob"
	}
	dir := "l"
	if side == Bear {
		dir = "s"
	}
	return fmt.Sprintf("%s-%s-%d", prefix, dir, index)
}

// mitigate marks z with the first bar at or after from that overlaps it.
func mitigate(z *Zone, bars []core.Bar, from int) {
	for j := from; j < len(bars); j++ {
		if bars[j].Touches(z.Top, z.Bottom) {
			z.Status = StatusMitigated
			z.MitigatedTime = bars[j].Time
			z.MitigatedIndex = j
			return
		}
	}
}

// Gap is a raw three-bar discontinuity before any quality filtering.
type Gap struct {
	Side   Side
	Top    float64
	Bottom float64
}

// Size is the height of the gap.
func (g Gap) Size() float64 { return g.Top - g.Bottom }

// FindGaps reports the unfiltered gaps formed by bars[i-2] and bars[i].
// A bar can in principle produce both a bullish and a bearish gap only on
// malformed data; both are returned in that case, bullish first.
func FindGaps(bars []core.Bar, i int) []Gap {
	if i < 2 || i >= len(bars) {
		return nil
	}
	curr, prev2 := bars[i], bars[i-2]

	var gaps []Gap
	if curr.Low > prev2.High {
		gaps = append(gaps, Gap{Side: Bull, Top: curr.Low, Bottom: prev2.High})
	}
	if curr.High < prev2.Low {
		gaps = append(gaps, Gap{Side: Bear, Top: prev2.Low, Bottom: curr.High})
	}
	return gaps
}
