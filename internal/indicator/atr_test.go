package indicator

import (
	"testing"

	"github.com/newthinker/structura/internal/core"
	"github.com/stretchr/testify/assert"
)

func flatBars(n int, price, half float64) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		bars[i] = core.Bar{Time: int64(i * 60), Open: price, High: price + half, Low: price - half, Close: price}
	}
	return bars
}

func TestATR_FlatSeries(t *testing.T) {
	bars := flatBars(20, 100, 0.5)
	atr := ATR(bars, 14)

	assert.Len(t, atr, 20)
	for i := 0; i < 14; i++ {
		assert.Zero(t, atr[i], "index %d should have no ATR", i)
	}
	for i := 14; i < 20; i++ {
		assert.InDelta(t, 1.0, atr[i], 1e-9)
	}
}

func TestATR_IncludesGapsAgainstPrevClose(t *testing.T) {
	bars := flatBars(4, 100, 0.5)
	// Gap up: range 1, but 5.5 away from the previous close.
	bars[3] = core.Bar{Open: 105, High: 105.5, Low: 104.5, Close: 105}

	atr := ATR(bars, 3)
	// TR[1]=1, TR[2]=1, TR[3]=5.5
	assert.InDelta(t, 7.5/3, atr[3], 1e-9)
}

func TestATR_ShortInput(t *testing.T) {
	atr := ATR(flatBars(10, 100, 1), 14)
	assert.Len(t, atr, 10)
	for _, v := range atr {
		assert.Zero(t, v)
	}
}

func TestATRAt_FallsBackToRange(t *testing.T) {
	bars := flatBars(3, 100, 2)
	atr := ATR(bars, 14)
	assert.Equal(t, 4.0, ATRAt(atr, bars, 1))
}
