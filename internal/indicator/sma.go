package indicator

import "github.com/newthinker/structura/internal/core"

// SMA calculates Simple Moving Average
// Returns slice of length: len(values) - period + 1
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(values)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(values); i++ {
		sum = sum - values[i-period] + values[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// VolumeAverage returns, aligned to bar index, the mean volume of the
// period bars ending at i (inclusive). Indices below period are zero.
func VolumeAverage(bars []core.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	sma := SMA(core.Volumes(bars), period)
	for i := period; i < len(bars); i++ {
		out[i] = sma[i-period+1]
	}
	return out
}

// PriorVolumeAverage returns, aligned to bar index, the mean volume of
// the period bars before i. Indices below period are zero.
func PriorVolumeAverage(bars []core.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	sma := SMA(core.Volumes(bars), period)
	for i := period; i < len(bars); i++ {
		out[i] = sma[i-period]
	}
	return out
}
