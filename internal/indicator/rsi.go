package indicator

import "math"

// neutralRSI is reported wherever the ratio is undefined.
const neutralRSI = 50.0

// RSI returns the relative strength index for every position of values.
//
// Average gain and loss are simple rolling means over period deltas, not
// Wilder's smoothed averages. The first position has no delta and counts as
// zero gain and zero loss. Positions with fewer than period samples, and
// windows with neither gains nor losses, report 50. A window with gains and no
// losses reports 100.
func RSI(values []float64, period int) []float64 {
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)

	out := make([]float64, len(values))
	for i := range values {
		out[i] = rsiPoint(avgGain[i], avgLoss[i])
	}
	return out
}

func rsiPoint(gain, loss float64) float64 {
	switch {
	case math.IsNaN(gain) || math.IsNaN(loss):
		return neutralRSI
	case loss == 0 && gain == 0:
		return neutralRSI
	case loss == 0:
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}
