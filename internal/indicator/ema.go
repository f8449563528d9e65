package indicator

import "math"

// EMA returns the exponential moving average of values for the given span.
// Smoothing factor α = 2/(span+1); the first output equals the first input
// and there is no warm-up padding, so out[i] is defined for every i.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return fillGaps(out)
}

// fillGaps replaces NaN positions with the previous defined value and any
// leading NaN run with the first defined value.
func fillGaps(xs []float64) []float64 {
	first := -1
	for i, v := range xs {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return xs
	}
	for i := 0; i < first; i++ {
		xs[i] = xs[first]
	}
	for i := first + 1; i < len(xs); i++ {
		if math.IsNaN(xs[i]) {
			xs[i] = xs[i-1]
		}
	}
	return xs
}
