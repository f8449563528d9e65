package indicator

// Levels returns the minimum and maximum of the trailing window samples.
// A shorter input uses every sample. Empty input returns zeros.
func Levels(values []float64, window int) (support, resistance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	support, resistance = values[start], values[start]
	for _, v := range values[start+1:] {
		if v < support {
			support = v
		}
		if v > resistance {
			resistance = v
		}
	}
	return support, resistance
}
