package indicator

// MACD returns the MACD line EMA(fast) - EMA(slow) and its signal line,
// EMA(signal) of the MACD line.
func MACD(values []float64, fast, slow, signal int) (line, sig []float64) {
	f := EMA(values, fast)
	s := EMA(values, slow)
	line = make([]float64, len(values))
	for i := range values {
		line[i] = f[i] - s[i]
	}
	return line, EMA(line, signal)
}
