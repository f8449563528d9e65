// Package indicator computes technical indicators over a bounded price
// window. Everything here is a pure function of its input slice.
package indicator

import "github.com/nestcub/autotrader/internal/model"

// Indicator periods.
const (
	MACDFast    = 12
	MACDSlow    = 26
	MACDSignal  = 9
	RSIPeriod   = 14
	EMAShort    = 9
	EMALong     = 20
	LevelWindow = 20

	// MinSamples is the shortest window Compute accepts.
	MinSamples = MACDSlow
)

// Compute recomputes every indicator over the full window and returns the
// values at the newest sample. It reports false when the window holds fewer
// than MinSamples prices.
func Compute(values []float64) (model.IndicatorSnapshot, bool) {
	n := len(values)
	if n < MinSamples {
		return model.IndicatorSnapshot{}, false
	}

	macd, signal := MACD(values, MACDFast, MACDSlow, MACDSignal)
	rsi := RSI(values, RSIPeriod)
	short := EMA(values, EMAShort)
	long := EMA(values, EMALong)
	support, resistance := Levels(values, LevelWindow)

	return model.IndicatorSnapshot{
		MACD:       macd[n-1],
		Signal:     signal[n-1],
		RSI:        rsi[n-1],
		EMAShort:   short[n-1],
		EMALong:    long[n-1],
		Support:    support,
		Resistance: resistance,
	}, true
}
