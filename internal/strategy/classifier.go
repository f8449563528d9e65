// Package strategy turns indicator snapshots into discrete trade signals.
package strategy

import "github.com/nestcub/autotrader/internal/model"

// Thresholds of the decision table.
const (
	Overbought    = 70.0
	Oversold      = 30.0
	StopLossRatio = 0.98
)

// Classify maps the latest indicators and the live entry price to a signal.
//
//	BUY  emaShort > emaLong, macd > signal, rsi < 70   stop = max(support, entry*0.98)
//	SELL emaShort < emaLong, macd < signal, rsi > 30   stop = support*0.98
//	HOLD anything else                                 stop = support
//
// Classify is pure; equal inputs always give equal output.
func Classify(ind model.IndicatorSnapshot, entryPrice float64) model.TradeSignal {
	switch {
	case ind.EMAShort > ind.EMALong && ind.MACD > ind.Signal && ind.RSI < Overbought:
		stop := entryPrice * StopLossRatio
		if ind.Support > stop {
			stop = ind.Support
		}
		return model.TradeSignal{Action: model.ActionBuy, StopLoss: stop}
	case ind.EMAShort < ind.EMALong && ind.MACD < ind.Signal && ind.RSI > Oversold:
		return model.TradeSignal{Action: model.ActionSell, StopLoss: ind.Support * StopLossRatio}
	default:
		return model.TradeSignal{Action: model.ActionHold, StopLoss: ind.Support}
	}
}
