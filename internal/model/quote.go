package model

// Quote is the latest market view of one symbol. It is replaced wholesale on
// every accepted tick.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PercentChange float64 `json:"change"`
	Volume        float64 `json:"volume"`
	Timestamp     string  `json:"timestamp"`
}

// QuoteFromTick builds the Quote carried by a tick.
func QuoteFromTick(t Tick) Quote {
	return Quote{
		Symbol:        t.Symbol,
		Price:         t.Price,
		PercentChange: t.ChangePercent,
		Volume:        t.DayVolume,
		Timestamp:     t.Timestamp,
	}
}

// IndicatorSnapshot holds the indicator values as of the newest sample in a
// symbol's rolling window.
type IndicatorSnapshot struct {
	MACD       float64 `json:"macd"`
	Signal     float64 `json:"signal"`
	RSI        float64 `json:"rsi"`
	EMAShort   float64 `json:"ema_short"`
	EMALong    float64 `json:"ema_long"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Action is the discrete trade action emitted by the signal classifier.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"

	// ActionNone is the placeholder shown before a symbol has enough history.
	ActionNone Action = "-"
)

// TradeSignal is the classifier output for the latest indicator snapshot.
type TradeSignal struct {
	Action   Action  `json:"action"`
	StopLoss float64 `json:"stop_loss"`
}
