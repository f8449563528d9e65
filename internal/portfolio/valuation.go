package portfolio

import "github.com/nestcub/autotrader/internal/model"

// HoldingValue is a holding marked to the latest price.
type HoldingValue struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	AvgPrice     float64 `json:"avgPrice"`
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	ProfitLoss   float64 `json:"profit_loss"`
	// Priced is false when no quote has been seen for the symbol; the
	// holding is then marked at its average price.
	Priced bool `json:"priced"`
}

// Valuation is the read-side view of a portfolio. Building one never changes
// the holdings it was built from.
type Valuation struct {
	AccountKey   string         `json:"accountKey"`
	Balance      float64        `json:"balance"`
	Holdings     []HoldingValue `json:"holdings"`
	MarketValue  float64        `json:"market_value"`
	UnrealizedPL float64        `json:"unrealized_pl"`
	Equity       float64        `json:"equity"`
}

// Value marks every holding of p to prices.
func Value(p *model.Portfolio, prices map[string]float64) Valuation {
	v := Valuation{
		AccountKey: p.AccountKey,
		Balance:    p.Balance,
		Holdings:   make([]HoldingValue, 0, len(p.Holdings)),
	}
	for _, h := range p.SortedHoldings() {
		hv := HoldingValue{
			Symbol:       h.Symbol,
			Quantity:     h.Quantity,
			AvgPrice:     h.AvgPrice,
			CurrentPrice: h.AvgPrice,
		}
		if price, ok := prices[h.Symbol]; ok {
			hv.CurrentPrice = price
			hv.Priced = true
		}
		hv.CurrentValue = hv.CurrentPrice * float64(h.Quantity)
		hv.ProfitLoss = (hv.CurrentPrice - h.AvgPrice) * float64(h.Quantity)

		v.MarketValue += hv.CurrentValue
		v.UnrealizedPL += hv.ProfitLoss
		v.Holdings = append(v.Holdings, hv)
	}
	v.Equity = v.Balance + v.MarketValue
	return v
}

// Holds reports whether p has a position in symbol.
func Holds(p *model.Portfolio, symbol string) bool {
	_, ok := p.Holdings[symbol]
	return ok
}
