// Package portfolio holds the pure average-cost math behind the paper ledger
// and the read-side valuation of a portfolio against live prices.
package portfolio

import (
	"fmt"

	"github.com/nestcub/autotrader/internal/model"
)

// Fill is the result of applying one order to a holding.
type Fill struct {
	// Holding is the position after the order. Quantity 0 means the holding
	// is removed.
	Holding model.Holding
	// BalanceDelta is negative for a buy and positive for a sell.
	BalanceDelta float64
	// Realized is (price - avgPrice) * quantity for a sell, 0 for a buy.
	Realized float64
}

// Apply computes the effect of o at price on holding h given the available
// balance. h with zero quantity means no position. Nothing is mutated; on
// error the caller's state is left as it was.
func Apply(balance float64, h model.Holding, o model.Order, price float64) (Fill, error) {
	if !o.Action.Valid() {
		return Fill{}, fmt.Errorf("%w: %q", model.ErrInvalidAction, o.Action)
	}
	if o.Quantity <= 0 {
		return Fill{}, model.ErrInvalidQuantity
	}
	switch o.Action {
	case model.SideBuy:
		return buy(balance, h, o, price)
	default:
		return sell(h, o, price)
	}
}

func buy(balance float64, h model.Holding, o model.Order, price float64) (Fill, error) {
	cost := price * float64(o.Quantity)
	if cost > balance {
		return Fill{}, fmt.Errorf("%w: need %.2f, have %.2f", model.ErrInsufficientFunds, cost, balance)
	}

	next := model.Holding{Symbol: o.Symbol, Quantity: o.Quantity, AvgPrice: price}
	if h.Quantity > 0 {
		total := h.Quantity + o.Quantity
		next.Quantity = total
		next.AvgPrice = (float64(h.Quantity)*h.AvgPrice + float64(o.Quantity)*price) / float64(total)
	}
	return Fill{Holding: next, BalanceDelta: -cost}, nil
}

func sell(h model.Holding, o model.Order, price float64) (Fill, error) {
	if h.Quantity <= 0 || o.Quantity > h.Quantity {
		return Fill{}, fmt.Errorf("%w: have %d %s, selling %d", model.ErrInsufficientHoldings, h.Quantity, o.Symbol, o.Quantity)
	}

	next := model.Holding{Symbol: o.Symbol, Quantity: h.Quantity - o.Quantity, AvgPrice: h.AvgPrice}
	if next.Quantity == 0 {
		next.AvgPrice = 0
	}
	proceeds := price * float64(o.Quantity)
	return Fill{
		Holding:      next,
		BalanceDelta: proceeds,
		Realized:     (price - h.AvgPrice) * float64(o.Quantity),
	}, nil
}
