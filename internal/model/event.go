package model

import (
	"encoding/json"
	"time"
)

// Event types emitted to the broadcast boundary.
const (
	EventStocksUpdated    = "stocks-updated"
	EventPortfolioUpdated = "portfolio-updated"
	EventPortfolioValued  = "portfolio-valued"
)

// Event is one message for push subscribers. Data is pre-encoded JSON so
// every downstream consumer shares a single marshal.
type Event struct {
	Type       string          `json:"event"`
	AccountKey string          `json:"account_key,omitempty"`
	Data       json.RawMessage `json:"data"`
	TS         time.Time       `json:"ts"`
}

// NewEvent marshals payload into an Event stamped with the current time.
func NewEvent(eventType, accountKey string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:       eventType,
		AccountKey: accountKey,
		Data:       b,
		TS:         time.Now().UTC(),
	}, nil
}

// Publisher accepts events for the broadcast boundary. Publish must not block
// the caller on slow consumers.
type Publisher interface {
	Publish(ev Event)
}

// PortfolioPayload is the portfolio-updated wire shape.
type PortfolioPayload struct {
	AccountKey string        `json:"accountKey"`
	Portfolio  PortfolioView `json:"portfolio"`
}

// PortfolioView is the serialisable projection of a Portfolio.
type PortfolioView struct {
	Balance      float64           `json:"balance"`
	Holdings     []Holding         `json:"holdings"`
	Transactions []TransactionView `json:"transactions"`
}

// TransactionView is a Transaction with an ISO-8601 timestamp.
type TransactionView struct {
	Action    Side    `json:"action"`
	Symbol    string  `json:"symbol"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

// View projects p into its wire shape.
func (p *Portfolio) View() PortfolioView {
	txs := make([]TransactionView, len(p.Transactions))
	for i, t := range p.Transactions {
		txs[i] = TransactionView{
			Action:    t.Action,
			Symbol:    t.Symbol,
			Quantity:  t.Quantity,
			Price:     t.Price,
			Timestamp: t.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}
	return PortfolioView{
		Balance:      p.Balance,
		Holdings:     p.SortedHoldings(),
		Transactions: txs,
	}
}
