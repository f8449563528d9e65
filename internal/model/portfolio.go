package model

import (
	"sort"
	"time"
)

// Side is the direction of a paper order as sent by the order intake.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a recognised order side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is a request to buy or sell a quantity of one symbol at the current
// live price.
type Order struct {
	Action   Side   `json:"action"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// Holding is a position in one symbol. A Holding with zero quantity is never
// retained; it is removed from the portfolio instead.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgPrice float64 `json:"avgPrice"`
}

// Transaction is an immutable audit record of one executed order.
type Transaction struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Action    Side      `json:"action"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Portfolio is the paper-trading ledger owned by a single account.
type Portfolio struct {
	AccountKey   string             `json:"-"`
	Balance      float64            `json:"balance"`
	Holdings     map[string]Holding `json:"-"`
	Transactions []Transaction      `json:"-"`
}

// NewPortfolio returns an empty portfolio with the given starting balance.
func NewPortfolio(accountKey string, balance float64) *Portfolio {
	return &Portfolio{
		AccountKey: accountKey,
		Balance:    balance,
		Holdings:   make(map[string]Holding),
	}
}

// Clone returns a deep copy so callers can mutate it without touching p.
func (p *Portfolio) Clone() *Portfolio {
	cp := &Portfolio{
		AccountKey:   p.AccountKey,
		Balance:      p.Balance,
		Holdings:     make(map[string]Holding, len(p.Holdings)),
		Transactions: make([]Transaction, len(p.Transactions)),
	}
	for k, h := range p.Holdings {
		cp.Holdings[k] = h
	}
	copy(cp.Transactions, p.Transactions)
	return cp
}

// SortedHoldings returns holdings ordered by symbol for stable output.
func (p *Portfolio) SortedHoldings() []Holding {
	out := make([]Holding, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OrderCommit is the durable effect of one executed order. Stores apply it as
// a single atomic unit.
type OrderCommit struct {
	AccountKey string
	Balance    float64
	// Holding with zero quantity deletes the position.
	Holding     Holding
	Transaction Transaction
}
