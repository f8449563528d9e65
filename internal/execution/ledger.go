// Package execution applies paper orders against live prices and keeps each
// account's ledger consistent with the durable store.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nestcub/autotrader/internal/logger"
	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
	"github.com/nestcub/autotrader/internal/portfolio"
)

// Store is the durable side of the ledger.
type Store interface {
	// LoadPortfolio returns model.ErrUnknownAccount when the account was never created.
	LoadPortfolio(ctx context.Context, account string) (*model.Portfolio, error)
	// CreatePortfolio creates an empty portfolio, or returns the existing one.
	CreatePortfolio(ctx context.Context, account string, balance float64) (*model.Portfolio, error)
	// CommitOrder persists balance, holding and transaction all-or-nothing.
	CommitOrder(ctx context.Context, c model.OrderCommit) error
}

// PriceSource is the read side of the market state used for fills and valuation.
type PriceSource interface {
	Quote(symbol string) (model.Quote, bool)
	Prices() map[string]float64
}

type account struct {
	mu   sync.Mutex // held from read through commit
	p    atomic.Pointer[model.Portfolio]
	refs int // callers holding this entry; guarded by Ledger.mu
}

// Ledger serialises orders per account. Different accounts never contend.
type Ledger struct {
	store          Store
	prices         PriceSource
	pub            model.Publisher
	metrics        *metrics.Metrics
	defaultBalance float64

	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	accounts map[string]*account
}

// NewLedger creates a ledger. pub may be nil.
func NewLedger(store Store, prices PriceSource, pub model.Publisher, m *metrics.Metrics, defaultBalance float64) *Ledger {
	return &Ledger{
		store:          store,
		prices:         prices,
		pub:            pub,
		metrics:        m,
		defaultBalance: defaultBalance,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
		accounts:       make(map[string]*account),
	}
}

// acquire returns the account's entry, creating it if needed. Every acquire
// is paired with release.
func (l *Ledger) acquire(key string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[key]
	if !ok {
		a = &account{}
		l.accounts[key] = a
	}
	a.refs++
	return a
}

// release drops an entry that no caller holds and that never loaded a
// portfolio, so lookups of unknown accounts leave nothing behind.
func (l *Ledger) release(key string, a *account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a.refs--
	if a.refs == 0 && a.p.Load() == nil && l.accounts[key] == a {
		delete(l.accounts, key)
	}
}

// tracked reports the number of cached account entries.
func (l *Ledger) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.accounts)
}

// loadLocked fills a.p from the store. Caller holds a.mu.
func (l *Ledger) loadLocked(ctx context.Context, key string, a *account, create bool) (*model.Portfolio, error) {
	if p := a.p.Load(); p != nil {
		return p, nil
	}

	p, err := l.store.LoadPortfolio(ctx, key)
	if errors.Is(err, model.ErrUnknownAccount) && create {
		p, err = l.store.CreatePortfolio(ctx, key, l.defaultBalance)
		if err == nil {
			log.Printf("[ledger] created portfolio for %s with balance %.2f", key, l.defaultBalance)
		}
	}
	if err != nil {
		return nil, err
	}

	a.p.Store(p)
	l.metrics.OpenPortfolios.Inc()
	return p, nil
}

// Open returns the account's portfolio, creating it with the default balance
// on first access. The result is a copy.
func (l *Ledger) Open(ctx context.Context, key string) (*model.Portfolio, error) {
	a := l.acquire(key)
	defer l.release(key, a)
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := l.loadLocked(ctx, key, a, true)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", key, err)
	}
	return p.Clone(), nil
}

// Valuation returns the account's portfolio together with its valuation at
// the latest prices. Both come from the same snapshot.
func (l *Ledger) Valuation(ctx context.Context, key string) (*model.Portfolio, portfolio.Valuation, error) {
	p, err := l.Open(ctx, key)
	if err != nil {
		return nil, portfolio.Valuation{}, err
	}
	return p, portfolio.Value(p, l.prices.Prices()), nil
}

// Apply executes o for the account at the current live price. On any error
// the portfolio and the store are unchanged. The returned portfolio is a copy.
func (l *Ledger) Apply(ctx context.Context, key string, o model.Order) (*model.Portfolio, error) {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(key, time.Now()))

	p, err := l.apply(ctx, key, o)
	result := "ok"
	if err != nil {
		result = errorKind(err)
		slog.Warn("order rejected",
			append(logger.LogWithTrace(ctx),
				slog.String("account", key),
				slog.String("action", string(o.Action)),
				slog.String("symbol", o.Symbol),
				slog.Int64("quantity", o.Quantity),
				slog.String("error", err.Error()))...)
	}
	action := string(o.Action)
	if !o.Action.Valid() {
		action = "invalid"
	}
	l.metrics.OrdersTotal.WithLabelValues(action, result).Inc()
	return p, err
}

func (l *Ledger) apply(ctx context.Context, key string, o model.Order) (*model.Portfolio, error) {
	a := l.acquire(key)
	defer l.release(key, a)
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, err := l.loadLocked(ctx, key, a, false)
	if err != nil {
		return nil, err
	}

	q, ok := l.prices.Quote(o.Symbol)
	if !ok || q.Price <= 0 {
		return nil, fmt.Errorf("%w: %q has no tradable price", model.ErrInvalidSymbol, o.Symbol)
	}

	held := cur.Holdings[o.Symbol]
	fill, err := portfolio.Apply(cur.Balance, held, o, q.Price)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	next.Balance += fill.BalanceDelta
	if fill.Holding.Quantity == 0 {
		delete(next.Holdings, o.Symbol)
	} else {
		next.Holdings[o.Symbol] = fill.Holding
	}
	txn := model.Transaction{
		ID:        l.newID(),
		Symbol:    o.Symbol,
		Action:    o.Action,
		Quantity:  o.Quantity,
		Price:     q.Price,
		Timestamp: l.now(),
	}
	next.Transactions = append(next.Transactions, txn)

	start := time.Now()
	err = l.store.CommitOrder(ctx, model.OrderCommit{
		AccountKey:  key,
		Balance:     next.Balance,
		Holding:     fill.Holding,
		Transaction: txn,
	})
	l.metrics.LedgerCommitDur.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("ledger: commit %s: %w", key, err)
	}
	a.p.Store(next)

	slog.Info("order filled",
		append(logger.LogWithTrace(ctx),
			slog.String("account", key),
			slog.String("action", string(o.Action)),
			slog.String("symbol", o.Symbol),
			slog.Int64("quantity", o.Quantity),
			slog.Float64("price", q.Price),
			slog.Float64("balance", next.Balance))...)

	l.publish(model.EventPortfolioUpdated, key, model.PortfolioPayload{AccountKey: key, Portfolio: next.View()})
	return next.Clone(), nil
}

// RevalueSymbol publishes a fresh valuation for every cached portfolio that
// holds symbol. Holdings are read, never written. It returns the number of
// portfolios revalued.
func (l *Ledger) RevalueSymbol(symbol string) int {
	l.mu.Lock()
	held := make([]*model.Portfolio, 0)
	for _, a := range l.accounts {
		if p := a.p.Load(); p != nil && portfolio.Holds(p, symbol) {
			held = append(held, p)
		}
	}
	l.mu.Unlock()

	if len(held) == 0 {
		return 0
	}
	prices := l.prices.Prices()
	for _, p := range held {
		l.publish(model.EventPortfolioValued, p.AccountKey, portfolio.Value(p, prices))
	}
	return len(held)
}

func (l *Ledger) publish(eventType, key string, payload any) {
	if l.pub == nil {
		return
	}
	ev, err := model.NewEvent(eventType, key, payload)
	if err != nil {
		log.Printf("[ledger] encode %s for %s: %v", eventType, key, err)
		return
	}
	l.pub.Publish(ev)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidSymbol):
		return "invalid_symbol"
	case errors.Is(err, model.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, model.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, model.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, model.ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, model.ErrUnknownAccount):
		return "unknown_account"
	default:
		return "internal"
	}
}
