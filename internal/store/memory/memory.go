// Package memory is a non-durable portfolio store for tests and STORE=memory.
package memory

import (
	"context"
	"sync"

	"github.com/nestcub/autotrader/internal/model"
)

// Store keeps portfolios in a map. Every read returns a copy.
type Store struct {
	mu         sync.Mutex
	portfolios map[string]*model.Portfolio

	// FailCommit, when set, is returned by CommitOrder without applying it.
	FailCommit error
}

// New creates an empty store.
func New() *Store {
	return &Store{portfolios: make(map[string]*model.Portfolio)}
}

func (s *Store) LoadPortfolio(_ context.Context, account string) (*model.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[account]
	if !ok {
		return nil, model.ErrUnknownAccount
	}
	return p.Clone(), nil
}

func (s *Store) CreatePortfolio(_ context.Context, account string, balance float64) (*model.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.portfolios[account]; ok {
		return p.Clone(), nil
	}
	p := model.NewPortfolio(account, balance)
	s.portfolios[account] = p
	return p.Clone(), nil
}

func (s *Store) CommitOrder(_ context.Context, c model.OrderCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCommit != nil {
		return s.FailCommit
	}
	p, ok := s.portfolios[c.AccountKey]
	if !ok {
		return model.ErrUnknownAccount
	}
	p.Balance = c.Balance
	if c.Holding.Quantity == 0 {
		delete(p.Holdings, c.Holding.Symbol)
	} else {
		p.Holdings[c.Holding.Symbol] = c.Holding
	}
	p.Transactions = append(p.Transactions, c.Transaction)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
