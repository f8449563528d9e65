package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nestcub/autotrader/internal/model"
)

// LoadPortfolio reads an account's balance, holdings and full transaction
// history. It returns model.ErrUnknownAccount when the account does not exist.
func (s *Store) LoadPortfolio(ctx context.Context, account string) (*model.Portfolio, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_key = ?`, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query account %s: %w", account, err)
	}

	p := model.NewPortfolio(account, balance)

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity, avg_price FROM holdings WHERE account_key = ?`, account)
	if err != nil {
		return nil, fmt.Errorf("sqlite query holdings: %w", err)
	}
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgPrice); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite scan holding: %w", err)
		}
		p.Holdings[h.Symbol] = h
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	txns, err := s.Transactions(ctx, account, 0)
	if err != nil {
		return nil, err
	}
	p.Transactions = txns
	return p, nil
}

// Transactions returns an account's transactions oldest first. limit > 0
// keeps only the most recent limit rows.
func (s *Store) Transactions(ctx context.Context, account string, limit int) ([]model.Transaction, error) {
	query := `SELECT id, symbol, action, quantity, price, ts FROM transactions WHERE account_key = ? ORDER BY seq ASC`
	args := []any{account}
	if limit > 0 {
		query = `SELECT id, symbol, action, quantity, price, ts FROM (
			SELECT seq, id, symbol, action, quantity, price, ts FROM transactions
			WHERE account_key = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var action, ts string
		if err := rows.Scan(&t.ID, &t.Symbol, &action, &t.Quantity, &t.Price, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan transaction: %w", err)
		}
		t.Action = model.Side(action)
		t.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("sqlite parse transaction %s ts: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
