package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/nestcub/autotrader/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/autotrader.db"
}

// Store persists accounts, holdings and transactions. Every order commit is
// one SQL transaction.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; per-account ordering is the ledger's job.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			account_key TEXT PRIMARY KEY,
			balance     REAL NOT NULL CHECK (balance >= 0),
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS holdings (
			account_key TEXT    NOT NULL REFERENCES accounts(account_key),
			symbol      TEXT    NOT NULL,
			quantity    INTEGER NOT NULL CHECK (quantity > 0),
			avg_price   REAL    NOT NULL CHECK (avg_price >= 0),
			PRIMARY KEY (account_key, symbol)
		);

		CREATE TABLE IF NOT EXISTS transactions (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT    NOT NULL UNIQUE,
			account_key TEXT    NOT NULL REFERENCES accounts(account_key),
			symbol      TEXT    NOT NULL,
			action      TEXT    NOT NULL,
			quantity    INTEGER NOT NULL,
			price       REAL    NOT NULL,
			ts          TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_key, seq);
	`)
	return err
}

// CreatePortfolio inserts an empty account, or returns the existing one.
func (s *Store) CreatePortfolio(ctx context.Context, account string, balance float64) (*model.Portfolio, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (account_key, balance, created_at) VALUES (?, ?, ?)`,
		account, balance, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite create account %s: %w", account, err)
	}
	return s.LoadPortfolio(ctx, account)
}

// CommitOrder applies balance, holding and transaction in one SQL
// transaction. Any failure rolls the whole order back.
func (s *Store) CommitOrder(ctx context.Context, c model.OrderCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	if err := commitOrder(ctx, tx, c); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func commitOrder(ctx context.Context, tx *sql.Tx, c model.OrderCommit) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE account_key = ?`, c.Balance, c.AccountKey)
	if err != nil {
		return fmt.Errorf("sqlite update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite update balance: %w", err)
	} else if n == 0 {
		return model.ErrUnknownAccount
	}

	if c.Holding.Quantity == 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE account_key = ? AND symbol = ?`, c.AccountKey, c.Holding.Symbol)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO holdings (account_key, symbol, quantity, avg_price) VALUES (?, ?, ?, ?)
			ON CONFLICT (account_key, symbol) DO UPDATE SET quantity = excluded.quantity, avg_price = excluded.avg_price
		`, c.AccountKey, c.Holding.Symbol, c.Holding.Quantity, c.Holding.AvgPrice)
	}
	if err != nil {
		return fmt.Errorf("sqlite write holding: %w", err)
	}

	t := c.Transaction
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_key, symbol, action, quantity, price, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, c.AccountKey, t.Symbol, string(t.Action), t.Quantity, t.Price, t.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite insert transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
