package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nestcub/autotrader/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func txn(id string, side model.Side, qty int64, price float64) model.Transaction {
	return model.Transaction{
		ID:        id,
		Symbol:    "TCS.NS",
		Action:    side,
		Quantity:  qty,
		Price:     price,
		Timestamp: time.Date(2024, 6, 10, 4, 0, 0, 0, time.UTC),
	}
}

func TestStore_UnknownAccount(t *testing.T) {
	s := openTest(t)
	if _, err := s.LoadPortfolio(context.Background(), "nobody"); !errors.Is(err, model.ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
	err := s.CommitOrder(context.Background(), model.OrderCommit{
		AccountKey: "nobody", Balance: 1, Transaction: txn("x", model.SideBuy, 1, 1),
	})
	if !errors.Is(err, model.ErrUnknownAccount) {
		t.Fatalf("commit for missing account: expected ErrUnknownAccount, got %v", err)
	}
}

func TestStore_CreateIsIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if _, err := s.CreatePortfolio(ctx, "alice", 100000); err != nil {
		t.Fatal(err)
	}
	p, err := s.CreatePortfolio(ctx, "alice", 5)
	if err != nil {
		t.Fatal(err)
	}
	if p.Balance != 100000 || p.AccountKey != "alice" {
		t.Fatalf("unexpected portfolio %+v", p)
	}
}

func TestStore_CommitRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	s.CreatePortfolio(ctx, "alice", 100000)

	commits := []model.OrderCommit{
		{AccountKey: "alice", Balance: 99000, Holding: model.Holding{Symbol: "TCS.NS", Quantity: 10, AvgPrice: 100}, Transaction: txn("t1", model.SideBuy, 10, 100)},
		{AccountKey: "alice", Balance: 97800, Holding: model.Holding{Symbol: "TCS.NS", Quantity: 20, AvgPrice: 110}, Transaction: txn("t2", model.SideBuy, 10, 120)},
		{AccountKey: "alice", Balance: 100400, Holding: model.Holding{Symbol: "TCS.NS"}, Transaction: txn("t3", model.SideSell, 20, 130)},
	}
	for i, c := range commits {
		if err := s.CommitOrder(ctx, c); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	p, err := s.LoadPortfolio(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Balance != 100400 {
		t.Errorf("balance = %v", p.Balance)
	}
	if len(p.Holdings) != 0 {
		t.Errorf("zero quantity holding should be deleted, got %+v", p.Holdings)
	}
	if len(p.Transactions) != 3 || p.Transactions[0].ID != "t1" || p.Transactions[2].Action != model.SideSell {
		t.Fatalf("unexpected transactions %+v", p.Transactions)
	}
	if !p.Transactions[0].Timestamp.Equal(commits[0].Transaction.Timestamp) {
		t.Errorf("timestamp round trip: %v", p.Transactions[0].Timestamp)
	}

	last, err := s.Transactions(ctx, "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || last[0].ID != "t2" || last[1].ID != "t3" {
		t.Fatalf("limited transactions = %+v", last)
	}
}

func TestStore_CommitIsAtomic(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	s.CreatePortfolio(ctx, "alice", 100000)
	ok := model.OrderCommit{AccountKey: "alice", Balance: 99000, Holding: model.Holding{Symbol: "TCS.NS", Quantity: 10, AvgPrice: 100}, Transaction: txn("dup", model.SideBuy, 10, 100)}
	if err := s.CommitOrder(ctx, ok); err != nil {
		t.Fatal(err)
	}

	// Reusing the transaction id fails on the last statement of the order.
	bad := model.OrderCommit{AccountKey: "alice", Balance: 1, Holding: model.Holding{Symbol: "TCS.NS", Quantity: 999, AvgPrice: 1}, Transaction: txn("dup", model.SideBuy, 989, 1)}
	if err := s.CommitOrder(ctx, bad); err == nil {
		t.Fatal("expected unique violation")
	}

	p, _ := s.LoadPortfolio(ctx, "alice")
	if p.Balance != 99000 || p.Holdings["TCS.NS"].Quantity != 10 || len(p.Transactions) != 1 {
		t.Fatalf("partial commit leaked: %+v", p)
	}
}

func TestStore_Ping(t *testing.T) {
	s := openTest(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
