package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nestcub/autotrader/internal/catalog"
	"github.com/nestcub/autotrader/internal/execution"
	"github.com/nestcub/autotrader/internal/marketdata/state"
	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
	"github.com/nestcub/autotrader/internal/notification"
	"github.com/nestcub/autotrader/internal/store/memory"
)

type capture struct {
	mu     sync.Mutex
	events []model.Event
}

func (c *capture) Publish(ev model.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *capture) count(t string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (c *capture) last(t string) model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == t {
			return c.events[i]
		}
	}
	return model.Event{}
}

type alerts struct{ got []notification.Alert }

func (a *alerts) Enqueue(al notification.Alert) { a.got = append(a.got, al) }

type fixture struct {
	ing   *Ingestor
	state *state.MarketState
	pub   *capture
	m     *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.Default()
	st := state.New(50, cat.Name)
	pub := &capture{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return &fixture{ing: New(cat, st, pub, m), state: st, pub: pub, m: m}
}

func tickJSON(sym string, price float64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"price":%v,"changePercent":0.5,"dayVolume":1000,"timestamp":"1718000000000"}`, sym, price))
}

// upZigzag is 26 prices from 100 alternating +3/-2, ending 114, 112, 115.
func upZigzag() []float64 {
	out := []float64{100}
	for i := 0; i < 25; i++ {
		step := -2.0
		if i%2 == 0 {
			step = 3
		}
		out = append(out, out[len(out)-1]+step)
	}
	return out
}

func TestHandleRaw_BadMessagesAreSkipped(t *testing.T) {
	f := newFixture(t)

	bad := [][]byte{
		[]byte(`not json`),
		[]byte(`{"price":10}`),
		[]byte(`{"id":"TCS.NS"}`),
		[]byte(`{"id":"TCS.NS","price":"ten"}`),
		[]byte(`{"id":"TCS.NS","price":0}`),
		[]byte(`{"id":"TCS.NS","price":-100}`),
	}
	for _, raw := range bad {
		if err := f.ing.HandleRaw(raw); !errors.Is(err, model.ErrFeedDecode) {
			t.Errorf("%s: expected ErrFeedDecode, got %v", raw, err)
		}
	}
	if err := f.ing.HandleRaw(tickJSON("AAPL", 10)); !errors.Is(err, ErrNotInCatalog) {
		t.Errorf("expected ErrNotInCatalog, got %v", err)
	}
	if f.state.Len() != 0 || f.pub.count(model.EventStocksUpdated) != 0 {
		t.Fatal("rejected ticks must not touch state or publish")
	}
	if got := testutil.ToFloat64(f.m.TicksRejected.WithLabelValues("decode")); got != 6 {
		t.Fatalf("decode rejections = %v, want 6", got)
	}

	if err := f.ing.HandleRaw(tickJSON("TCS.NS", 10)); err != nil {
		t.Fatalf("good tick after bad ones: %v", err)
	}
	if f.pub.count(model.EventStocksUpdated) != 1 {
		t.Fatal("expected one stocks-updated event")
	}
}

func TestHandleRaw_NumericTimestamp(t *testing.T) {
	f := newFixture(t)
	if err := f.ing.HandleRaw([]byte(`{"id":"ITC.NS","price":401.5,"timestamp":1718000000123}`)); err != nil {
		t.Fatal(err)
	}
	q, _ := f.state.Quote("ITC.NS")
	if q.Timestamp != "1718000000123" || q.Price != 401.5 {
		t.Fatalf("quote = %+v", q)
	}
}

func TestHandle_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.ing.Revaluer = panicRevaluer{}

	err := f.ing.HandleRaw(tickJSON("TCS.NS", 10))
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if got := testutil.ToFloat64(f.m.TicksRejected.WithLabelValues("panic")); got != 1 {
		t.Fatalf("panic rejections = %v", got)
	}
}

type panicRevaluer struct{}

func (panicRevaluer) RevalueSymbol(string) int { panic("boom") }

func TestRun_KeepsGoingAfterErrors(t *testing.T) {
	f := newFixture(t)
	f.ing.Revaluer = panicRevaluer{}

	in := make(chan []byte, 3)
	in <- []byte(`garbage`)
	in <- tickJSON("INFY.NS", 1500)
	in <- tickJSON("WIPRO.NS", 450)
	close(in)
	f.ing.Run(context.Background(), in)

	if f.state.Len() != 2 {
		t.Fatalf("expected both good ticks applied, state has %d symbols", f.state.Len())
	}
}

func TestHandle_SignalsOnlyAfter26Samples(t *testing.T) {
	f := newFixture(t)
	prices := upZigzag()
	for i, p := range prices {
		if err := f.ing.HandleRaw(tickJSON("TCS.NS", p)); err != nil {
			t.Fatal(err)
		}
		v, _ := f.state.View("TCS.NS")
		if i < 25 && (v.TradeSignal != model.ActionNone || v.Indicators != nil) {
			t.Fatalf("tick %d: signal before enough history: %+v", i, v)
		}
	}

	var payload StocksPayload
	if err := json.Unmarshal(f.pub.last(model.EventStocksUpdated).Data, &payload); err != nil {
		t.Fatal(err)
	}
	v := payload.Stocks["TCS.NS"]
	if v.TradeSignal != model.ActionBuy {
		t.Fatalf("action = %s, want BUY", v.TradeSignal)
	}
	if v.StopLoss == nil || math.Abs(*v.StopLoss-112.7) > 1e-9 {
		t.Fatalf("stop loss = %v, want 112.7", v.StopLoss)
	}
	if v.Name != "Tata Consultancy Services" || len(v.History) != 26 {
		t.Fatalf("unexpected view %+v", v)
	}
	if f.pub.count(model.EventStocksUpdated) != 26 {
		t.Fatalf("expected one snapshot per tick")
	}
}

func TestHandle_AlertsOnSignalChange(t *testing.T) {
	f := newFixture(t)
	a := &alerts{}
	f.ing.Alerts = a

	for _, p := range upZigzag() {
		f.ing.HandleRaw(tickJSON("TCS.NS", p))
	}
	if len(a.got) != 1 || a.got[0].Title != "TCS.NS BUY" {
		t.Fatalf("alerts = %+v", a.got)
	}

	// Same action again does not alert.
	f.ing.HandleRaw(tickJSON("TCS.NS", 113))
	v, _ := f.state.View("TCS.NS")
	if v.TradeSignal == model.ActionBuy && len(a.got) != 1 {
		t.Fatalf("repeated BUY should not alert, alerts = %d", len(a.got))
	}
}

func TestEndToEnd_GoldenCrossThenBuy(t *testing.T) {
	f := newFixture(t)
	m := f.m
	ledger := execution.NewLedger(memory.New(), f.state, f.pub, m, 100000)
	f.ing.Revaluer = ledger
	ctx := context.Background()

	if _, err := ledger.Open(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	for _, p := range upZigzag() {
		if err := f.ing.HandleRaw(tickJSON("TCS.NS", p)); err != nil {
			t.Fatal(err)
		}
	}
	v, _ := f.state.View("TCS.NS")
	if v.TradeSignal != model.ActionBuy {
		t.Fatalf("action = %s, want BUY", v.TradeSignal)
	}

	p, err := ledger.Apply(ctx, "alice", model.Order{Action: model.SideBuy, Symbol: "TCS.NS", Quantity: 5})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if math.Abs(p.Balance-(100000-115*5)) > 1e-9 {
		t.Fatalf("balance = %v, want %v", p.Balance, 100000-115*5)
	}

	// The next tick revalues the open position without touching it.
	f.ing.HandleRaw(tickJSON("TCS.NS", 120))
	if f.pub.count(model.EventPortfolioValued) != 1 {
		t.Fatalf("expected one portfolio-valued event, got %d", f.pub.count(model.EventPortfolioValued))
	}
	after, _ := ledger.Open(ctx, "alice")
	if h := after.Holdings["TCS.NS"]; h.Quantity != 5 || h.AvgPrice != 115 {
		t.Fatalf("revaluation changed holding: %+v", h)
	}
}
