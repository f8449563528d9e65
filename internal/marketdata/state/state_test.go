package state

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/nestcub/autotrader/internal/model"
)

func names(sym string) (string, bool) {
	if sym == "TCS.NS" {
		return "Tata Consultancy Services", true
	}
	return "", false
}

// fixedDeriver reports a result once the window holds at least min prices.
func fixedDeriver(min int, action model.Action) Deriver {
	return func(values []float64, price float64) (model.IndicatorSnapshot, model.TradeSignal, bool) {
		if len(values) < min {
			return model.IndicatorSnapshot{}, model.TradeSignal{}, false
		}
		return model.IndicatorSnapshot{RSI: 55, Support: values[0]},
			model.TradeSignal{Action: action, StopLoss: price - 1}, true
	}
}

func TestUpdate_PlaceholdersBeforeHistory(t *testing.T) {
	s := New(50, names)
	prev, v := s.Update(model.Quote{Symbol: "TCS.NS", Price: 10, PercentChange: 1.5, Volume: 7, Timestamp: "t1"}, fixedDeriver(3, model.ActionBuy))

	if prev != model.ActionNone {
		t.Errorf("prev = %q, want -", prev)
	}
	if v.Name != "Tata Consultancy Services" || v.Price != 10 || v.Change != 1.5 || v.Volume != 7 {
		t.Errorf("unexpected view %+v", v)
	}
	if v.TradeSignal != model.ActionNone || v.StopLoss != nil || v.Indicators != nil {
		t.Errorf("expected placeholders, got %+v", v)
	}

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"name", "price", "change", "volume", "timestamp", "trade_signal", "stop_loss", "indicators", "history"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("snapshot missing key %q", k)
		}
	}
	if raw["stop_loss"] != nil || raw["indicators"] != nil {
		t.Errorf("absent fields should serialise as null: %s", b)
	}
}

func TestUpdate_DerivesOnceEnoughHistory(t *testing.T) {
	s := New(50, names)
	d := fixedDeriver(3, model.ActionBuy)
	s.Update(model.Quote{Symbol: "TCS.NS", Price: 1}, d)
	s.Update(model.Quote{Symbol: "TCS.NS", Price: 2}, d)
	prev, v := s.Update(model.Quote{Symbol: "TCS.NS", Price: 3}, d)

	if prev != model.ActionNone {
		t.Errorf("prev = %q", prev)
	}
	if v.TradeSignal != model.ActionBuy || v.StopLoss == nil || *v.StopLoss != 2 {
		t.Fatalf("unexpected signal in %+v", v)
	}
	if v.Indicators == nil || v.Indicators.Support != 1 {
		t.Fatalf("unexpected indicators %+v", v.Indicators)
	}

	prev, _ = s.Update(model.Quote{Symbol: "TCS.NS", Price: 4}, fixedDeriver(3, model.ActionHold))
	if prev != model.ActionBuy {
		t.Errorf("prev = %q, want BUY", prev)
	}
}

func TestUpdate_WindowBounded(t *testing.T) {
	s := New(5, nil)
	for i := 0; i < 12; i++ {
		s.Update(model.Quote{Symbol: "X", Price: float64(i)}, nil)
	}
	v, ok := s.View("X")
	if !ok {
		t.Fatal("expected view for X")
	}
	if len(v.History) != 5 || v.History[0] != 7 || v.History[4] != 11 {
		t.Fatalf("history = %v", v.History)
	}
	if v.Name != "X" {
		t.Errorf("unknown names fall back to symbol, got %q", v.Name)
	}
}

func TestQuoteAndPrices(t *testing.T) {
	s := New(50, nil)
	if _, ok := s.Quote("A"); ok {
		t.Fatal("expected no quote before any tick")
	}
	s.Update(model.Quote{Symbol: "A", Price: 12.5}, nil)
	s.Update(model.Quote{Symbol: "B", Price: 3}, nil)

	q, ok := s.Quote("A")
	if !ok || q.Price != 12.5 {
		t.Fatalf("Quote(A) = %+v, %v", q, ok)
	}
	p := s.Prices()
	if len(p) != 2 || p["B"] != 3 {
		t.Fatalf("Prices() = %v", p)
	}
	if s.Len() != 2 || len(s.Snapshot()) != 2 {
		t.Fatalf("expected 2 symbols")
	}
}

func TestConsistentUnderConcurrency(t *testing.T) {
	s := New(50, nil)
	// Support always equals the quote price, so a torn read shows up as a mismatch.
	derive := func(values []float64, price float64) (model.IndicatorSnapshot, model.TradeSignal, bool) {
		return model.IndicatorSnapshot{Support: price}, model.TradeSignal{Action: model.ActionHold, StopLoss: price}, true
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			s.Update(model.Quote{Symbol: "X", Price: float64(i)}, derive)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				v, ok := s.View("X")
				if !ok {
					continue
				}
				if v.Indicators == nil || v.Indicators.Support != v.Price {
					t.Errorf("torn read: price=%v indicators=%+v", v.Price, v.Indicators)
					return
				}
			}
		}()
	}
	wg.Wait()
}
