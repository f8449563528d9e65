// Package state is the process-wide registry of the latest market view per
// symbol: quote, rolling price window, indicators and signal.
package state

import (
	"sync"

	"github.com/nestcub/autotrader/internal/model"
	"github.com/nestcub/autotrader/internal/ringbuf"
)

// Deriver computes indicators and a signal from a price window and the
// newest price. It reports false when the window is too short.
type Deriver func(values []float64, price float64) (model.IndicatorSnapshot, model.TradeSignal, bool)

// NameFunc resolves a symbol's display name.
type NameFunc func(symbol string) (string, bool)

type entry struct {
	quote      model.Quote
	series     *ringbuf.Series
	indicators *model.IndicatorSnapshot
	signal     *model.TradeSignal
}

// SymbolView is the JSON projection of one symbol. Missing indicators are
// null, a missing signal is "-" with a null stop loss.
type SymbolView struct {
	Name        string                   `json:"name"`
	Price       float64                  `json:"price"`
	Change      float64                  `json:"change"`
	Volume      float64                  `json:"volume"`
	Timestamp   string                   `json:"timestamp"`
	TradeSignal model.Action             `json:"trade_signal"`
	StopLoss    *float64                 `json:"stop_loss"`
	Indicators  *model.IndicatorSnapshot `json:"indicators"`
	History     []float64                `json:"history"`
}

// MarketState guards every symbol's bundle with one RWMutex so readers always
// see a quote together with the indicators derived from it.
type MarketState struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	capacity int
	names    NameFunc
}

// New creates an empty registry whose windows hold capacity prices.
func New(capacity int, names NameFunc) *MarketState {
	if names == nil {
		names = func(string) (string, bool) { return "", false }
	}
	return &MarketState{
		entries:  make(map[string]*entry),
		capacity: capacity,
		names:    names,
	}
}

// Update pushes the quote price into the symbol's window, replaces the quote
// and, when derive reports a result, stores the new indicators and signal.
// A short window clears both. It returns the previous action (ActionNone when
// there was none) and the updated view.
func (s *MarketState) Update(q model.Quote, derive Deriver) (model.Action, SymbolView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[q.Symbol]
	if !ok {
		e = &entry{series: ringbuf.New(s.capacity)}
		s.entries[q.Symbol] = e
	}

	prev := model.ActionNone
	if e.signal != nil {
		prev = e.signal.Action
	}

	e.series.Push(q.Price)
	e.quote = q
	e.indicators, e.signal = nil, nil
	if derive != nil {
		if ind, sig, ok := derive(e.series.Values(), q.Price); ok {
			e.indicators, e.signal = &ind, &sig
		}
	}

	return prev, s.viewLocked(q.Symbol, e)
}

// Quote returns the latest quote of symbol.
func (s *MarketState) Quote(symbol string) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[symbol]
	if !ok {
		return model.Quote{}, false
	}
	return e.quote, true
}

// Prices returns the latest price of every known symbol.
func (s *MarketState) Prices() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.entries))
	for sym, e := range s.entries {
		out[sym] = e.quote.Price
	}
	return out
}

// View returns the projection of one symbol.
func (s *MarketState) View(symbol string) (SymbolView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[symbol]
	if !ok {
		return SymbolView{}, false
	}
	return s.viewLocked(symbol, e), true
}

// Snapshot returns the projection of every symbol seen so far.
func (s *MarketState) Snapshot() map[string]SymbolView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SymbolView, len(s.entries))
	for sym, e := range s.entries {
		out[sym] = s.viewLocked(sym, e)
	}
	return out
}

// Len returns the number of symbols seen so far.
func (s *MarketState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MarketState) viewLocked(symbol string, e *entry) SymbolView {
	name, ok := s.names(symbol)
	if !ok {
		name = symbol
	}
	v := SymbolView{
		Name:        name,
		Price:       e.quote.Price,
		Change:      e.quote.PercentChange,
		Volume:      e.quote.Volume,
		Timestamp:   e.quote.Timestamp,
		TradeSignal: model.ActionNone,
		History:     e.series.Values(),
	}
	if e.signal != nil {
		v.TradeSignal = e.signal.Action
		stop := e.signal.StopLoss
		v.StopLoss = &stop
	}
	if e.indicators != nil {
		ind := *e.indicators
		v.Indicators = &ind
	}
	return v
}
