// Package ingest turns the raw tick stream into market state, signals and
// broadcast events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nestcub/autotrader/internal/indicator"
	"github.com/nestcub/autotrader/internal/marketdata/state"
	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
	"github.com/nestcub/autotrader/internal/notification"
	"github.com/nestcub/autotrader/internal/strategy"
)

// Catalog reports which symbols are tradable.
type Catalog interface {
	Contains(symbol string) bool
}

// Revaluer refreshes the read-side valuation of portfolios holding a symbol.
type Revaluer interface {
	RevalueSymbol(symbol string) int
}

// AlertSink receives signal-change alerts. It must not block.
type AlertSink interface {
	Enqueue(alert notification.Alert)
}

// StocksPayload is the stocks-updated wire shape.
type StocksPayload struct {
	Stocks map[string]state.SymbolView `json:"stocks"`
}

// Ingestor applies ticks one at a time. It is driven by a single goroutine.
type Ingestor struct {
	catalog Catalog
	state   *state.MarketState
	pub     model.Publisher
	metrics *metrics.Metrics

	// Optional collaborators.
	Revaluer Revaluer
	Alerts   AlertSink
	Health   *metrics.HealthStatus
}

// New creates an Ingestor.
func New(cat Catalog, st *state.MarketState, pub model.Publisher, m *metrics.Metrics) *Ingestor {
	return &Ingestor{catalog: cat, state: st, pub: pub, metrics: m}
}

// Run consumes raw feed messages until ctx is cancelled or in is closed.
// A bad message is logged and skipped; it never stops the loop.
func (ing *Ingestor) Run(ctx context.Context, in <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			if err := ing.HandleRaw(raw); err != nil {
				log.Printf("[ingest] %v", err)
			}
		}
	}
}

// HandleRaw decodes and applies one feed message.
func (ing *Ingestor) HandleRaw(raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ing.metrics.TicksRejected.WithLabelValues("panic").Inc()
			err = fmt.Errorf("panic processing tick: %v (raw: %.200s)", r, raw)
		}
	}()

	tick, err := model.DecodeTick(raw)
	if err != nil {
		ing.metrics.TicksRejected.WithLabelValues("decode").Inc()
		return fmt.Errorf("%w (raw: %.200s)", err, raw)
	}
	return ing.Handle(tick)
}

// ErrNotInCatalog is returned for ticks of untradable symbols.
var ErrNotInCatalog = errors.New("symbol not in catalog")

// Handle applies one decoded tick: update the window and quote, recompute
// indicators and signal once enough history exists, then publish the
// snapshot and revalue portfolios holding the symbol.
func (ing *Ingestor) Handle(tick model.Tick) error {
	if !ing.catalog.Contains(tick.Symbol) {
		ing.metrics.TicksRejected.WithLabelValues("catalog").Inc()
		return fmt.Errorf("%w: %s", ErrNotInCatalog, tick.Symbol)
	}

	prev, view := ing.state.Update(model.QuoteFromTick(tick), ing.derive)
	ing.metrics.TicksTotal.Inc()
	if ing.Health != nil {
		ing.Health.SetLastTickTime(time.Now())
		ing.Health.SetFeedConnected(true)
	}

	if view.StopLoss != nil {
		ing.metrics.SignalsTotal.WithLabelValues(string(view.TradeSignal)).Inc()
		if prev != view.TradeSignal {
			ing.metrics.SignalChanges.Inc()
			if ing.Alerts != nil {
				sig := model.TradeSignal{Action: view.TradeSignal, StopLoss: *view.StopLoss}
				ing.Alerts.Enqueue(notification.SignalChange(tick.Symbol, prev, sig, tick.Price))
			}
		}
	}

	ing.PublishSnapshot()
	if ing.Revaluer != nil {
		ing.Revaluer.RevalueSymbol(tick.Symbol)
	}
	return nil
}

// PublishSnapshot emits the full market snapshot as stocks-updated.
func (ing *Ingestor) PublishSnapshot() {
	ev, err := model.NewEvent(model.EventStocksUpdated, "", StocksPayload{Stocks: ing.state.Snapshot()})
	if err != nil {
		log.Printf("[ingest] encode snapshot: %v", err)
		return
	}
	ing.pub.Publish(ev)
}

func (ing *Ingestor) derive(values []float64, price float64) (model.IndicatorSnapshot, model.TradeSignal, bool) {
	start := time.Now()
	ind, ok := indicator.Compute(values)
	if !ok {
		return model.IndicatorSnapshot{}, model.TradeSignal{}, false
	}
	ing.metrics.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	return ind, strategy.Classify(ind, price), true
}
