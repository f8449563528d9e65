// Package notification delivers trading alerts, such as a symbol's signal
// flipping from HOLD to BUY, to external channels.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nestcub/autotrader/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
}

// SignalChange builds the alert sent when a symbol's action changes.
func SignalChange(symbol string, from model.Action, sig model.TradeSignal, price float64) Alert {
	level := AlertInfo
	if sig.Action == model.ActionSell {
		level = AlertWarning
	}
	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s %s", symbol, sig.Action),
		Message: fmt.Sprintf("%s -> %s at %.2f, stop loss %.2f", from, sig.Action, price, sig.StopLoss),
		Symbol:  symbol,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to each notifier and returns the first error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Queue decouples alert producers from slow backends. Enqueue never blocks;
// alerts beyond the buffer are dropped and logged.
type Queue struct {
	next    Notifier
	ch      chan Alert
	timeout time.Duration
}

// NewQueue creates a queue of the given size in front of next.
func NewQueue(next Notifier, size int) *Queue {
	return &Queue{next: next, ch: make(chan Alert, size), timeout: 10 * time.Second}
}

// Enqueue schedules alert for delivery.
func (q *Queue) Enqueue(alert Alert) {
	select {
	case q.ch <- alert:
	default:
		log.Printf("[notify] queue full, dropping alert %q", alert.Title)
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-q.ch:
			sctx, cancel := context.WithTimeout(ctx, q.timeout)
			if err := q.next.Send(sctx, a); err != nil {
				log.Printf("[notify] deliver %q: %v", a.Title, err)
			}
			cancel()
		}
	}
}
