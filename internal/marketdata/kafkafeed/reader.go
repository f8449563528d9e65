// Package kafkafeed consumes the tick stream from a Kafka topic, as an
// alternative to the WebSocket feed.
package kafkafeed

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the feed needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Config configures the Kafka consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Feed forwards Kafka message values to the ingestor.
type Feed struct {
	open func() MessageReader
	// retryDelay is the pause after a transient read error.
	retryDelay     time.Duration
	reopenDelay    time.Duration
	maxReopenDelay time.Duration

	OnOpen  func()
	OnError func(err error)
}

// New builds a consumer-group reader for cfg. The reader is rebuilt whenever
// the stream ends.
func New(cfg Config) *Feed {
	log.Printf("[kafkafeed] consuming %s from %v as %s", cfg.Topic, cfg.Brokers, cfg.GroupID)
	return NewWithOpener(func() MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Brokers,
			Topic:             cfg.Topic,
			GroupID:           cfg.GroupID,
			MinBytes:          1,
			MaxBytes:          10e6,
			MaxWait:           200 * time.Millisecond,
			CommitInterval:    time.Second,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    10 * time.Second,
		})
	})
}

// NewWithOpener builds a feed over readers produced by open.
func NewWithOpener(open func() MessageReader) *Feed {
	return &Feed{
		open:           open,
		retryDelay:     time.Second,
		reopenDelay:    time.Second,
		maxReopenDelay: 30 * time.Second,
	}
}

// Run forwards message values into out until ctx is cancelled. When a reader
// reports end of stream it is closed and a fresh one opened, backing off
// exponentially while reopened readers deliver nothing.
func (f *Feed) Run(ctx context.Context, out chan<- []byte) error {
	delay := f.reopenDelay

	for {
		delivered, err := f.runOnce(ctx, out)
		if err == nil {
			return nil
		}
		if delivered {
			delay = f.reopenDelay
		}

		log.Printf("[kafkafeed] stream ended (%v), reopening in %s...", err, delay)
		if f.OnError != nil {
			f.OnError(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.maxReopenDelay {
			delay = f.maxReopenDelay
		}
	}
}

// runOnce reads from one reader until ctx is cancelled (nil) or the stream
// ends (io.EOF). delivered reports whether any message was forwarded.
func (f *Feed) runOnce(ctx context.Context, out chan<- []byte) (delivered bool, err error) {
	r := f.open()
	defer r.Close()
	if f.OnOpen != nil {
		f.OnOpen()
	}

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return delivered, nil
			}
			if errors.Is(err, io.EOF) {
				return delivered, err
			}
			log.Printf("[kafkafeed] read error: %v", err)
			if f.OnError != nil {
				f.OnError(err)
			}
			select {
			case <-ctx.Done():
				return delivered, nil
			case <-time.After(f.retryDelay):
			}
			continue
		}

		select {
		case out <- m.Value:
			delivered = true
		case <-ctx.Done():
			return delivered, nil
		}
	}
}
