// Package redis fans broadcast events out to Redis PubSub so that
// processes other than the websocket gateway can follow the live state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
)

const (
	defaultLatestTTL = 30 * time.Minute
	publishTimeout   = 2 * time.Second
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Prefix   string // channel and key prefix, e.g. "autotrader"
}

// Publisher mirrors every event to Redis:
//
//	PUBLISH {prefix}:{event}[:{account}]        event envelope
//	SET     {prefix}:latest:{event}[:{account}] event data, with TTL
//
// Calls go through a circuit breaker so a Redis outage costs nothing on the
// hot path.
type Publisher struct {
	client  *goredis.Client
	prefix  string
	cb      *CircuitBreaker
	metrics *metrics.Metrics
}

// New connects to Redis and pings the server.
func New(cfg Config, m *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg.Prefix, m), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, m *metrics.Metrics) *Publisher {
	if prefix == "" {
		prefix = "autotrader"
	}
	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		m.RedisCircuitBreakerState.Set(float64(to))
		if to == StateOpen {
			m.RedisCircuitBreakerTrips.Inc()
		}
	}
	return &Publisher{client: client, prefix: prefix, cb: cb, metrics: m}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Run publishes events from ch until ctx is cancelled or ch is closed.
func (p *Publisher) Run(ctx context.Context, ch <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := p.Publish(ctx, ev); err != nil && err != ErrCircuitOpen {
				log.Printf("[redis] publish %s: %v", ev.Type, err)
			}
		}
	}
}

// Publish writes one event through the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	envelope, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", ev.Type, err)
	}

	err = p.cb.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		pipe := p.client.Pipeline()
		pipe.Publish(cctx, p.Channel(ev.Type, ev.AccountKey), envelope)
		pipe.Set(cctx, p.LatestKey(ev.Type, ev.AccountKey), []byte(ev.Data), defaultLatestTTL)
		_, err := pipe.Exec(cctx)
		return err
	})
	if err != nil {
		p.metrics.RedisPublishErrs.Inc()
	}
	return err
}

// Latest returns the most recent data published for an event type.
func (p *Publisher) Latest(ctx context.Context, eventType, account string) ([]byte, error) {
	b, err := p.client.Get(ctx, p.LatestKey(eventType, account)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis get latest %s: %w", eventType, err)
	}
	return b, nil
}

// Channel returns the PubSub channel for an event.
func (p *Publisher) Channel(eventType, account string) string {
	if account == "" {
		return p.prefix + ":" + eventType
	}
	return p.prefix + ":" + eventType + ":" + account
}

// LatestKey returns the key holding the latest data for an event.
func (p *Publisher) LatestKey(eventType, account string) string {
	if account == "" {
		return p.prefix + ":latest:" + eventType
	}
	return p.prefix + ":latest:" + eventType + ":" + account
}

// BreakerState returns the circuit breaker state.
func (p *Publisher) BreakerState() State { return p.cb.CurrentState() }

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
