// Package gateway pushes broadcast events to browser websocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
)

// PortfolioSource supplies an authenticated client's portfolio on connect.
type PortfolioSource interface {
	Open(ctx context.Context, accountKey string) (*model.Portfolio, error)
}

type latestEntry struct {
	envelope []byte
	seq      int64
}

// Hub fans events out to connected clients. Public events (no account key)
// go to everyone; account events only to clients of that account.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seqs    map[string]int64

	replay  *ReplayBuffer
	Latency *LatencyTracker
	metrics *metrics.Metrics

	// Portfolios is optional; when set, authenticated clients receive their
	// portfolio immediately after connecting.
	Portfolios PortfolioSource

	upgrader websocket.Upgrader
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		seqs:    make(map[string]int64),
		replay:  NewReplayBuffer(256),
		Latency: NewLatencyTracker(10000),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// channelKey identifies the sequence stream an event belongs to.
func channelKey(ev model.Event) string {
	if ev.AccountKey == "" {
		return ev.Type
	}
	return ev.Type + ":" + ev.AccountKey
}

// Run broadcasts events from in until ctx is cancelled or in is closed.
func (h *Hub) Run(ctx context.Context, in <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// buildEnvelope writes {"event":...,"data":...,"ts":...,"seq":N} without a
// second marshal of the already-encoded payload.
func buildEnvelope(ev model.Event, seq int64) []byte {
	buf := make([]byte, 0, len(ev.Type)+len(ev.Data)+96)
	buf = append(buf, `{"event":"`...)
	buf = append(buf, ev.Type...)
	buf = append(buf, `","data":`...)
	if len(ev.Data) == 0 {
		buf = append(buf, "null"...)
	} else {
		buf = append(buf, ev.Data...)
	}
	buf = append(buf, `,"ts":"`...)
	buf = ev.TS.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// Broadcast stamps ev with its channel sequence number and delivers it.
// A client whose send queue is full misses the message.
func (h *Hub) Broadcast(ev model.Event) {
	key := channelKey(ev)

	h.mu.Lock()
	h.seqs[key]++
	seq := h.seqs[key]
	env := buildEnvelope(ev, seq)
	h.latest[key] = latestEntry{envelope: env, seq: seq}
	if ev.AccountKey == "" {
		h.replay.Push(seq, env)
	}
	var targets []*Client
	for c := range h.clients {
		if ev.AccountKey == "" || c.account == ev.AccountKey {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(env) && h.metrics != nil {
			h.metrics.FanoutDropsTotal.WithLabelValues("ws").Inc()
		}
	}
	if !ev.TS.IsZero() && len(targets) > 0 {
		h.Latency.Record(float64(time.Since(ev.TS).Microseconds()) / 1000)
	}
}

// ServeWS upgrades the request and registers a client. account is empty for
// anonymous clients. lastSeq, when positive, asks for replay of public
// events after that sequence number instead of the latest snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, account string, lastSeq int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}
	c := newClient(h, conn, account)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.queuePublicState(c, lastSeq)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected account=%q (%d total)", account, count)

	h.sendPortfolio(r.Context(), c)
	go c.writePump()
	go c.readPump()
}

// queuePublicState replays missed public envelopes, or the latest snapshot
// when the gap cannot be covered. Caller holds h.mu so no broadcast can be
// queued ahead of it.
func (h *Hub) queuePublicState(c *Client, lastSeq int64) {
	if lastSeq > 0 {
		if msgs, ok := h.replay.Since(lastSeq); ok {
			for _, m := range msgs {
				c.enqueue(m)
			}
			return
		}
	}
	if e, ok := h.latest[model.EventStocksUpdated]; ok {
		c.enqueue(e.envelope)
	}
}

// sendPortfolio queues the authenticated client's own portfolio.
func (h *Hub) sendPortfolio(ctx context.Context, c *Client) {
	if c.account == "" || h.Portfolios == nil {
		return
	}
	p, err := h.Portfolios.Open(ctx, c.account)
	if err != nil {
		log.Printf("[gateway] initial portfolio for %s: %v", c.account, err)
		return
	}
	ev, err := model.NewEvent(model.EventPortfolioUpdated, c.account,
		model.PortfolioPayload{AccountKey: c.account, Portfolio: p.View()})
	if err != nil {
		log.Printf("[gateway] encode initial portfolio: %v", err)
		return
	}
	h.mu.RLock()
	seq := h.seqs[channelKey(ev)]
	h.mu.RUnlock()
	c.enqueue(buildEnvelope(ev, seq))
}

// RemoveClient unregisters c and closes its send queue. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
}

// Latest returns the most recent envelope of a public event type.
func (h *Hub) Latest(eventType string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[eventType]
	return e.envelope, ok
}

// Seq returns the current sequence number of a public event type.
func (h *Hub) Seq(eventType string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seqs[eventType]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.RemoveClient(c)
	}
}
