// cmd/tickserver is a demo WebSocket tick server. It broadcasts random-walk
// ticks for the catalog symbols in the feed wire format so the engine can run
// without a market-data vendor:
//
//	{"id":"TCS.NS","price":3921.4,"changePercent":0.42,"dayVolume":183400,"timestamp":"1718000000000"}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  listen address (default ":9001")
//	TICK_INTERVAL_MS  broadcast interval in milliseconds (default "1000")
//	CATALOG_PATH      optional YAML catalog; the built-in NSE list otherwise
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nestcub/autotrader/internal/catalog"
	"github.com/nestcub/autotrader/internal/model"
)

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop tick
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickserver] client disconnected: %s", r.RemoteAddr)
		}()

		// Reader detects the peer going away so the write loop can stop.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(conn)
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// instrument is one simulated symbol.
type instrument struct {
	symbol string
	open   float64
	price  float64
	volume float64
}

// walk moves price by up to ±0.5% and never below 1.
func walk(rng *rand.Rand, price float64) float64 {
	next := price * (1 + (rng.Float64()-0.5)/100)
	return math.Max(1, math.Round(next*100)/100)
}

func runGenerator(h *hub, instruments []*instrument, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for range ticker.C {
		for _, in := range instruments {
			in.price = walk(rng, in.price)
			in.volume += float64(rng.Intn(500) + 1)
			b, err := json.Marshal(model.Tick{
				Symbol:        in.symbol,
				Price:         in.price,
				ChangePercent: math.Round((in.price-in.open)/in.open*10000) / 100,
				DayVolume:     in.volume,
				Timestamp:     strconv.FormatInt(time.Now().UnixMilli(), 10),
			})
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// startPrices are rough NSE levels used to seed the walk.
var startPrices = map[string]float64{
	"RELIANCE.NS":  2950,
	"TCS.NS":       3900,
	"HDFCBANK.NS":  1650,
	"INFY.NS":      1500,
	"WIPRO.NS":     480,
	"ICICIBANK.NS": 1200,
	"ITC.NS":       430,
	"SBIN.NS":      820,
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickserver] starting demo tick server...")

	addr := envOrDefault("TICK_SERVER_ADDR", ":9001")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 1000)

	cat := catalog.Default()
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		loaded, err := catalog.LoadFile(path)
		if err != nil {
			log.Fatalf("[tickserver] %v", err)
		}
		cat = loaded
	}

	var instruments []*instrument
	for _, sym := range cat.Symbols() {
		p := startPrices[sym]
		if p == 0 {
			p = 1000
		}
		instruments = append(instruments, &instrument{symbol: sym, open: p, price: p})
	}
	log.Printf("[tickserver] symbols: %v, interval %dms", cat.Symbols(), intervalMs)

	h := newHub()
	go runGenerator(h, instruments, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
