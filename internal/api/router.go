// Package api serves the HTTP surface: market snapshot, catalog, portfolio,
// order intake, session status and the websocket upgrade.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nestcub/autotrader/internal/gateway"
	"github.com/nestcub/autotrader/internal/marketdata/state"
	"github.com/nestcub/autotrader/internal/markethours"
	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
	"github.com/nestcub/autotrader/internal/portfolio"
)

// Market is the read side of the market state.
type Market interface {
	Snapshot() map[string]state.SymbolView
}

// Catalog lists tradable symbols with display names.
type Catalog interface {
	Names() map[string]string
}

// Ledger is the order and portfolio engine.
type Ledger interface {
	Valuation(ctx context.Context, key string) (*model.Portfolio, portfolio.Valuation, error)
	Apply(ctx context.Context, key string, o model.Order) (*model.Portfolio, error)
}

// Deps wires the router. Hub, Health and Calendar are optional.
type Deps struct {
	Market   Market
	Catalog  Catalog
	Ledger   Ledger
	Auth     *Authenticator
	Limiter  *AccountLimiter
	Hub      *gateway.Hub
	Health   *metrics.HealthStatus
	Calendar *markethours.Calendar
}

// Server holds the handlers.
type Server struct {
	d   Deps
	now func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Calendar == nil {
		d.Calendar = markethours.Default()
	}
	if d.Limiter == nil {
		d.Limiter = NewAccountLimiter(0, 1)
	}
	s := &Server{d: d, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/stocks", only(http.MethodGet, s.handleStocks))
	mux.HandleFunc("/api/catalog", only(http.MethodGet, s.handleCatalog))
	mux.HandleFunc("/api/portfolio", only(http.MethodGet, s.authed(s.handlePortfolio)))
	mux.HandleFunc("/api/trade", only(http.MethodPost, s.authed(s.handleTrade)))
	mux.HandleFunc("/api/status", only(http.MethodGet, s.handleStatus))
	if d.Hub != nil {
		mux.HandleFunc("/ws", s.handleWS)
	}
	return withRequestID(withCORS(mux))
}

func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		next(w, r)
	}
}

type accountHandler func(w http.ResponseWriter, r *http.Request, account string)

func (s *Server) authed(next accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := s.d.Auth.FromRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, account)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Market.Snapshot())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Catalog.Names())
}

type portfolioResponse struct {
	AccountKey string              `json:"accountKey"`
	Portfolio  model.PortfolioView `json:"portfolio"`
	Valuation  portfolio.Valuation `json:"valuation"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, account string) {
	p, v, err := s.d.Ledger.Valuation(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolioResponse{AccountKey: account, Portfolio: p.View(), Valuation: v})
}

type tradeResponse struct {
	Success   bool                `json:"success"`
	Portfolio model.PortfolioView `json:"portfolio"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, account string) {
	if !s.d.Limiter.Allow(account) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many orders, slow down"})
		return
	}

	var req model.Order
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	p, err := s.d.Ledger.Apply(r.Context(), account, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Success: true, Portfolio: p.View()})
}

type feedStatus struct {
	Connected bool   `json:"connected"`
	LastTick  string `json:"last_tick,omitempty"`
	Symbols   int    `json:"symbols"`
}

type streamStatus struct {
	Clients      int     `json:"clients"`
	LatencyP50Ms float64 `json:"latency_p50_ms"`
	LatencyP95Ms float64 `json:"latency_p95_ms"`
	LatencyP99Ms float64 `json:"latency_p99_ms"`
}

type statusResponse struct {
	Market markethours.Status `json:"market"`
	Feed   feedStatus         `json:"feed"`
	Stream *streamStatus      `json:"stream,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Market: s.d.Calendar.Status(s.now())}
	resp.Feed.Symbols = len(s.d.Market.Snapshot())
	if s.d.Health != nil {
		connected, last := s.d.Health.Feed()
		resp.Feed.Connected = connected
		if !last.IsZero() {
			resp.Feed.LastTick = last.UTC().Format(time.RFC3339)
		}
	}
	if s.d.Hub != nil {
		p50, p95, p99 := s.d.Hub.Latency.Percentiles()
		resp.Stream = &streamStatus{
			Clients:      s.d.Hub.ClientCount(),
			LatencyP50Ms: p50,
			LatencyP95Ms: p95,
			LatencyP99Ms: p99,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWS upgrades anonymous clients or, with a valid token, account
// clients. A token that fails verification is rejected before the upgrade.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	account := ""
	if r.URL.Query().Get("token") != "" || r.Header.Get("Authorization") != "" {
		a, err := s.d.Auth.FromRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		account = a
	}
	lastSeq, _ := strconv.ParseInt(r.URL.Query().Get("last_seq"), 10, 64)
	s.d.Hub.ServeWS(w, r, account, lastSeq)
}
