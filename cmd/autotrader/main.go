// cmd/autotrader runs the paper-trading engine: it consumes the tick feed,
// maintains indicators and signals, serves the HTTP and websocket surface and
// books simulated orders.
//
// Config (env vars, optionally from .env): see config.Load.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nestcub/autotrader/config"
	"github.com/nestcub/autotrader/internal/api"
	"github.com/nestcub/autotrader/internal/catalog"
	"github.com/nestcub/autotrader/internal/execution"
	"github.com/nestcub/autotrader/internal/gateway"
	"github.com/nestcub/autotrader/internal/logger"
	"github.com/nestcub/autotrader/internal/marketdata/bus"
	"github.com/nestcub/autotrader/internal/marketdata/ingest"
	"github.com/nestcub/autotrader/internal/marketdata/kafkafeed"
	"github.com/nestcub/autotrader/internal/marketdata/state"
	"github.com/nestcub/autotrader/internal/marketdata/wsfeed"
	"github.com/nestcub/autotrader/internal/markethours"
	"github.com/nestcub/autotrader/internal/metrics"
	"github.com/nestcub/autotrader/internal/model"
	"github.com/nestcub/autotrader/internal/notification"
	"github.com/nestcub/autotrader/internal/store/memory"
	redisstore "github.com/nestcub/autotrader/internal/store/redis"
	"github.com/nestcub/autotrader/internal/store/sqlite"
)

// feed is a tick source writing raw messages into out.
type feed interface {
	Run(ctx context.Context, out chan<- []byte) error
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[autotrader] starting...")

	cfg := config.Load()
	logger.Init("autotrader", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ── Catalog and market state ──
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("[autotrader] %v", err)
		}
		cat = loaded
	}
	log.Printf("[autotrader] catalog: %v", cat.Symbols())
	market := state.New(cfg.SeriesCapacity, cat.Name)

	// ── Broadcast bus ──
	fan := bus.New(1024)
	fan.OnDrop = func(name string, ev model.Event) {
		m.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	hubCh := fan.Subscribe("gateway")

	var wg sync.WaitGroup
	var redisPub *redisstore.Publisher
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		p, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Prefix:   cfg.RedisChannelPrefix,
		}, m)
		if err != nil {
			log.Printf("[autotrader] redis disabled: %v", err)
		} else {
			redisPub = p
			health.SetRedisConnected(true)
			redisCh := fan.Subscribe("redis")
			wg.Add(1)
			go func() {
				defer wg.Done()
				redisPub.Run(ctx, redisCh)
			}()
		}
	}

	// ── Portfolio store and ledger ──
	var store execution.Store
	var sqlStore *sqlite.Store
	switch cfg.Store {
	case "memory":
		store = memory.New()
		log.Println("[autotrader] using in-memory portfolio store")
	default:
		s, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[autotrader] sqlite: %v", err)
		}
		sqlStore = s
		store = s
	}
	health.SetStoreOK(true)
	ledger := execution.NewLedger(store, market, fan, m, cfg.DefaultBalance)

	startLiveness(ctx, health, redisPub, sqlStore)

	// ── Alerts ──
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notification.Multi{notifier, notification.NewWebhookNotifier(cfg.WebhookURL)}
	}
	alerts := notification.NewQueue(notifier, 256)
	wg.Add(1)
	go func() {
		defer wg.Done()
		alerts.Run(ctx)
	}()

	// ── Ingest ──
	ing := ingest.New(cat, market, fan, m)
	ing.Revaluer = ledger
	ing.Alerts = alerts
	ing.Health = health

	src, err := newFeed(cfg, m, health)
	if err != nil {
		log.Fatalf("[autotrader] feed: %v", err)
	}
	raw := make(chan []byte, 1024)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := src.Run(ctx, raw); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[autotrader] feed stopped: %v", err)
		}
		health.SetFeedConnected(false)
	}()
	go func() {
		defer wg.Done()
		ing.Run(ctx, raw)
	}()

	// ── Gateway and HTTP ──
	hub := gateway.NewHub(m)
	hub.Portfolios = ledger
	go hub.Run(ctx, hubCh)

	calendar := markethours.Default()
	go trackSession(ctx, health, calendar)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Market:   market,
			Catalog:  cat,
			Ledger:   ledger,
			Auth:     api.NewAuthenticator(cfg.JWTSecret),
			Limiter:  api.NewAccountLimiter(cfg.OrderRatePerSec, cfg.OrderBurst),
			Hub:      hub,
			Health:   health,
			Calendar: calendar,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[autotrader] http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[autotrader] http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[autotrader] shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	hub.Close()
	wg.Wait()
	fan.Close()
	metricsSrv.Stop(shutdownCtx)

	if redisPub != nil {
		redisPub.Close()
	}
	if sqlStore != nil {
		if err := sqlStore.Close(); err != nil {
			log.Printf("[autotrader] close sqlite: %v", err)
		}
	}
	log.Println("[autotrader] stopped")
}

// newFeed builds the configured tick source.
func newFeed(cfg *config.Config, m *metrics.Metrics, health *metrics.HealthStatus) (feed, error) {
	switch cfg.FeedSource {
	case "kafka":
		f := kafkafeed.New(kafkafeed.Config{
			Brokers: cfg.Brokers(),
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		f.OnOpen = func() { health.SetFeedConnected(true) }
		f.OnError = func(err error) {
			m.FeedReconnects.Inc()
			health.SetFeedConnected(false)
		}
		return f, nil
	case "ws", "":
		c, err := wsfeed.New(wsfeed.Config{URL: cfg.FeedWSURL})
		if err != nil {
			return nil, err
		}
		c.OnConnect = func() { health.SetFeedConnected(true) }
		c.OnDisconnect = func(err error) {
			m.FeedReconnects.Inc()
			health.SetFeedConnected(false)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown FEED_SOURCE %q", cfg.FeedSource)
	}
}

// startLiveness probes the optional redis and sqlite dependencies.
func startLiveness(ctx context.Context, health *metrics.HealthStatus, pub *redisstore.Publisher, store *sqlite.Store) {
	var rdb *goredis.Client
	if pub != nil {
		rdb = pub.Client()
	}
	var db *sql.DB
	if store != nil {
		db = store.DB()
	}
	health.StartLivenessChecker(ctx, rdb, db, 15*time.Second)
}

// trackSession keeps the health endpoint's market session current.
func trackSession(ctx context.Context, health *metrics.HealthStatus, cal *markethours.Calendar) {
	update := func() {
		st := cal.Status(time.Now())
		health.SetMarketSession(string(st.Phase))
	}
	update()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
