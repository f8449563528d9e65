package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP surfaces
	HTTPAddr    string
	MetricsAddr string

	// Persistence
	Store      string // "sqlite" or "memory"
	SQLitePath string

	// Broadcast fan-out
	RedisAddr          string
	RedisPassword      string
	RedisChannelPrefix string

	// Tick feed
	FeedSource   string // "ws" or "kafka"
	FeedWSURL    string
	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	// Market
	CatalogPath    string
	SeriesCapacity int
	DefaultBalance float64

	// Order intake
	JWTSecret       string
	OrderRatePerSec float64
	OrderBurst      int

	// Alerts
	WebhookURL string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		Store:      getEnv("STORE", "sqlite"),
		SQLitePath: getEnv("SQLITE_PATH", "data/autotrader.db"),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "autotrader"),

		FeedSource:   getEnv("FEED_SOURCE", "ws"),
		FeedWSURL:    getEnv("FEED_WS_URL", "ws://localhost:9001/ws"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "market_ticks"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "autotrader"),

		CatalogPath:    getEnv("CATALOG_PATH", ""),
		SeriesCapacity: getEnvInt("SERIES_CAPACITY", 50),
		DefaultBalance: getEnvFloat("DEFAULT_BALANCE", 100000),

		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		OrderRatePerSec: getEnvFloat("ORDER_RATE_PER_SEC", 5),
		OrderBurst:      getEnvInt("ORDER_BURST", 10),

		WebhookURL: getEnv("WEBHOOK_URL", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// Brokers splits KafkaBrokers into a list of host:port entries.
func (c *Config) Brokers() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
