package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Servers
	APIAddr     string
	MetricsAddr string
	LogLevel    string

	// Upstream quote API; empty DataBaseURL switches to the built-in simulator
	DataBaseURL    string
	DataAPIKey     string
	DataTOTPSecret string
	FetchTimeout   time.Duration

	// Caching
	RedisAddr     string
	RedisPassword string
	QuoteTTL      time.Duration
	HistoryTTL    time.Duration

	// Persistence; empty path disables the trade journal
	JournalPath string

	// Notifications; empty URL falls back to log-only alerts
	WebhookURL string

	// Bot defaults
	Symbols       string // comma-separated watchlist
	Strategy      string
	AutoTrade     bool
	PollInterval  time.Duration
	HistoryPeriod string
	InitialCash   float64
	TradeAmount   float64

	// Risk limits
	MaxPositionQty   int64
	MaxOpenPositions int
	MaxExposure      float64
	MaxDailyLoss     float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		APIAddr:     getEnv("API_ADDR", ":8000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DataBaseURL:    getEnv("DATA_BASE_URL", ""),
		DataAPIKey:     getEnv("DATA_API_KEY", ""),
		DataTOTPSecret: getEnv("DATA_TOTP_SECRET", ""),
		FetchTimeout:   envSeconds("FETCH_TIMEOUT_SEC", 10),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		QuoteTTL:      envSeconds("QUOTE_TTL_SEC", 60),
		HistoryTTL:    envSeconds("HISTORY_TTL_SEC", 300),

		JournalPath: getEnv("JOURNAL_PATH", ""),
		WebhookURL:  getEnv("WEBHOOK_URL", ""),

		Symbols:       getEnv("SYMBOLS", "AAPL,MSFT,GOOGL"),
		Strategy:      getEnv("STRATEGY", "sma_crossover"),
		AutoTrade:     envBool("AUTO_TRADE", false),
		PollInterval:  envSeconds("POLL_INTERVAL_SEC", 60),
		HistoryPeriod: getEnv("HISTORY_PERIOD", "3mo"),
		InitialCash:   envFloat("INITIAL_CASH", 100000),
		TradeAmount:   envFloat("TRADE_AMOUNT", 1000),

		MaxPositionQty:   envInt64("MAX_POSITION_QTY", 1000),
		MaxOpenPositions: int(envInt64("MAX_OPEN_POSITIONS", 10)),
		MaxExposure:      envFloat("MAX_EXPOSURE", 1_000_000),
		MaxDailyLoss:     envFloat("MAX_DAILY_LOSS", 5_000),
	}
}

// ParseSymbols splits the comma-separated watchlist.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
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

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt64(key, int64(fallback))) * time.Second
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
