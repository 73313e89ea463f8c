// Package metrics exposes Prometheus metrics and a health endpoint for the
// trading bot.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	TicksTotal      prometheus.Counter
	TickErrorsTotal prometheus.Counter
	SignalsTotal    *prometheus.CounterVec // labels: strategy, action
	TradesTotal     *prometheus.CounterVec // labels: side
	FetchDur        prometheus.Histogram
	EvalDur         prometheus.Histogram
	BotRunning      prometheus.Gauge
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// New registers and returns all bot metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_ticks_total",
			Help: "Total bot poll cycles executed",
		}),
		TickErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_tick_errors_total",
			Help: "Per-symbol failures during poll cycles",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_signals_total",
			Help: "Signals emitted (by strategy and action)",
		}, []string{"strategy", "action"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_trades_total",
			Help: "Trades executed (by side)",
		}, []string{"side"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradingbot_fetch_duration_seconds",
			Help:    "Market data fetch latency per symbol",
			Buckets: prometheus.DefBuckets,
		}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradingbot_eval_duration_seconds",
			Help:    "Strategy evaluation latency per symbol",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		BotRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradingbot_running",
			Help: "Bot loop state (0=stopped, 1=running)",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_quote_cache_hits_total",
			Help: "Quote cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_quote_cache_misses_total",
			Help: "Quote cache misses",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TickErrorsTotal,
		m.SignalsTotal,
		m.TradesTotal,
		m.FetchDur,
		m.EvalDur,
		m.BotRunning,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// HealthStatus tracks dependency health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	DataOK       bool      `json:"data_ok"`
	RedisOK      bool      `json:"redis_ok"`
	JournalOK    bool      `json:"journal_ok"`
	LastTickTime time.Time `json:"last_tick_time"`
	StartedAt    time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		DataOK:    true,
		RedisOK:   true,
		JournalOK: true,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetDataOK(v bool) {
	h.mu.Lock()
	h.DataOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisOK(v bool) {
	h.mu.Lock()
	h.RedisOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.DataOK || !h.RedisOK || !h.JournalOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	lastTick := ""
	if !h.LastTickTime.IsZero() {
		lastTick = h.LastTickTime.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":         status,
		"uptime":         time.Since(h.StartedAt).Round(time.Second).String(),
		"data_ok":        h.DataOK,
		"redis_ok":       h.RedisOK,
		"journal_ok":     h.JournalOK,
		"last_tick_time": lastTick,
	})
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
