package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"trading-botv1/config"
	"trading-botv1/internal/bot"
	"trading-botv1/internal/httpapi"
	"trading-botv1/internal/journal"
	"trading-botv1/internal/logger"
	"trading-botv1/internal/marketdata"
	"trading-botv1/internal/metrics"
	"trading-botv1/internal/notify"
	"trading-botv1/internal/portfolio"
	"trading-botv1/internal/strategy"
	"trading-botv1/internal/stream"
)

func main() {
	cfg := config.Load()
	logger.Init("trading-bot", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting", "api_addr", cfg.APIAddr, "metrics_addr", cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	m := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Market data ----
	var upstream marketdata.Provider
	if cfg.DataBaseURL != "" {
		upstream = marketdata.NewClient(marketdata.ClientConfig{
			BaseURL:    cfg.DataBaseURL,
			APIKey:     cfg.DataAPIKey,
			TOTPSecret: cfg.DataTOTPSecret,
			Timeout:    cfg.FetchTimeout,
		})
		slog.Info("market data from upstream API", "base_url", cfg.DataBaseURL)
	} else {
		upstream = marketdata.NewSim(time.Now().UnixNano())
		slog.Info("market data from built-in simulator")
	}

	var cache marketdata.Cache
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, falling back to memory cache", "addr", cfg.RedisAddr, "err", err)
			health.SetRedisOK(false)
			cache = marketdata.NewMemoryCache()
		} else {
			cache = marketdata.NewRedisCache(rdb, "tradingbot")
			defer rdb.Close()
		}
	} else {
		cache = marketdata.NewMemoryCache()
	}
	provider := marketdata.NewCachedProvider(upstream, cache, cfg.QuoteTTL, cfg.HistoryTTL).
		Instrument(m.CacheHits, m.CacheMisses)

	// ---- Portfolio & risk ----
	ledger := portfolio.NewLedger(decimal.NewFromFloat(cfg.InitialCash))
	risk := portfolio.NewRiskManager(portfolio.RiskLimits{
		MaxPositionQty:   cfg.MaxPositionQty,
		MaxOpenPositions: cfg.MaxOpenPositions,
		MaxExposure:      decimal.NewFromFloat(cfg.MaxExposure),
		MaxDailyLoss:     decimal.NewFromFloat(cfg.MaxDailyLoss),
	})

	// ---- Journal ----
	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		jnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			slog.Error("journal open failed, continuing without it", "path", cfg.JournalPath, "err", err)
			health.SetJournalOK(false)
		} else {
			defer jnl.Close()
		}
	}

	// ---- Notifications ----
	var notifier notify.Notifier = notify.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
	}

	// ---- Bot ----
	hub := stream.NewHub()
	engine := strategy.NewEngine()
	controller := bot.NewController(provider, engine, ledger, bot.Options{
		Risk:     risk,
		Journal:  jnl,
		Notifier: notifier,
		Metrics:  m,
		Health:   health,
		Stream:   hub,
	})

	// An empty SYMBOLS leaves the bot stopped until started over the API.
	if symbols := cfg.ParseSymbols(); len(symbols) > 0 {
		err := controller.Start(bot.Config{
			Symbols:       symbols,
			Strategy:      cfg.Strategy,
			AutoTrade:     cfg.AutoTrade,
			Interval:      cfg.PollInterval,
			TradeAmount:   decimal.NewFromFloat(cfg.TradeAmount),
			HistoryPeriod: cfg.HistoryPeriod,
			FetchTimeout:  cfg.FetchTimeout,
		})
		if err != nil {
			slog.Error("bot autostart failed", "err", err)
		}
	}

	// ---- HTTP API ----
	api := &httpapi.Server{
		Provider:      provider,
		Engine:        engine,
		Ledger:        ledger,
		Bot:           controller,
		Hub:           hub,
		Journal:       jnl,
		HistoryPeriod: cfg.HistoryPeriod,

		DefaultStrategy:    cfg.Strategy,
		DefaultInterval:    cfg.PollInterval,
		DefaultTradeAmount: cfg.TradeAmount,
		DefaultInitialCash: cfg.InitialCash,
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.APIAddr, Handler: mux}
	go func() {
		slog.Info("api server listening", "addr", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("api server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	controller.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	slog.Info("bye")
}
