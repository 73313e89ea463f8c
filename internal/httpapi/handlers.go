// Package httpapi exposes the bot's REST surface: quotes, portfolio,
// manual trades, signal checks, and bot lifecycle control.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trading-botv1/internal/bot"
	"trading-botv1/internal/indicator"
	"trading-botv1/internal/journal"
	"trading-botv1/internal/marketdata"
	"trading-botv1/internal/portfolio"
	"trading-botv1/internal/strategy"
	"trading-botv1/internal/stream"
)

// Server bundles the handlers' dependencies.
type Server struct {
	Provider marketdata.Provider
	Engine   *strategy.Engine
	Ledger   *portfolio.Ledger
	Bot      *bot.Controller
	Hub      *stream.Hub
	Journal  *journal.Journal // nil disables /api/trades/journal

	HistoryPeriod string // default "3mo"

	// Defaults applied when a request omits the field, so a minimal
	// {"symbols": [...]} start or an empty reset body works. Zero values
	// fall back to the stock defaults in RegisterRoutes.
	DefaultStrategy    string        // default "sma_crossover"
	DefaultInterval    time.Duration // default 1m
	DefaultTradeAmount float64       // default 1000
	DefaultInitialCash float64       // default 100000
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if s.HistoryPeriod == "" {
		s.HistoryPeriod = "3mo"
	}
	if s.DefaultStrategy == "" {
		s.DefaultStrategy = "sma_crossover"
	}
	if s.DefaultInterval <= 0 {
		s.DefaultInterval = time.Minute
	}
	if s.DefaultTradeAmount <= 0 {
		s.DefaultTradeAmount = 1000
	}
	if s.DefaultInitialCash <= 0 {
		s.DefaultInitialCash = 100000
	}

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/stocks", s.method(http.MethodGet, s.handleStocks))
	mux.HandleFunc("/api/stocks/history", s.method(http.MethodGet, s.handleHistory))
	mux.HandleFunc("/api/portfolio", s.method(http.MethodGet, s.handlePortfolio))
	mux.HandleFunc("/api/portfolio/reset", s.method(http.MethodPost, s.handlePortfolioReset))
	mux.HandleFunc("/api/trade", s.method(http.MethodPost, s.handleTrade))
	mux.HandleFunc("/api/trades", s.method(http.MethodGet, s.handleTrades))
	mux.HandleFunc("/api/trades/journal", s.method(http.MethodGet, s.handleTradesJournal))
	mux.HandleFunc("/api/signals", s.method(http.MethodGet, s.handleSignals))
	mux.HandleFunc("/api/strategies", s.method(http.MethodGet, s.handleStrategies))
	mux.HandleFunc("/api/bot/status", s.method(http.MethodGet, s.handleBotStatus))
	mux.HandleFunc("/api/bot/start", s.method(http.MethodPost, s.handleBotStart))
	mux.HandleFunc("/api/bot/stop", s.method(http.MethodPost, s.handleBotStop))
	mux.HandleFunc("/api/bot/check", s.method(http.MethodPost, s.handleBotCheck))

	if s.Hub != nil {
		mux.HandleFunc("/ws", s.Hub.HandleWS)
	}
}

// method wraps a handler with CORS, preflight, and a method check.
func (s *Server) method(want string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != want {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

// decodeBody decodes a JSON request body into v. An empty body is not an
// error: every field keeps its zero value and the handler defaults apply.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainErr maps domain sentinel errors onto HTTP status codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketdata.ErrSymbolNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, marketdata.ErrUnavailable),
		errors.Is(err, portfolio.ErrMissingPrice):
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, indicator.ErrInsufficientData),
		errors.Is(err, portfolio.ErrInvalidOrder),
		errors.Is(err, portfolio.ErrInsufficientFunds),
		errors.Is(err, portfolio.ErrInsufficientPosition),
		errors.Is(err, bot.ErrInvalidConfig):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

// ──────────────────────────────────────────────
// Health
// ──────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ──────────────────────────────────────────────
// Market data
// ──────────────────────────────────────────────

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeErr(w, http.StatusBadRequest, "symbols query parameter required")
		return
	}

	var quotes []marketdata.Quote
	for _, symbol := range strings.Split(raw, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		q, err := s.Provider.Current(r.Context(), symbol)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		quotes = append(quotes, q)
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol query parameter required")
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = s.HistoryPeriod
	}

	series, err := s.Provider.History(r.Context(), symbol, period)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// ──────────────────────────────────────────────
// Portfolio
// ──────────────────────────────────────────────

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	prices := make(map[string]decimal.Decimal)
	for _, pos := range s.Ledger.Positions() {
		q, err := s.Provider.Current(r.Context(), pos.Symbol)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		prices[pos.Symbol] = decimal.NewFromFloat(q.Price)
	}

	v, err := s.Ledger.Valuation(prices)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePortfolioReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitialCash float64 `json:"initial_cash"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.InitialCash == 0 {
		req.InitialCash = s.DefaultInitialCash
	}
	if req.InitialCash < 0 {
		writeErr(w, http.StatusBadRequest, "initial_cash must be positive")
		return
	}

	s.Ledger.Reset(decimal.NewFromFloat(req.InitialCash))
	slog.Info("portfolio reset", "initial_cash", req.InitialCash)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reset",
		"cash":   s.Ledger.Cash(),
	})
}

// ──────────────────────────────────────────────
// Trades
// ──────────────────────────────────────────────

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string  `json:"symbol"`
		Side   string  `json:"side"`
		Qty    int64   `json:"qty"`
		Price  float64 `json:"price"` // 0 = use current quote
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol required")
		return
	}

	price := decimal.NewFromFloat(req.Price)
	if req.Price == 0 {
		q, err := s.Provider.Current(r.Context(), req.Symbol)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		price = decimal.NewFromFloat(q.Price)
	}

	side := portfolio.Side(strings.ToUpper(req.Side))
	trade, err := s.Ledger.ExecuteTrade(req.Symbol, side, req.Qty, price)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	if s.Hub != nil {
		s.Hub.Broadcast("trade", trade)
	}
	writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": s.Ledger.TradeHistory(),
	})
}

func (s *Server) handleTradesJournal(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeErr(w, http.StatusNotFound, "trade journal disabled")
		return
	}
	recs, err := s.Journal.Recent(100)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": recs})
}

// ──────────────────────────────────────────────
// Signals & strategies
// ──────────────────────────────────────────────

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol query parameter required")
		return
	}

	series, err := s.Provider.History(r.Context(), symbol, s.HistoryPeriod)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	names := s.Engine.Names()
	if name := r.URL.Query().Get("strategy"); name != "" {
		names = []string{name}
	}

	signals := make(map[string]any, len(names))
	for _, name := range names {
		sig, err := s.Engine.Evaluate(series, name)
		if err != nil {
			if errors.Is(err, strategy.ErrUnknownStrategy) {
				writeDomainErr(w, err)
				return
			}
			// Insufficient data for one strategy is reported inline, not fatal.
			signals[name] = map[string]string{"error": err.Error()}
			continue
		}
		signals[name] = sig
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"signals": signals,
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": s.Engine.List(),
	})
}

// ──────────────────────────────────────────────
// Bot control
// ──────────────────────────────────────────────

func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Bot.Status())
}

func (s *Server) handleBotStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols     []string `json:"symbols"`
		Strategy    string   `json:"strategy"`
		AutoTrade   bool     `json:"auto_trade"`
		IntervalSec int      `json:"interval_sec"`
		TradeAmount float64  `json:"trade_amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Strategy == "" {
		req.Strategy = s.DefaultStrategy
	}
	interval := time.Duration(req.IntervalSec) * time.Second
	if req.IntervalSec == 0 {
		interval = s.DefaultInterval
	}
	if req.TradeAmount == 0 {
		req.TradeAmount = s.DefaultTradeAmount
	}

	cfg := bot.Config{
		Symbols:     req.Symbols,
		Strategy:    req.Strategy,
		AutoTrade:   req.AutoTrade,
		Interval:    interval,
		TradeAmount: decimal.NewFromFloat(req.TradeAmount),
	}
	if err := s.Bot.Start(cfg); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Bot.Status())
}

func (s *Server) handleBotStop(w http.ResponseWriter, r *http.Request) {
	s.Bot.Stop()
	writeJSON(w, http.StatusOK, s.Bot.Status())
}

func (s *Server) handleBotCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols  []string `json:"symbols"`
		Strategy string   `json:"strategy"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	report, err := s.Bot.CheckOnce(r.Context(), req.Symbols, req.Strategy)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
