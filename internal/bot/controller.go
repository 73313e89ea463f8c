// Package bot runs the polling trade loop: fetch history for each watched
// symbol, evaluate the active strategy, and optionally execute the signal
// against the portfolio ledger.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trading-botv1/internal/journal"
	"trading-botv1/internal/logger"
	"trading-botv1/internal/marketdata"
	"trading-botv1/internal/metrics"
	"trading-botv1/internal/notify"
	"trading-botv1/internal/portfolio"
	"trading-botv1/internal/ringbuf"
	"trading-botv1/internal/strategy"
	"trading-botv1/internal/stream"
)

// ErrInvalidConfig is returned by Start for an unusable configuration.
var ErrInvalidConfig = errors.New("invalid bot config")

// A signal must be at least this confident before auto-trade acts on it.
const autoTradeMinConfidence = 0.6

// State is the bot lifecycle state.
type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
)

// Config drives one run of the bot loop.
type Config struct {
	Symbols       []string        `json:"symbols"`
	Strategy      string          `json:"strategy"`
	AutoTrade     bool            `json:"auto_trade"`
	Interval      time.Duration   `json:"interval"`
	TradeAmount   decimal.Decimal `json:"trade_amount"`   // target notional per BUY
	HistoryPeriod string          `json:"history_period"` // default "3mo"
	FetchTimeout  time.Duration   `json:"fetch_timeout"`  // per-symbol, default 10s
}

func (c *Config) validate(engine *strategy.Engine) error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols: %w", ErrInvalidConfig)
	}
	if !engine.Has(c.Strategy) {
		return fmt.Errorf("strategy %q: %w", c.Strategy, ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval %s: %w", c.Interval, ErrInvalidConfig)
	}
	if c.AutoTrade && !c.TradeAmount.IsPositive() {
		return fmt.Errorf("trade amount %s: %w", c.TradeAmount, ErrInvalidConfig)
	}
	if c.HistoryPeriod == "" {
		c.HistoryPeriod = "3mo"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return nil
}

// SymbolResult is the outcome for one symbol in one tick.
type SymbolResult struct {
	Symbol string           `json:"symbol"`
	Signal *strategy.Signal `json:"signal,omitempty"`
	Trade  *portfolio.Trade `json:"trade,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// TickReport is the outcome of one full poll cycle.
type TickReport struct {
	At      time.Time      `json:"at"`
	Results []SymbolResult `json:"results"`
}

// Status is a snapshot of the bot for the API.
type Status struct {
	State       State          `json:"state"`
	Config      *Config        `json:"config,omitempty"`
	LastTick    *time.Time     `json:"last_tick,omitempty"`
	LastResults []SymbolResult `json:"last_results,omitempty"`
	Recent      []TickReport   `json:"recent,omitempty"`
	TradeCount  int            `json:"trade_count"`
}

// Options are the optional collaborators of a Controller. Nil fields
// disable the corresponding behavior.
type Options struct {
	Risk     *portfolio.RiskManager
	Journal  *journal.Journal
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Stream   *stream.Hub
}

// Controller owns the bot lifecycle and the polling loop.
type Controller struct {
	provider marketdata.Provider
	engine   *strategy.Engine
	ledger   *portfolio.Ledger
	opts     Options

	// lifecycle serializes Start/Stop/Reconfigure end to end, so the
	// cancel-old, wait, relaunch sequence is never interleaved. mu only
	// guards the snapshot fields below and is never held across a wait.
	lifecycle sync.Mutex

	mu          sync.Mutex
	state       State
	cfg         Config
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastTick    time.Time
	lastResults []SymbolResult
	history     *ringbuf.Ring[TickReport]
}

// NewController wires a controller. provider, engine, and ledger are
// required; everything in opts is optional.
func NewController(provider marketdata.Provider, engine *strategy.Engine, ledger *portfolio.Ledger, opts Options) *Controller {
	return &Controller{
		provider: provider,
		engine:   engine,
		ledger:   ledger,
		opts:     opts,
		state:    StateStopped,
		history:  ringbuf.New[TickReport](32),
	}
}

// Start validates cfg and launches the polling loop. Starting while running
// replaces the configuration: the old loop is cancelled first, so only one
// loop ever runs. Concurrent Start and Stop calls are serialized.
func (c *Controller) Start(cfg Config) error {
	if err := cfg.validate(c.engine); err != nil {
		return err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.startLocked(cfg)
	return nil
}

// startLocked cancels any running loop, waits for it to exit, and launches
// a new one with cfg. The caller holds c.lifecycle.
func (c *Controller) startLocked(cfg Config) {
	c.mu.Lock()
	old := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if old != nil {
		old()
		c.wg.Wait()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cfg = cfg
	c.state = StateRunning
	c.cancel = cancel
	c.mu.Unlock()
	c.wg.Add(1)

	if m := c.opts.Metrics; m != nil {
		m.BotRunning.Set(1)
	}
	slog.Info("bot started",
		"symbols", cfg.Symbols,
		"strategy", cfg.Strategy,
		"interval", cfg.Interval.String(),
		"auto_trade", cfg.AutoTrade)
	c.notifyf(notify.LevelInfo, "bot started", "strategy %s on %d symbols", cfg.Strategy, len(cfg.Symbols))

	go c.run(ctx, cfg)
}

// Stop cancels the loop and waits for an in-flight tick to finish.
// Stopping a stopped bot is a no-op.
func (c *Controller) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	if m := c.opts.Metrics; m != nil {
		m.BotRunning.Set(0)
	}
	slog.Info("bot stopped")
	c.notifyf(notify.LevelInfo, "bot stopped", "polling loop halted")
}

// Reconfigure applies mutate to a copy of the running config and restarts
// the loop with the result, keeping the replace-config-atomically model.
// Fails with ErrInvalidConfig when the bot is stopped or the mutated config
// does not validate; the running loop is untouched on failure.
func (c *Controller) Reconfigure(mutate func(*Config)) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	running := c.state == StateRunning
	cfg := c.cfg
	c.mu.Unlock()
	if !running {
		return fmt.Errorf("bot not running: %w", ErrInvalidConfig)
	}

	cfg.Symbols = append([]string(nil), cfg.Symbols...)
	mutate(&cfg)
	if err := cfg.validate(c.engine); err != nil {
		return err
	}
	c.startLocked(cfg)
	return nil
}

// AddSymbol adds symbol to the running watch list. Adding a watched symbol
// is a no-op restart.
func (c *Controller) AddSymbol(symbol string) error {
	return c.Reconfigure(func(cfg *Config) {
		for _, s := range cfg.Symbols {
			if s == symbol {
				return
			}
		}
		cfg.Symbols = append(cfg.Symbols, symbol)
	})
}

// RemoveSymbol drops symbol from the running watch list. Removing the last
// symbol fails validation and leaves the loop as it was.
func (c *Controller) RemoveSymbol(symbol string) error {
	return c.Reconfigure(func(cfg *Config) {
		out := cfg.Symbols[:0]
		for _, s := range cfg.Symbols {
			if s != symbol {
				out = append(out, s)
			}
		}
		cfg.Symbols = out
	})
}

// SetStrategy switches the running loop to another registered strategy.
func (c *Controller) SetStrategy(name string) error {
	return c.Reconfigure(func(cfg *Config) {
		cfg.Strategy = name
	})
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot for the API.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:      c.state,
		TradeCount: c.ledger.TradeCount(),
	}
	if c.state == StateRunning {
		cfg := c.cfg
		s.Config = &cfg
	}
	if !c.lastTick.IsZero() {
		t := c.lastTick
		s.LastTick = &t
		s.LastResults = append([]SymbolResult(nil), c.lastResults...)
	}
	s.Recent = c.history.Snapshot()
	return s
}

// CheckOnce evaluates strategyName over symbols immediately, without
// trading and regardless of loop state. Empty symbols fall back to the
// running config's; an empty strategy falls back to the config's, then to
// sma_crossover.
func (c *Controller) CheckOnce(ctx context.Context, symbols []string, strategyName string) (TickReport, error) {
	if strategyName == "" {
		c.mu.Lock()
		strategyName = c.cfg.Strategy
		c.mu.Unlock()
		if strategyName == "" {
			strategyName = "sma_crossover"
		}
	}
	if !c.engine.Has(strategyName) {
		return TickReport{}, fmt.Errorf("strategy %q: %w", strategyName, strategy.ErrUnknownStrategy)
	}
	if len(symbols) == 0 {
		c.mu.Lock()
		symbols = append([]string(nil), c.cfg.Symbols...)
		c.mu.Unlock()
	}
	if len(symbols) == 0 {
		return TickReport{}, fmt.Errorf("no symbols: %w", ErrInvalidConfig)
	}

	cfg := Config{
		Symbols:       symbols,
		Strategy:      strategyName,
		HistoryPeriod: "3mo",
		FetchTimeout:  10 * time.Second,
	}
	return c.tick(ctx, cfg), nil
}

func (c *Controller) run(ctx context.Context, cfg Config) {
	defer c.wg.Done()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// First cycle immediately rather than one interval in.
	c.record(c.tick(ctx, cfg))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.record(c.tick(ctx, cfg))
		}
	}
}

func (c *Controller) record(report TickReport) {
	c.mu.Lock()
	c.lastTick = report.At
	c.lastResults = report.Results
	c.mu.Unlock()
	c.history.Push(report)

	if m := c.opts.Metrics; m != nil {
		m.TicksTotal.Inc()
	}
	if h := c.opts.Health; h != nil {
		h.SetLastTickTime(report.At)
		// Market data counts as healthy while any watched symbol resolves.
		ok := false
		for _, r := range report.Results {
			if r.Error == "" {
				ok = true
				break
			}
		}
		h.SetDataOK(ok)
	}
	if hub := c.opts.Stream; hub != nil {
		hub.Broadcast("tick", report)
	}
}

// tick runs one poll cycle. A failing symbol never aborts the others.
func (c *Controller) tick(ctx context.Context, cfg Config) TickReport {
	report := TickReport{At: time.Now().UTC()}

	for _, symbol := range cfg.Symbols {
		res := c.evalSymbol(ctx, cfg, symbol)
		if res.Error != "" {
			if m := c.opts.Metrics; m != nil {
				m.TickErrorsTotal.Inc()
			}
			slog.Warn("symbol check failed", "symbol", symbol, "err", res.Error)
		}
		report.Results = append(report.Results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return report
}

func (c *Controller) evalSymbol(ctx context.Context, cfg Config, symbol string) SymbolResult {
	res := SymbolResult{Symbol: symbol}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(symbol, time.Now()))

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	series, err := c.provider.History(fetchCtx, symbol, cfg.HistoryPeriod)
	if m := c.opts.Metrics; m != nil {
		m.FetchDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}

	evalStart := time.Now()
	sig, err := c.engine.Evaluate(series, cfg.Strategy)
	if m := c.opts.Metrics; m != nil {
		m.EvalDur.Observe(time.Since(evalStart).Seconds())
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Signal = &sig

	if m := c.opts.Metrics; m != nil {
		m.SignalsTotal.WithLabelValues(sig.Strategy, string(sig.Action)).Inc()
	}
	slog.Debug("symbol evaluated", append([]any{
		"symbol", symbol,
		"strategy", sig.Strategy,
		"action", sig.Action,
		"confidence", sig.Confidence,
	}, logger.LogWithTrace(ctx)...)...)

	if cfg.AutoTrade {
		if trade, ok := c.maybeTrade(ctx, cfg, sig); ok {
			res.Trade = &trade
		}
	}
	return res
}

// maybeTrade acts on a signal when it clears the confidence gate. BUY sizes
// to the configured notional; SELL closes the whole position.
func (c *Controller) maybeTrade(ctx context.Context, cfg Config, sig strategy.Signal) (portfolio.Trade, bool) {
	if sig.Action == strategy.ActionHold || sig.Confidence < autoTradeMinConfidence {
		return portfolio.Trade{}, false
	}

	price := decimal.NewFromFloat(sig.Price)
	if !price.IsPositive() {
		return portfolio.Trade{}, false
	}

	var side portfolio.Side
	var qty int64
	switch sig.Action {
	case strategy.ActionBuy:
		side = portfolio.SideBuy
		qty = cfg.TradeAmount.Div(price).IntPart()
	case strategy.ActionSell:
		side = portfolio.SideSell
		pos, held := c.ledger.Position(sig.Symbol)
		if !held {
			return portfolio.Trade{}, false
		}
		qty = pos.Qty
	}
	if qty < 1 {
		return portfolio.Trade{}, false
	}

	if rm := c.opts.Risk; rm != nil {
		if ok, reason := rm.CanTrade(c.ledger, sig.Symbol, side, qty, price); !ok {
			slog.Warn("trade blocked by risk limits",
				"symbol", sig.Symbol, "side", side, "qty", qty, "reason", reason)
			return portfolio.Trade{}, false
		}
	}

	trade, err := c.ledger.ExecuteTrade(sig.Symbol, side, qty, price)
	if err != nil {
		slog.Warn("auto-trade rejected",
			"symbol", sig.Symbol, "side", side, "qty", qty, "err", err)
		return portfolio.Trade{}, false
	}

	if rm := c.opts.Risk; rm != nil && side == portfolio.SideSell {
		rm.RecordPnL(trade.Realized)
	}
	if m := c.opts.Metrics; m != nil {
		m.TradesTotal.WithLabelValues(string(side)).Inc()
	}
	if j := c.opts.Journal; j != nil {
		if err := j.RecordTrade(trade, sig.Strategy, sig.Reason); err != nil {
			slog.Error("journal write failed", "trade_id", trade.ID, "err", err)
		}
	}
	if h := c.opts.Stream; h != nil {
		h.Broadcast("trade", trade)
	}

	slog.Info("auto-trade executed", append([]any{
		"symbol", trade.Symbol,
		"side", trade.Side,
		"qty", trade.Qty,
		"price", trade.Price.String(),
		"strategy", sig.Strategy,
		"confidence", sig.Confidence,
	}, logger.LogWithTrace(ctx)...)...)
	c.notifyf(notify.LevelInfo, "trade executed", "%s %d %s @ %s (%s)",
		trade.Side, trade.Qty, trade.Symbol, trade.Price, sig.Strategy)

	return trade, true
}

func (c *Controller) notifyf(level notify.Level, title, format string, args ...any) {
	n := c.opts.Notifier
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Send(ctx, notify.Alert{
		Level:   level,
		Title:   title,
		Message: fmt.Sprintf(format, args...),
	}); err != nil {
		slog.Warn("notification failed", "title", title, "err", err)
	}
}
