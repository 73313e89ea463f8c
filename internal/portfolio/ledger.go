// Package portfolio tracks cash, positions, trades, and P&L for the
// simulated account.
//
// The Ledger is the single owner of portfolio state. Every operation takes
// the ledger mutex, so a half-applied trade is never observable and cash can
// never go negative. All money is decimal to avoid float drift in balances.
package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidOrder is returned for a non-positive quantity or price.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientFunds is returned when a BUY exceeds available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientPosition is returned when a SELL exceeds the held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrMissingPrice is returned by Valuation when a held symbol has no
	// supplied current price.
	ErrMissingPrice = errors.New("missing price")
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is a single held instrument with its weighted-average cost basis.
type Position struct {
	Symbol   string          `json:"symbol"`
	Qty      int64           `json:"qty"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// Trade is one executed order. Immutable once recorded.
type Trade struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Qty       int64           `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Value     decimal.Decimal `json:"value"`    // qty × price
	Realized  decimal.Decimal `json:"realized"` // realized P&L, SELL only
	Timestamp time.Time       `json:"timestamp"`
}

// Ledger owns the portfolio: cash balance, positions, and the append-only
// trade history.
type Ledger struct {
	mu          sync.Mutex
	initialCash decimal.Decimal
	cash        decimal.Decimal
	positions   map[string]*Position
	trades      []Trade
	realized    decimal.Decimal
}

// NewLedger creates a ledger with the given starting cash.
func NewLedger(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*Position),
	}
}

// Reset replaces all state: empty positions, empty history, cash = initialCash.
func (l *Ledger) Reset(initialCash decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialCash = initialCash
	l.cash = initialCash
	l.positions = make(map[string]*Position)
	l.trades = nil
	l.realized = decimal.Zero
}

// ExecuteTrade applies a BUY or SELL to the portfolio.
//
// BUY debits cash and recomputes the weighted-average cost basis.
// SELL credits cash, reduces the position (removing it at zero), and
// accumulates realized P&L = (price − avg cost) × qty.
// On any error the portfolio is left untouched.
func (l *Ledger) ExecuteTrade(symbol string, side Side, qty int64, price decimal.Decimal) (Trade, error) {
	if qty <= 0 {
		return Trade{}, fmt.Errorf("qty %d: %w", qty, ErrInvalidOrder)
	}
	if !price.IsPositive() {
		return Trade{}, fmt.Errorf("price %s: %w", price, ErrInvalidOrder)
	}
	if side != SideBuy && side != SideSell {
		return Trade{}, fmt.Errorf("side %q: %w", side, ErrInvalidOrder)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	value := price.Mul(decimal.NewFromInt(qty))
	realized := decimal.Zero

	switch side {
	case SideBuy:
		if value.GreaterThan(l.cash) {
			return Trade{}, fmt.Errorf("%s: need %s, have %s: %w",
				symbol, value, l.cash, ErrInsufficientFunds)
		}
		l.cash = l.cash.Sub(value)

		pos, ok := l.positions[symbol]
		if !ok {
			l.positions[symbol] = &Position{Symbol: symbol, Qty: qty, AvgPrice: price}
		} else {
			totalQty := pos.Qty + qty
			totalCost := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Qty)).Add(value)
			pos.Qty = totalQty
			pos.AvgPrice = totalCost.Div(decimal.NewFromInt(totalQty))
		}

	case SideSell:
		pos, ok := l.positions[symbol]
		if !ok || pos.Qty < qty {
			held := int64(0)
			if ok {
				held = pos.Qty
			}
			return Trade{}, fmt.Errorf("%s: have %d, want %d: %w",
				symbol, held, qty, ErrInsufficientPosition)
		}
		l.cash = l.cash.Add(value)
		realized = price.Sub(pos.AvgPrice).Mul(decimal.NewFromInt(qty))
		l.realized = l.realized.Add(realized)
		pos.Qty -= qty
		if pos.Qty == 0 {
			delete(l.positions, symbol)
		}
	}

	trade := Trade{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		Price:     price,
		Value:     value,
		Realized:  realized,
		Timestamp: time.Now().UTC(),
	}
	l.trades = append(l.trades, trade)
	return trade, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// InitialCash returns the cash the ledger was last reset to.
func (l *Ledger) InitialCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialCash
}

// RealizedPnL returns the accumulated realized P&L.
func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// Position returns the held position for symbol, if any.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns a snapshot of all held positions, sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CostExposure returns the total cost basis across open positions.
func (l *Ledger) CostExposure() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.AvgPrice.Mul(decimal.NewFromInt(p.Qty)))
	}
	return total
}

// TradeHistory returns a copy of all trades in recorded order.
func (l *Ledger) TradeHistory() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]Trade, len(l.trades))
	copy(cp, l.trades)
	return cp
}

// TradeCount returns the number of recorded trades.
func (l *Ledger) TradeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}
