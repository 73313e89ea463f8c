package portfolio

import (
	"log"
	"sync"

	"github.com/shopspring/decimal"
)

// RiskLimits defines the thresholds consulted before an automated trade.
type RiskLimits struct {
	MaxPositionQty   int64           `json:"max_position_qty"`   // max qty per symbol after the trade
	MaxOpenPositions int             `json:"max_open_positions"` // max concurrent positions
	MaxExposure      decimal.Decimal `json:"max_exposure"`       // max total cost basis incl. the trade
	MaxDailyLoss     decimal.Decimal `json:"max_daily_loss"`     // stop trading once daily realized loss exceeds this
}

// DefaultRiskLimits returns conservative defaults.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionQty:   1000,
		MaxOpenPositions: 10,
		MaxExposure:      decimal.NewFromInt(1_000_000),
		MaxDailyLoss:     decimal.NewFromInt(5_000),
	}
}

// RiskManager gates automated BUY orders against the configured limits and
// tracks realized P&L for the day.
type RiskManager struct {
	mu       sync.Mutex
	limits   RiskLimits
	dailyPnL decimal.Decimal
}

// NewRiskManager creates a RiskManager with the given limits.
func NewRiskManager(limits RiskLimits) *RiskManager {
	return &RiskManager{limits: limits}
}

// CanTrade reports whether a BUY of qty at price on symbol fits the limits.
// SELLs are always allowed: closing positions never adds risk.
func (rm *RiskManager) CanTrade(ledger *Ledger, symbol string, side Side, qty int64, price decimal.Decimal) (bool, string) {
	if side == SideSell {
		return true, ""
	}

	rm.mu.Lock()
	dailyPnL := rm.dailyPnL
	limits := rm.limits
	rm.mu.Unlock()

	if dailyPnL.LessThan(limits.MaxDailyLoss.Neg()) {
		return false, "max daily loss reached"
	}

	pos, held := ledger.Position(symbol)
	if !held && len(ledger.Positions()) >= limits.MaxOpenPositions {
		return false, "max open positions reached"
	}
	resulting := qty
	if held {
		resulting += pos.Qty
	}
	if resulting > limits.MaxPositionQty {
		return false, "position size exceeds limit"
	}

	tradeCost := price.Mul(decimal.NewFromInt(qty))
	if ledger.CostExposure().Add(tradeCost).GreaterThan(limits.MaxExposure) {
		return false, "max exposure exceeded"
	}

	return true, ""
}

// RecordPnL accumulates realized P&L into the daily counter.
func (rm *RiskManager) RecordPnL(pnl decimal.Decimal) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyPnL = rm.dailyPnL.Add(pnl)
	log.Printf("[risk] daily P&L: %s", rm.dailyPnL)
}

// ResetDaily clears the daily P&L counter.
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyPnL = decimal.Zero
}

// Status returns the current risk state for reporting.
func (rm *RiskManager) Status() map[string]any {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return map[string]any{
		"daily_pnl": rm.dailyPnL,
		"limits":    rm.limits,
	}
}
