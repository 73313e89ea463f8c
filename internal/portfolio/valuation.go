package portfolio

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PositionValue is a position marked to a current price.
type PositionValue struct {
	Position
	CurrentPrice     decimal.Decimal `json:"current_price"`
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
}

// Valuation is the full portfolio marked to current prices.
type Valuation struct {
	Cash          decimal.Decimal `json:"cash"`
	TotalValue    decimal.Decimal `json:"total_value"` // cash + Σ qty·price
	Positions     []PositionValue `json:"positions"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
}

// Valuation marks every open position to the supplied prices.
// Every held symbol must have a price; a missing one is ErrMissingPrice.
func (l *Ledger) Valuation(prices map[string]decimal.Decimal) (Valuation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := Valuation{
		Cash:        l.cash,
		TotalValue:  l.cash,
		RealizedPnL: l.realized,
	}

	for _, p := range l.positions {
		price, ok := prices[p.Symbol]
		if !ok {
			return Valuation{}, fmt.Errorf("%s: %w", p.Symbol, ErrMissingPrice)
		}

		qty := decimal.NewFromInt(p.Qty)
		marketValue := price.Mul(qty)
		costBasis := p.AvgPrice.Mul(qty)
		unrealized := marketValue.Sub(costBasis)

		pct := decimal.Zero
		if costBasis.IsPositive() {
			pct = unrealized.Div(costBasis).Mul(decimal.NewFromInt(100))
		}

		v.Positions = append(v.Positions, PositionValue{
			Position:         *p,
			CurrentPrice:     price,
			MarketValue:      marketValue,
			UnrealizedPnL:    unrealized,
			UnrealizedPnLPct: pct,
		})
		v.TotalValue = v.TotalValue.Add(marketValue)
		v.UnrealizedPnL = v.UnrealizedPnL.Add(unrealized)
	}

	sort.Slice(v.Positions, func(i, j int) bool { return v.Positions[i].Symbol < v.Positions[j].Symbol })
	return v, nil
}
