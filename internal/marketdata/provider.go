// Package marketdata fetches price history and live quotes for the bot.
//
// A Provider is anything that can serve OHLCV history and a current quote.
// The HTTP Client talks to the upstream quote API, the Sim generates
// deterministic data for development, and CachedProvider layers a TTL cache
// (in-memory or Redis) over either.
package marketdata

import (
	"context"
	"errors"
	"time"

	"trading-botv1/internal/model"
)

var (
	// ErrSymbolNotFound is returned when the upstream has no data for a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrUnavailable is returned when the upstream cannot be reached or
	// answers with a server error.
	ErrUnavailable = errors.New("market data unavailable")
)

// Quote is the latest traded price for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider serves price history and current quotes.
type Provider interface {
	// History returns daily bars for the period ("1mo", "3mo", "6mo", "1y"),
	// oldest first.
	History(ctx context.Context, symbol, period string) (model.PriceSeries, error)

	// Current returns the latest quote for the symbol.
	Current(ctx context.Context, symbol string) (Quote, error)
}

// periodBars maps a history period to a number of daily bars.
// Roughly 22 trading days per month.
func periodBars(period string) int {
	switch period {
	case "1mo":
		return 22
	case "6mo":
		return 132
	case "1y":
		return 264
	default: // "3mo" and anything unrecognised
		return 66
	}
}
