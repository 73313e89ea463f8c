// Package strategy turns price history into trading signals.
//
// A Strategy evaluates a model.PriceSeries and emits a Signal (BUY/SELL/HOLD)
// with the indicator values that triggered the decision. The Engine holds the
// closed set of known strategies and dispatches evaluation by name.
package strategy

import (
	"time"

	"trading-botv1/internal/model"
)

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal represents the outcome of evaluating one strategy on one series.
// Details carries the indicator values behind the decision so it can be
// audited and asserted on in tests.
type Signal struct {
	Symbol     string             `json:"symbol"`
	Strategy   string             `json:"strategy"`
	Action     Action             `json:"action"`
	Confidence float64            `json:"confidence"`
	Price      float64            `json:"price"` // latest close
	Reason     string             `json:"reason"`
	Details    map[string]float64 `json:"details"`
	At         time.Time          `json:"at"`
}

// Strategy is the interface all signal strategies implement.
type Strategy interface {
	// Name returns the unique selector name (e.g. "sma_crossover").
	Name() string

	// Description returns a one-line human description.
	Description() string

	// Params returns the fixed numeric parameters of the strategy.
	Params() map[string]float64

	// MinBars returns the minimum series length needed to evaluate.
	MinBars() int

	// Evaluate computes a Signal from the series, or
	// indicator.ErrInsufficientData when the series is too short.
	Evaluate(series model.PriceSeries) (Signal, error)
}

// newSignal fills the fields every strategy sets the same way.
func newSignal(s Strategy, series model.PriceSeries, action Action, confidence float64, reason string, details map[string]float64) Signal {
	last, _ := series.Last()
	if confidence > 1.0 {
		confidence = 1.0
	}
	return Signal{
		Symbol:     series.Symbol,
		Strategy:   s.Name(),
		Action:     action,
		Confidence: confidence,
		Price:      last.Close,
		Reason:     reason,
		Details:    details,
		At:         time.Now().UTC(),
	}
}
