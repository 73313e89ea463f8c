package strategy

import (
	"trading-botv1/internal/indicator"
	"trading-botv1/internal/model"
)

// MACDStrategy signals on the MACD line crossing its signal line.
type MACDStrategy struct {
	fast   int
	slow   int
	signal int
}

// NewMACDStrategy returns the MACD strategy with the default 12/26/9 periods.
func NewMACDStrategy() *MACDStrategy {
	return &MACDStrategy{fast: 12, slow: 26, signal: 9}
}

func (s *MACDStrategy) Name() string { return "macd" }

func (s *MACDStrategy) Description() string {
	return "MACD: buy when the MACD line crosses above the signal line, sell on the inverse cross."
}

func (s *MACDStrategy) Params() map[string]float64 {
	return map[string]float64{
		"fast_period":   float64(s.fast),
		"slow_period":   float64(s.slow),
		"signal_period": float64(s.signal),
	}
}

func (s *MACDStrategy) MinBars() int { return s.slow + s.signal }

func (s *MACDStrategy) Evaluate(series model.PriceSeries) (Signal, error) {
	res, err := indicator.MACD(series, s.fast, s.slow, s.signal)
	if err != nil {
		return Signal{}, err
	}

	n := len(res.MACD)
	currDiff := res.MACD[n-1] - res.Signal[n-1]
	prevDiff := res.MACD[n-2] - res.Signal[n-2]

	macd, sig, hist := res.Latest()
	details := map[string]float64{
		"macd":        macd,
		"signal_line": sig,
		"histogram":   hist,
		"prev_macd":   res.MACD[n-2],
		"prev_signal": res.Signal[n-2],
	}

	switch {
	case prevDiff <= 0 && currDiff > 0:
		return newSignal(s, series, ActionBuy, 0.7, "MACD crossed above signal line", details), nil

	case prevDiff >= 0 && currDiff < 0:
		return newSignal(s, series, ActionSell, 0.7, "MACD crossed below signal line", details), nil

	case currDiff > 0:
		return newSignal(s, series, ActionHold, 0.5, "hold (bullish: MACD above signal line)", details), nil

	default:
		return newSignal(s, series, ActionHold, 0.5, "hold (bearish: MACD below signal line)", details), nil
	}
}
