package strategy

import (
	"trading-botv1/internal/indicator"
	"trading-botv1/internal/model"
)

// RSIStrategy signals on oversold/overbought RSI levels.
type RSIStrategy struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIStrategy returns the RSI strategy with period 14 and 30/70 levels.
func NewRSIStrategy() *RSIStrategy {
	return &RSIStrategy{period: 14, oversold: 30, overbought: 70}
}

func (s *RSIStrategy) Name() string { return "rsi" }

func (s *RSIStrategy) Description() string {
	return "RSI: buy when RSI is below the oversold level, sell above the overbought level."
}

func (s *RSIStrategy) Params() map[string]float64 {
	return map[string]float64{
		"period":     float64(s.period),
		"oversold":   s.oversold,
		"overbought": s.overbought,
	}
}

func (s *RSIStrategy) MinBars() int { return s.period + 1 }

func (s *RSIStrategy) Evaluate(series model.PriceSeries) (Signal, error) {
	rsi, err := indicator.RSI(series, s.period)
	if err != nil {
		return Signal{}, err
	}

	details := map[string]float64{
		"rsi":              rsi,
		"period":           float64(s.period),
		"oversold_level":   s.oversold,
		"overbought_level": s.overbought,
	}

	switch {
	case rsi < s.oversold:
		conf := 0.5 + (s.oversold-rsi)/s.oversold*0.4
		return newSignal(s, series, ActionBuy, conf, "RSI oversold", details), nil

	case rsi > s.overbought:
		conf := 0.5 + (rsi-s.overbought)/(100-s.overbought)*0.4
		return newSignal(s, series, ActionSell, conf, "RSI overbought", details), nil

	case rsi < 50:
		return newSignal(s, series, ActionHold, 0.4, "hold (bullish: RSI below midline)", details), nil

	default:
		return newSignal(s, series, ActionHold, 0.4, "hold (bearish: RSI above midline)", details), nil
	}
}
