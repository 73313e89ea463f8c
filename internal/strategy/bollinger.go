package strategy

import (
	"trading-botv1/internal/indicator"
	"trading-botv1/internal/model"
)

// BollingerStrategy signals on closes touching the Bollinger bands.
type BollingerStrategy struct {
	window int
	k      float64
}

// NewBollingerStrategy returns the Bollinger strategy with window 20 and k=2.
func NewBollingerStrategy() *BollingerStrategy {
	return &BollingerStrategy{window: 20, k: 2}
}

func (s *BollingerStrategy) Name() string { return "bollinger" }

func (s *BollingerStrategy) Description() string {
	return "Bollinger Bands: buy when the close touches the lower band, sell at the upper band."
}

func (s *BollingerStrategy) Params() map[string]float64 {
	return map[string]float64{
		"window":  float64(s.window),
		"std_dev": s.k,
	}
}

func (s *BollingerStrategy) MinBars() int { return s.window }

func (s *BollingerStrategy) Evaluate(series model.PriceSeries) (Signal, error) {
	bands, err := indicator.BollingerBands(series, s.window, s.k)
	if err != nil {
		return Signal{}, err
	}

	last, _ := series.Last()
	price := last.Close

	details := map[string]float64{
		"upper_band":  bands.Upper,
		"middle_band": bands.Middle,
		"lower_band":  bands.Lower,
		"close":       price,
	}

	switch {
	case price <= bands.Lower:
		return newSignal(s, series, ActionBuy, 0.7, "close at or below lower band", details), nil

	case price >= bands.Upper:
		return newSignal(s, series, ActionSell, 0.7, "close at or above upper band", details), nil

	case price < bands.Middle:
		return newSignal(s, series, ActionHold, 0.4, "hold (bullish: close below middle band)", details), nil

	default:
		return newSignal(s, series, ActionHold, 0.4, "hold (bearish: close above middle band)", details), nil
	}
}
