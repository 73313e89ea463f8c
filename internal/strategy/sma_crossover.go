package strategy

import (
	"fmt"

	"trading-botv1/internal/indicator"
	"trading-botv1/internal/model"
)

// SMACrossover signals on short/long SMA crosses.
//
// Buy: short SMA crosses above long SMA on the latest bar (golden cross).
// Sell: short SMA crosses below long SMA on the latest bar (death cross).
// No cross on the latest bar is a HOLD with a bullish or bearish bias.
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACrossover returns the crossover strategy with the default 10/30 periods.
func NewSMACrossover() *SMACrossover {
	return &SMACrossover{shortPeriod: 10, longPeriod: 30}
}

func (s *SMACrossover) Name() string { return "sma_crossover" }

func (s *SMACrossover) Description() string {
	return "SMA crossover: buy when the short SMA crosses above the long SMA, sell on the inverse cross."
}

func (s *SMACrossover) Params() map[string]float64 {
	return map[string]float64{
		"short_period": float64(s.shortPeriod),
		"long_period":  float64(s.longPeriod),
	}
}

// MinBars is longPeriod+1: cross detection needs the long SMA on the prior
// bar as well as the latest one.
func (s *SMACrossover) MinBars() int { return s.longPeriod + 1 }

func (s *SMACrossover) Evaluate(series model.PriceSeries) (Signal, error) {
	if series.Len() < s.MinBars() {
		return Signal{}, fmt.Errorf("sma_crossover: need %d bars, have %d: %w",
			s.MinBars(), series.Len(), indicator.ErrInsufficientData)
	}

	shortS, err := indicator.SMASeries(series, s.shortPeriod)
	if err != nil {
		return Signal{}, err
	}
	longS, err := indicator.SMASeries(series, s.longPeriod)
	if err != nil {
		return Signal{}, err
	}

	currShort, prevShort := shortS[len(shortS)-1], shortS[len(shortS)-2]
	currLong, prevLong := longS[len(longS)-1], longS[len(longS)-2]

	details := map[string]float64{
		"short_sma":    currShort,
		"long_sma":     currLong,
		"prev_short":   prevShort,
		"prev_long":    prevLong,
		"short_period": float64(s.shortPeriod),
		"long_period":  float64(s.longPeriod),
	}

	switch {
	case prevShort <= prevLong && currShort > currLong:
		conf := 0.5 + (currShort-currLong)/currLong*10
		if conf > 0.9 {
			conf = 0.9
		}
		return newSignal(s, series, ActionBuy, conf, "golden cross (short SMA crossed above long)", details), nil

	case prevShort >= prevLong && currShort < currLong:
		conf := 0.5 + (currLong-currShort)/currLong*10
		if conf > 0.9 {
			conf = 0.9
		}
		return newSignal(s, series, ActionSell, conf, "death cross (short SMA crossed below long)", details), nil

	case currShort > currLong:
		conf := 0.5 + (currShort-currLong)/currLong*5
		return newSignal(s, series, ActionHold, conf, "hold (bullish: short SMA above long)", details), nil

	default:
		conf := 0.5 + (currLong-currShort)/currLong*5
		return newSignal(s, series, ActionHold, conf, "hold (bearish: short SMA below long)", details), nil
	}
}
