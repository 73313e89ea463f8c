package indicator

import "trading-botv1/internal/model"

// RSI computes the Relative Strength Index using Wilder's smoothing.
//
// The first period deltas seed the average gain/loss with a simple mean,
// then avg = (prevAvg*(period-1) + delta) / period for each later bar.
// Output is in [0, 100]; an all-gain series reads 100.
// Requires at least period+1 bars.
func RSI(series model.PriceSeries, period int) (float64, error) {
	if period <= 0 {
		return 0, insufficient("RSI", 2, period)
	}
	closes := series.Closes()
	if len(closes) < period+1 {
		return 0, insufficient("RSI", period+1, len(closes))
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), nil
}
