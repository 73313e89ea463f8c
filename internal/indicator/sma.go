package indicator

import "trading-botv1/internal/model"

// SMA returns the simple moving average of the last window closes.
func SMA(series model.PriceSeries, window int) (float64, error) {
	if window <= 0 {
		return 0, insufficient("SMA", 1, window)
	}
	closes := series.Closes()
	if len(closes) < window {
		return 0, insufficient("SMA", window, len(closes))
	}
	return mean(closes[len(closes)-window:]), nil
}

// SMASeries returns the full rolling SMA. out[i] is the mean of the window
// ending at bar window-1+i, so out has len(series)-window+1 values and the
// last element equals SMA(series, window).
func SMASeries(series model.PriceSeries, window int) ([]float64, error) {
	if window <= 0 {
		return nil, insufficient("SMA", 1, window)
	}
	closes := series.Closes()
	if len(closes) < window {
		return nil, insufficient("SMA", window, len(closes))
	}

	out := make([]float64, 0, len(closes)-window+1)
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out, nil
}

// EMA returns the exponential moving average over the whole series,
// seeded with the SMA of the first period closes.
func EMA(series model.PriceSeries, period int) (float64, error) {
	if period <= 0 {
		return 0, insufficient("EMA", 1, period)
	}
	closes := series.Closes()
	if len(closes) < period {
		return 0, insufficient("EMA", period, len(closes))
	}
	out := emaSeries(closes, period)
	return out[len(out)-1], nil
}
