package indicator

import "trading-botv1/internal/model"

// Bands holds the Bollinger band levels for the latest bar.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerBands computes the bands over the last window closes:
// middle = SMA(window), upper/lower = middle ± k·stddev(window).
// Standard deviation is the sample stddev (ddof=1).
func BollingerBands(series model.PriceSeries, window int, k float64) (Bands, error) {
	if window <= 1 {
		return Bands{}, insufficient("BollingerBands", 2, window)
	}
	closes := series.Closes()
	if len(closes) < window {
		return Bands{}, insufficient("BollingerBands", window, len(closes))
	}

	tail := closes[len(closes)-window:]
	middle := mean(tail)
	sd := sampleStddev(tail)

	return Bands{
		Upper:  middle + k*sd,
		Middle: middle,
		Lower:  middle - k*sd,
	}, nil
}
