package indicator

import "trading-botv1/internal/model"

// MACDResult holds the aligned MACD, signal, and histogram series.
// All three slices have the same length; index len-1 is the latest bar and
// len-2 the prior bar, which is what crossover detection needs.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// Latest returns the most recent MACD, signal, and histogram values.
func (r MACDResult) Latest() (macd, signal, hist float64) {
	n := len(r.MACD)
	return r.MACD[n-1], r.Signal[n-1], r.Histogram[n-1]
}

// MACD computes the Moving Average Convergence Divergence series:
// MACD line = EMA(fast) − EMA(slow), signal = EMA(signalPeriod) of the MACD
// line, histogram = MACD − signal. Requires at least slow+signalPeriod bars
// so that the signal line has two values for cross detection.
func MACD(series model.PriceSeries, fast, slow, signalPeriod int) (MACDResult, error) {
	if fast <= 0 || slow <= fast || signalPeriod <= 0 {
		return MACDResult{}, insufficient("MACD", slow+signalPeriod, series.Len())
	}
	closes := series.Closes()
	if len(closes) < slow+signalPeriod {
		return MACDResult{}, insufficient("MACD", slow+signalPeriod, len(closes))
	}

	emaFast := emaSeries(closes, fast) // emaFast[i] ↔ bar fast-1+i
	emaSlow := emaSeries(closes, slow) // emaSlow[i] ↔ bar slow-1+i

	// MACD line exists once both EMAs do, i.e. from bar slow-1 on.
	macdLine := make([]float64, len(emaSlow))
	offset := slow - fast
	for i := range emaSlow {
		macdLine[i] = emaFast[i+offset] - emaSlow[i]
	}

	signalLine := emaSeries(macdLine, signalPeriod)

	// Trim the MACD line to the signal line's span.
	trimmed := macdLine[len(macdLine)-len(signalLine):]
	hist := make([]float64, len(signalLine))
	for i := range signalLine {
		hist[i] = trimmed[i] - signalLine[i]
	}

	return MACDResult{MACD: trimmed, Signal: signalLine, Histogram: hist}, nil
}
