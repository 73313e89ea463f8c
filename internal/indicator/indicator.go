// Package indicator provides technical indicator calculations over price series.
//
// All indicators are pure functions of a model.PriceSeries: no internal state,
// no randomness. The same series always yields the same value, which is what
// makes strategy decisions auditable and testable (tolerance 1e-6).
package indicator

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator's minimum window.
var ErrInsufficientData = errors.New("insufficient data")

func insufficient(name string, need, have int) error {
	return fmt.Errorf("%s: need %d bars, have %d: %w", name, need, have, ErrInsufficientData)
}

// mean returns the arithmetic mean of vals. Caller guarantees len > 0.
func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sampleStddev returns the sample standard deviation (ddof=1) of vals.
// Returns 0 for fewer than two values.
func sampleStddev(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	m := mean(vals)
	variance := 0.0
	for _, v := range vals {
		d := v - m
		variance += d * d
	}
	variance /= float64(n - 1)
	return math.Sqrt(variance)
}

// emaSeries computes the exponential moving average of vals with the given
// period. The first output value is the SMA of the first period inputs
// (SMA seed), after which EMA = price*k + prev*(1-k) with k = 2/(period+1).
// Output length is len(vals)-period+1; output[i] corresponds to vals[period-1+i].
// Caller guarantees len(vals) >= period >= 1.
func emaSeries(vals []float64, period int) []float64 {
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(vals)-period+1)

	seed := mean(vals[:period])
	out = append(out, seed)

	prev := seed
	for _, v := range vals[period:] {
		prev = v*k + prev*(1-k)
		out = append(out, prev)
	}
	return out
}
