// Package model holds the shared market-data contracts.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bar represents a single OHLCV bar for an instrument.
// Immutable once produced by a data source.
type Bar struct {
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	buf, _ := json.Marshal(b)
	return buf
}

// PriceSeries is an ordered OHLCV history for one symbol.
// Invariant: bar timestamps are strictly increasing.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes extracts the close column, oldest first.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar. ok is false for an empty series.
func (s PriceSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Validate checks the strictly-increasing timestamp invariant.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].TS.After(s.Bars[i-1].TS) {
			return fmt.Errorf("series %s: bar %d ts %s not after bar %d ts %s",
				s.Symbol, i, s.Bars[i].TS.Format(time.RFC3339), i-1, s.Bars[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}
