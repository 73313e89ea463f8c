package strategy

import (
	"errors"
	"testing"
	"time"

	"trading-botv1/internal/indicator"
	"trading-botv1/internal/model"
)

func seriesOf(closes ...float64) model.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{TS: base.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return model.PriceSeries{Symbol: "TEST", Bars: bars}
}

// flatThen returns n flat bars at base followed by one bar at last.
func flatThen(n int, base, last float64) model.PriceSeries {
	closes := make([]float64, n+1)
	for i := 0; i < n; i++ {
		closes[i] = base
	}
	closes[n] = last
	return seriesOf(closes...)
}

func TestEngine_UnknownStrategy(t *testing.T) {
	e := NewEngine()
	_, err := e.Evaluate(flatThen(30, 100, 100), "momentum")
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("got %v, want ErrUnknownStrategy", err)
	}
}

func TestEngine_PropagatesInsufficientData(t *testing.T) {
	e := NewEngine()
	_, err := e.Evaluate(seriesOf(100, 101, 102), "sma_crossover")
	if !errors.Is(err, indicator.ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
}

func TestEngine_RejectsUnorderedSeries(t *testing.T) {
	s := flatThen(30, 100, 100)
	s.Bars[5].TS = s.Bars[4].TS // duplicate timestamp

	e := NewEngine()
	if _, err := e.Evaluate(s, "sma_crossover"); err == nil {
		t.Fatal("expected error for unordered series")
	}
}

func TestEngine_ListsAllStrategies(t *testing.T) {
	e := NewEngine()
	list := e.List()
	if len(list) != 4 {
		t.Fatalf("List: got %d strategies, want 4", len(list))
	}
	want := []string{"sma_crossover", "rsi", "macd", "bollinger"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("List[%d]: got %q, want %q", i, list[i].Name, name)
		}
		if !e.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
	}
}

func TestEngine_SignalCarriesSymbolAndPrice(t *testing.T) {
	e := NewEngine()
	sig, err := e.Evaluate(flatThen(30, 100, 130), "sma_crossover")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Symbol != "TEST" {
		t.Errorf("Symbol: got %q", sig.Symbol)
	}
	if sig.Price != 130 {
		t.Errorf("Price: got %f, want 130", sig.Price)
	}
	if sig.Strategy != "sma_crossover" {
		t.Errorf("Strategy: got %q", sig.Strategy)
	}
	if sig.At.IsZero() {
		t.Error("At not set")
	}
}
