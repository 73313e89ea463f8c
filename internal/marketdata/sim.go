package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"trading-botv1/internal/model"
)

// Sim is a deterministic random-walk Provider for development and demos.
// The same seed and symbol always produce the same history, so strategy
// output is reproducible run to run.
type Sim struct {
	seed    int64
	symbols map[string]bool // nil allows any symbol

	mu    sync.Mutex
	last  map[string]float64 // last generated price per symbol
	clock func() time.Time
}

// NewSim creates a simulator. With no symbols every symbol is served;
// otherwise unknown symbols get ErrSymbolNotFound.
func NewSim(seed int64, symbols ...string) *Sim {
	s := &Sim{
		seed:  seed,
		last:  make(map[string]float64),
		clock: time.Now,
	}
	if len(symbols) > 0 {
		s.symbols = make(map[string]bool, len(symbols))
		for _, sym := range symbols {
			s.symbols[sym] = true
		}
	}
	return s
}

// History implements Provider with a seeded random walk, one daily bar per
// trading day ending yesterday.
func (s *Sim) History(ctx context.Context, symbol, period string) (model.PriceSeries, error) {
	if err := s.check(ctx, symbol); err != nil {
		return model.PriceSeries{}, err
	}

	n := periodBars(period)
	rng := rand.New(rand.NewSource(s.seed ^ symbolSeed(symbol)))
	price := 50 + rng.Float64()*250 // base price in [50, 300)

	day := s.clock().UTC().Truncate(24 * time.Hour)
	start := day.AddDate(0, 0, -n)

	bars := make([]model.Bar, 0, n)
	for i := 0; i < n; i++ {
		open := price
		// Daily drift up to ±2%.
		price *= 1 + (rng.Float64()-0.5)*0.04
		high := open
		low := open
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
		high *= 1 + rng.Float64()*0.01
		low *= 1 - rng.Float64()*0.01

		bars = append(bars, model.Bar{
			TS:     start.AddDate(0, 0, i),
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(price),
			Volume: int64(1_000_000 + rng.Intn(9_000_000)),
		})
	}

	s.mu.Lock()
	s.last[symbol] = bars[len(bars)-1].Close
	s.mu.Unlock()

	return model.PriceSeries{Symbol: symbol, Bars: bars}, nil
}

// Current implements Provider. The quote continues the walk from the last
// generated close, so consecutive calls drift like a live feed.
func (s *Sim) Current(ctx context.Context, symbol string) (Quote, error) {
	if err := s.check(ctx, symbol); err != nil {
		return Quote{}, err
	}

	s.mu.Lock()
	prev, ok := s.last[symbol]
	s.mu.Unlock()
	if !ok {
		// No history generated yet; derive the base deterministically.
		rng := rand.New(rand.NewSource(s.seed ^ symbolSeed(symbol)))
		prev = 50 + rng.Float64()*250
	}

	// Tick-to-tick moves are small, up to ±0.5%.
	rng := rand.New(rand.NewSource(s.seed ^ symbolSeed(symbol) ^ s.clock().Unix()))
	price := round2(prev * (1 + (rng.Float64()-0.5)*0.01))

	s.mu.Lock()
	s.last[symbol] = price
	s.mu.Unlock()

	change := round2(price - prev)
	pct := 0.0
	if prev != 0 {
		pct = round2(change / prev * 100)
	}
	return Quote{
		Symbol:    symbol,
		Price:     price,
		Change:    change,
		ChangePct: pct,
		Timestamp: s.clock().UTC(),
	}, nil
}

func (s *Sim) check(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.symbols != nil && !s.symbols[symbol] {
		return ErrSymbolNotFound
	}
	return nil
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
