package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trading-botv1/internal/model"
)

// ──────────────────────────────────────────────
// Memory cache
// ──────────────────────────────────────────────

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "q", Quote{Symbol: "AAPL", Price: 150}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var q Quote
	hit, err := c.Get(ctx, "q", &q)
	if err != nil || !hit {
		t.Fatalf("Get: hit=%v err=%v", hit, err)
	}
	if q.Symbol != "AAPL" || q.Price != 150 {
		t.Errorf("round-trip: %+v", q)
	}

	if hit, _ := c.Get(ctx, "absent", &q); hit {
		t.Error("hit on missing key")
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "q", Quote{Symbol: "AAPL"}, time.Minute)

	var q Quote
	if hit, _ := c.Get(ctx, "q", &q); !hit {
		t.Fatal("fresh entry missed")
	}

	now = now.Add(2 * time.Minute)
	if hit, _ := c.Get(ctx, "q", &q); hit {
		t.Fatal("expired entry served")
	}
}

// ──────────────────────────────────────────────
// Cached provider
// ──────────────────────────────────────────────

type countingProvider struct {
	quotes    atomic.Int64
	histories atomic.Int64
}

func (p *countingProvider) Current(_ context.Context, symbol string) (Quote, error) {
	p.quotes.Add(1)
	return Quote{Symbol: symbol, Price: 100}, nil
}

func (p *countingProvider) History(_ context.Context, symbol, _ string) (model.PriceSeries, error) {
	p.histories.Add(1)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 3)
	for i := range bars {
		bars[i] = model.Bar{TS: base.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	}
	return model.PriceSeries{Symbol: symbol, Bars: bars}, nil
}

func TestCachedProvider_ServesFromCache(t *testing.T) {
	upstream := &countingProvider{}
	p := NewCachedProvider(upstream, NewMemoryCache(), time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.Current(ctx, "AAPL"); err != nil {
			t.Fatalf("Current: %v", err)
		}
	}
	if n := upstream.quotes.Load(); n != 1 {
		t.Errorf("upstream quote calls: got %d, want 1", n)
	}

	for i := 0; i < 3; i++ {
		if _, err := p.History(ctx, "AAPL", "3mo"); err != nil {
			t.Fatalf("History: %v", err)
		}
	}
	if n := upstream.histories.Load(); n != 1 {
		t.Errorf("upstream history calls: got %d, want 1", n)
	}

	// A different symbol is a separate key.
	p.Current(ctx, "MSFT")
	if n := upstream.quotes.Load(); n != 2 {
		t.Errorf("upstream quote calls after new symbol: got %d, want 2", n)
	}
}

type testCounter struct{ n atomic.Int64 }

func (c *testCounter) Inc() { c.n.Add(1) }

func TestCachedProvider_CountsHitsAndMisses(t *testing.T) {
	var hits, misses testCounter
	p := NewCachedProvider(&countingProvider{}, NewMemoryCache(), time.Minute, time.Minute).
		Instrument(&hits, &misses)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.Current(ctx, "AAPL"); err != nil {
			t.Fatalf("Current: %v", err)
		}
	}
	if got := misses.n.Load(); got != 1 {
		t.Errorf("misses: got %d, want 1", got)
	}
	if got := hits.n.Load(); got != 2 {
		t.Errorf("hits: got %d, want 2", got)
	}

	if _, err := p.History(ctx, "AAPL", "3mo"); err != nil {
		t.Fatalf("History: %v", err)
	}
	if got := misses.n.Load(); got != 2 {
		t.Errorf("misses after history: got %d, want 2", got)
	}
}

// ──────────────────────────────────────────────
// Sim
// ──────────────────────────────────────────────

func TestSim_HistoryDeterministic(t *testing.T) {
	ctx := context.Background()
	a, _ := NewSim(42).History(ctx, "AAPL", "3mo")
	b, _ := NewSim(42).History(ctx, "AAPL", "3mo")

	if len(a.Bars) != len(b.Bars) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Bars), len(b.Bars))
	}
	for i := range a.Bars {
		if a.Bars[i] != b.Bars[i] {
			t.Fatalf("bar %d differs: %+v vs %+v", i, a.Bars[i], b.Bars[i])
		}
	}

	c, _ := NewSim(43).History(ctx, "AAPL", "3mo")
	same := true
	for i := range a.Bars {
		if a.Bars[i].Close != c.Bars[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical closes")
	}
}

func TestSim_HistoryValidAndSized(t *testing.T) {
	ctx := context.Background()
	s := NewSim(7)

	for period, want := range map[string]int{"1mo": 22, "3mo": 66, "6mo": 132, "1y": 264} {
		series, err := s.History(ctx, "MSFT", period)
		if err != nil {
			t.Fatalf("History(%s): %v", period, err)
		}
		if len(series.Bars) != want {
			t.Errorf("%s: got %d bars, want %d", period, len(series.Bars), want)
		}
		if err := series.Validate(); err != nil {
			t.Errorf("%s: invalid series: %v", period, err)
		}
	}
}

func TestSim_UnknownSymbol(t *testing.T) {
	s := NewSim(1, "AAPL")
	_, err := s.Current(context.Background(), "NOPE")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("got %v, want ErrSymbolNotFound", err)
	}
	if _, err := s.Current(context.Background(), "AAPL"); err != nil {
		t.Fatalf("known symbol: %v", err)
	}
}

// ──────────────────────────────────────────────
// HTTP client
// ──────────────────────────────────────────────

func quoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			json.NewEncoder(w).Encode(Quote{Symbol: "AAPL", Price: 150.25, Timestamp: time.Now()})
		case "BOOM":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/api/v1/history", func(w http.ResponseWriter, r *http.Request) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		bars := make([]model.Bar, 5)
		for i := range bars {
			bars[i] = model.Bar{TS: base.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100 + float64(i), Volume: 1000}
		}
		json.NewEncoder(w).Encode(map[string]any{"symbol": r.URL.Query().Get("symbol"), "bars": bars})
	})
	return httptest.NewServer(mux)
}

func TestClient_Current(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	q, err := c.Current(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if q.Symbol != "AAPL" || q.Price != 150.25 {
		t.Errorf("quote: %+v", q)
	}
}

func TestClient_History(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	series, err := c.History(context.Background(), "AAPL", "3mo")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if series.Symbol != "AAPL" || len(series.Bars) != 5 {
		t.Errorf("series: symbol=%s bars=%d", series.Symbol, len(series.Bars))
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	if _, err := c.Current(context.Background(), "NOPE"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("404: got %v, want ErrSymbolNotFound", err)
	}
	if _, err := c.Current(context.Background(), "BOOM"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("500: got %v, want ErrUnavailable", err)
	}

	down := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if _, err := down.Current(context.Background(), "AAPL"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("transport: got %v, want ErrUnavailable", err)
	}
}

func TestClient_TOTPSession(t *testing.T) {
	const token = "session-token-1"
	var logins atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		if r.FormValue("totp") == "" || r.FormValue("api_key") != "key123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/api/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(Quote{Symbol: "AAPL", Price: 150})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		APIKey:     "key123",
		TOTPSecret: "JBSWY3DPEHPK3PXP",
	})

	if _, err := c.Current(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if _, err := c.Current(context.Background(), "AAPL"); err != nil {
		t.Fatalf("second Current: %v", err)
	}
	if n := logins.Load(); n != 1 {
		t.Errorf("logins: got %d, want 1 (session reused)", n)
	}
}
