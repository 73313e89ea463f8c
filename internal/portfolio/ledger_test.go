package portfolio

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func assertDecEq(t *testing.T, label string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: got %s, want %s", label, got, want)
	}
}

// Worked example: reset(10000); BUY 10 AAPL @150 → cash 8500, qty 10 @150;
// SELL 5 @160 → cash 9300, qty 5 @150, realized +50.
func TestLedger_BuySellExample(t *testing.T) {
	l := NewLedger(dec(10000))

	if _, err := l.ExecuteTrade("AAPL", SideBuy, 10, dec(150)); err != nil {
		t.Fatalf("BUY: %v", err)
	}
	assertDecEq(t, "cash after BUY", l.Cash(), dec(8500))
	pos, ok := l.Position("AAPL")
	if !ok {
		t.Fatal("position missing after BUY")
	}
	if pos.Qty != 10 {
		t.Errorf("qty: got %d, want 10", pos.Qty)
	}
	assertDecEq(t, "avg cost", pos.AvgPrice, dec(150))

	sell, err := l.ExecuteTrade("AAPL", SideSell, 5, dec(160))
	if err != nil {
		t.Fatalf("SELL: %v", err)
	}
	assertDecEq(t, "cash after SELL", l.Cash(), dec(9300))
	pos, _ = l.Position("AAPL")
	if pos.Qty != 5 {
		t.Errorf("qty after SELL: got %d, want 5", pos.Qty)
	}
	assertDecEq(t, "avg cost after SELL", pos.AvgPrice, dec(150))
	assertDecEq(t, "realized on trade", sell.Realized, dec(50))
	assertDecEq(t, "realized total", l.RealizedPnL(), dec(50))
}

func TestLedger_WeightedAverageCost(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(100))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(120))

	pos, _ := l.Position("AAPL")
	if pos.Qty != 20 {
		t.Fatalf("qty: got %d, want 20", pos.Qty)
	}
	assertDecEq(t, "weighted avg", pos.AvgPrice, dec(110))
}

func TestLedger_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	l := NewLedger(dec(1000))
	l.ExecuteTrade("AAPL", SideBuy, 5, dec(100))

	cashBefore := l.Cash()
	tradesBefore := l.TradeCount()
	posBefore, _ := l.Position("AAPL")

	_, err := l.ExecuteTrade("AAPL", SideBuy, 100, dec(100))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}

	assertDecEq(t, "cash unchanged", l.Cash(), cashBefore)
	if l.TradeCount() != tradesBefore {
		t.Errorf("trade count changed: %d → %d", tradesBefore, l.TradeCount())
	}
	posAfter, _ := l.Position("AAPL")
	if posAfter.Qty != posBefore.Qty {
		t.Errorf("position changed: %d → %d", posBefore.Qty, posAfter.Qty)
	}
}

func TestLedger_InsufficientPosition(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 5, dec(100))

	_, err := l.ExecuteTrade("AAPL", SideSell, 10, dec(100))
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("got %v, want ErrInsufficientPosition", err)
	}
	_, err = l.ExecuteTrade("MSFT", SideSell, 1, dec(100))
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("unheld symbol: got %v, want ErrInsufficientPosition", err)
	}
}

func TestLedger_InvalidOrder(t *testing.T) {
	l := NewLedger(dec(10000))

	cases := []struct {
		name  string
		side  Side
		qty   int64
		price decimal.Decimal
	}{
		{"zero qty", SideBuy, 0, dec(100)},
		{"negative qty", SideBuy, -5, dec(100)},
		{"zero price", SideBuy, 5, dec(0)},
		{"negative price", SideSell, 5, dec(-1)},
		{"bad side", Side("SHORT"), 5, dec(100)},
	}
	for _, tc := range cases {
		if _, err := l.ExecuteTrade("AAPL", tc.side, tc.qty, tc.price); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("%s: got %v, want ErrInvalidOrder", tc.name, err)
		}
	}
	if l.TradeCount() != 0 {
		t.Errorf("invalid orders recorded: %d trades", l.TradeCount())
	}
}

// SELL then BUY back at the same price restores cash and position exactly,
// with zero realized P&L for the round trip.
func TestLedger_SamePriceRoundTrip(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(150))

	cashBefore := l.Cash()
	posBefore, _ := l.Position("AAPL")
	realizedBefore := l.RealizedPnL()

	if _, err := l.ExecuteTrade("AAPL", SideSell, 4, dec(150)); err != nil {
		t.Fatalf("SELL: %v", err)
	}
	if _, err := l.ExecuteTrade("AAPL", SideBuy, 4, dec(150)); err != nil {
		t.Fatalf("BUY back: %v", err)
	}

	assertDecEq(t, "cash restored", l.Cash(), cashBefore)
	posAfter, _ := l.Position("AAPL")
	if posAfter.Qty != posBefore.Qty {
		t.Errorf("qty: got %d, want %d", posAfter.Qty, posBefore.Qty)
	}
	assertDecEq(t, "avg cost restored", posAfter.AvgPrice, posBefore.AvgPrice)
	assertDecEq(t, "round-trip realized", l.RealizedPnL(), realizedBefore)
}

func TestLedger_PositionRemovedAtZero(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(100))
	l.ExecuteTrade("AAPL", SideSell, 10, dec(100))

	if _, ok := l.Position("AAPL"); ok {
		t.Fatal("position still present after selling out")
	}
	if len(l.Positions()) != 0 {
		t.Fatalf("Positions: got %d, want 0", len(l.Positions()))
	}
}

// Valuation is linear: cash + Σ qty·price.
func TestLedger_ValuationLinear(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(150)) // cash 8500
	l.ExecuteTrade("MSFT", SideBuy, 5, dec(300))  // cash 7000

	v, err := l.Valuation(map[string]decimal.Decimal{
		"AAPL": dec(160),
		"MSFT": dec(310),
	})
	if err != nil {
		t.Fatalf("Valuation: %v", err)
	}
	// 7000 + 10·160 + 5·310 = 10150
	assertDecEq(t, "total value", v.TotalValue, dec(10150))
	// (160-150)·10 + (310-300)·5 = 150
	assertDecEq(t, "unrealized", v.UnrealizedPnL, dec(150))
	if len(v.Positions) != 2 {
		t.Fatalf("positions: got %d, want 2", len(v.Positions))
	}
	assertDecEq(t, "AAPL unrealized", v.Positions[0].UnrealizedPnL, dec(100))
}

func TestLedger_ValuationMissingPrice(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(150))

	_, err := l.Valuation(map[string]decimal.Decimal{"MSFT": dec(300)})
	if !errors.Is(err, ErrMissingPrice) {
		t.Fatalf("got %v, want ErrMissingPrice", err)
	}
}

func TestLedger_TradeHistoryIsACopy(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 1, dec(100))
	l.ExecuteTrade("AAPL", SideBuy, 2, dec(100))

	h := l.TradeHistory()
	if len(h) != 2 {
		t.Fatalf("history: got %d, want 2", len(h))
	}
	if h[0].Qty != 1 || h[1].Qty != 2 {
		t.Error("history out of recorded order")
	}
	h[0].Symbol = "HACKED"
	if l.TradeHistory()[0].Symbol != "AAPL" {
		t.Error("caller mutation leaked into ledger history")
	}
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger(dec(10000))
	l.ExecuteTrade("AAPL", SideBuy, 10, dec(150))
	l.ExecuteTrade("AAPL", SideSell, 5, dec(160))

	l.Reset(dec(50000))
	assertDecEq(t, "cash", l.Cash(), dec(50000))
	if l.TradeCount() != 0 {
		t.Errorf("trades survive reset: %d", l.TradeCount())
	}
	if len(l.Positions()) != 0 {
		t.Errorf("positions survive reset: %d", len(l.Positions()))
	}
	assertDecEq(t, "realized", l.RealizedPnL(), dec(0))
}

// ────────────────────────────────────────────────────────────
// Risk manager
// ────────────────────────────────────────────────────────────

func TestRiskManager_AllowsWithinLimits(t *testing.T) {
	l := NewLedger(dec(10000))
	rm := NewRiskManager(DefaultRiskLimits())

	ok, reason := rm.CanTrade(l, "AAPL", SideBuy, 10, dec(150))
	if !ok {
		t.Fatalf("blocked: %s", reason)
	}
}

func TestRiskManager_BlocksOversizedPosition(t *testing.T) {
	l := NewLedger(dec(1_000_000))
	limits := DefaultRiskLimits()
	limits.MaxPositionQty = 50
	rm := NewRiskManager(limits)

	l.ExecuteTrade("AAPL", SideBuy, 40, dec(10))
	ok, reason := rm.CanTrade(l, "AAPL", SideBuy, 20, dec(10))
	if ok {
		t.Fatal("oversized position allowed")
	}
	if reason != "position size exceeds limit" {
		t.Errorf("reason: %q", reason)
	}
}

func TestRiskManager_BlocksAfterDailyLoss(t *testing.T) {
	l := NewLedger(dec(10000))
	limits := DefaultRiskLimits()
	limits.MaxDailyLoss = dec(100)
	rm := NewRiskManager(limits)

	rm.RecordPnL(dec(-150))
	ok, reason := rm.CanTrade(l, "AAPL", SideBuy, 1, dec(10))
	if ok {
		t.Fatal("trade allowed past daily loss limit")
	}
	if reason != "max daily loss reached" {
		t.Errorf("reason: %q", reason)
	}

	rm.ResetDaily()
	if ok, _ := rm.CanTrade(l, "AAPL", SideBuy, 1, dec(10)); !ok {
		t.Fatal("trade still blocked after ResetDaily")
	}
}

func TestRiskManager_SellAlwaysAllowed(t *testing.T) {
	l := NewLedger(dec(10000))
	limits := DefaultRiskLimits()
	limits.MaxDailyLoss = dec(0)
	rm := NewRiskManager(limits)
	rm.RecordPnL(dec(-1))

	if ok, _ := rm.CanTrade(l, "AAPL", SideSell, 5, dec(10)); !ok {
		t.Fatal("SELL blocked by risk limits")
	}
}
