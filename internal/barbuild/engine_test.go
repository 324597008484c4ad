package barbuild

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"fxdata-system/internal/model"
	"fxdata-system/internal/sessions"
	"fxdata-system/internal/store/sqlite"
)

func newTestEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tagger, err := sessions.NewTagger()
	if err != nil {
		t.Fatalf("tagger: %v", err)
	}
	return New(store, tagger), store
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func mustInsert(t *testing.T, store *sqlite.Store, instrument string, variant model.Variant, rows []model.Tick) {
	t.Helper()
	report, err := store.InsertTicks(instrument, variant, rows)
	if err != nil {
		t.Fatalf("insert %s: %v", variant, err)
	}
	if len(report.Rejected) != 0 {
		t.Fatalf("unexpected rejects: %+v", report.Rejected)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestRegenerate_SingleMinuteScenario(t *testing.T) {
	e, store := newTestEngine(t)

	mustInsert(t, store, "EURUSD", model.VariantTrade, []model.Tick{
		{TS: ts("2024-03-04T09:00:00Z"), Bid: 1.1000, Ask: 1.1000},
		{TS: ts("2024-03-04T09:00:20Z"), Bid: 1.1005, Ask: 1.1005},
		{TS: ts("2024-03-04T09:00:45Z"), Bid: 1.0998, Ask: 1.0998},
	})
	mustInsert(t, store, "EURUSD", model.VariantQuote, []model.Tick{
		{TS: ts("2024-03-04T09:00:10Z"), Bid: 1.0999, Ask: 1.1001},
		{TS: ts("2024-03-04T09:00:30Z"), Bid: 1.0997, Ask: 1.1003},
	})

	n, err := e.Regenerate(context.Background(), "EURUSD", nil)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 bar, got %d", n)
	}

	bars, err := store.BarsInRange("EURUSD", ts("2024-03-04T09:00:00Z"), ts("2024-03-04T09:01:00Z"))
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar in range, got %d", len(bars))
	}

	b := bars[0]
	if !b.HasTrades {
		t.Fatal("expected trade-backed bar")
	}
	if !approx(b.Open, 1.1000) {
		t.Errorf("open: expected 1.1000, got %v", b.Open)
	}
	if !approx(b.Close, 1.0998) {
		t.Errorf("close: expected 1.0998, got %v", b.Close)
	}
	if !approx(b.High, 1.1005) {
		t.Errorf("high: expected 1.1005, got %v", b.High)
	}
	if !approx(b.Low, 1.0998) {
		t.Errorf("low: expected 1.0998, got %v", b.Low)
	}
	if b.TradeTicks != 3 {
		t.Errorf("trade ticks: expected 3, got %d", b.TradeTicks)
	}
	if b.QuoteTicks != 2 {
		t.Errorf("quote ticks: expected 2, got %d", b.QuoteTicks)
	}
	if !approx(b.QuoteSpreadAvg, 0.0004) {
		t.Errorf("quote spread avg: expected 0.0004, got %v", b.QuoteSpreadAvg)
	}
}

func TestRegenerate_QuoteOnlyMinuteEmitsBar(t *testing.T) {
	e, store := newTestEngine(t)

	mustInsert(t, store, "EURUSD", model.VariantQuote, []model.Tick{
		{TS: ts("2024-03-04T10:00:05Z"), Bid: 1.0999, Ask: 1.1001},
	})

	n, err := e.Regenerate(context.Background(), "EURUSD", nil)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 bar, got %d", n)
	}

	bars, _ := store.BarsInRange("EURUSD", ts("2024-03-04T10:00:00Z"), ts("2024-03-04T10:01:00Z"))
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	b := bars[0]
	if b.HasTrades {
		t.Error("expected no trade OHLC for quote-only minute")
	}
	if b.TradeTicks != 0 || !approx(b.TradeSpreadAvg, 0) {
		t.Errorf("expected neutral trade fields, got ticks=%d spread=%v", b.TradeTicks, b.TradeSpreadAvg)
	}
	if b.QuoteTicks != 1 {
		t.Errorf("expected 1 quote tick, got %d", b.QuoteTicks)
	}
}

func TestRegenerate_InvalidRange(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Regenerate(context.Background(), "EURUSD", &Range{
		Start: ts("2024-03-04T10:00:00Z"),
		End:   ts("2024-03-04T10:00:00Z"),
	})
	if err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func seedTwoHours(t *testing.T, store *sqlite.Store) {
	t.Helper()
	var trades []model.Tick
	base := ts("2024-03-04T09:00:00Z")
	for i := 0; i < 120; i++ {
		trades = append(trades, model.Tick{
			TS:  base.Add(time.Duration(i) * time.Minute).Add(10 * time.Second),
			Bid: 1.1 + float64(i)*0.0001,
			Ask: 1.1 + float64(i)*0.0001,
		})
	}
	mustInsert(t, store, "EURUSD", model.VariantTrade, trades)
}

func TestRegenerate_IncrementalMatchesFull(t *testing.T) {
	e, store := newTestEngine(t)
	seedTwoHours(t, store)

	// Incremental pass over the second hour only.
	rng := &Range{Start: ts("2024-03-04T10:00:00Z"), End: ts("2024-03-04T11:00:00Z")}
	if _, err := e.Regenerate(context.Background(), "EURUSD", rng); err != nil {
		t.Fatalf("incremental: %v", err)
	}
	incremental, err := store.BarsInRange("EURUSD", rng.Start, rng.End)
	if err != nil {
		t.Fatalf("read incremental bars: %v", err)
	}

	// Full rebuild must agree inside the range.
	if _, err := e.Regenerate(context.Background(), "EURUSD", nil); err != nil {
		t.Fatalf("full: %v", err)
	}
	full, err := store.BarsInRange("EURUSD", rng.Start, rng.End)
	if err != nil {
		t.Fatalf("read full bars: %v", err)
	}

	if len(incremental) != 60 || len(full) != 60 {
		t.Fatalf("expected 60 bars each, got incremental=%d full=%d", len(incremental), len(full))
	}
	for i := range full {
		if full[i] != incremental[i] {
			t.Errorf("bar %d differs: full=%+v incremental=%+v", i, full[i], incremental[i])
		}
	}
}

func TestRegenerate_RangeScopeContainment(t *testing.T) {
	e, store := newTestEngine(t)
	seedTwoHours(t, store)

	if _, err := e.Regenerate(context.Background(), "EURUSD", nil); err != nil {
		t.Fatalf("full: %v", err)
	}
	outsideBefore, err := store.BarsInRange("EURUSD", ts("2024-03-04T09:00:00Z"), ts("2024-03-04T10:00:00Z"))
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}

	// Regenerate only the second hour.
	rng := &Range{Start: ts("2024-03-04T10:00:00Z"), End: ts("2024-03-04T11:00:00Z")}
	if _, err := e.Regenerate(context.Background(), "EURUSD", rng); err != nil {
		t.Fatalf("incremental: %v", err)
	}

	outsideAfter, err := store.BarsInRange("EURUSD", ts("2024-03-04T09:00:00Z"), ts("2024-03-04T10:00:00Z"))
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}
	if len(outsideBefore) != len(outsideAfter) {
		t.Fatalf("bar count outside range changed: %d -> %d", len(outsideBefore), len(outsideAfter))
	}
	for i := range outsideBefore {
		if outsideBefore[i] != outsideAfter[i] {
			t.Errorf("bar %d outside range changed: %+v -> %+v", i, outsideBefore[i], outsideAfter[i])
		}
	}
}

func TestRegenerate_IncrementalRemovesStaleBars(t *testing.T) {
	e, store := newTestEngine(t)

	// A stale bar inside the range with no backing ticks must be
	// removed by a ranged regeneration.
	stale := model.MinuteBar{
		Instrument: "EURUSD",
		Minute:     ts("2024-03-04T10:30:00Z"),
		HasTrades:  true,
		Open:       9, High: 9, Low: 9, Close: 9,
		TradeTicks: 1,
	}
	if err := store.UpsertBars([]model.MinuteBar{stale}); err != nil {
		t.Fatalf("seed stale bar: %v", err)
	}

	rng := &Range{Start: ts("2024-03-04T10:00:00Z"), End: ts("2024-03-04T11:00:00Z")}
	if _, err := e.Regenerate(context.Background(), "EURUSD", rng); err != nil {
		t.Fatalf("incremental: %v", err)
	}

	left, err := store.BarsInRange("EURUSD", rng.Start, rng.End)
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("expected stale bar removed, found %d bars", len(left))
	}
}
