package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"fxdata-system/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestInsertTicks_Idempotent(t *testing.T) {
	s := openTestStore(t)

	batch := []model.Tick{
		{TS: ts("2024-03-04T09:00:00Z"), Bid: 1.1000, Ask: 1.1000},
		{TS: ts("2024-03-04T09:00:20Z"), Bid: 1.1005, Ask: 1.1005},
		{TS: ts("2024-03-04T09:00:45Z"), Bid: 1.0998, Ask: 1.0998},
	}

	for i := 0; i < 3; i++ {
		if _, err := s.InsertTicks("EURUSD", model.VariantTrade, batch); err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}
	if err := s.Materialize(); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	n, err := s.ApproxRowCount("EURUSD", model.VariantTrade)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows after repeated inserts, got %d", n)
	}
}

func TestInsertTicks_PartialRejection(t *testing.T) {
	s := openTestStore(t)

	batch := []model.Tick{
		{TS: ts("2024-03-04T09:00:00Z"), Bid: 1.0999, Ask: 1.1001},
		{TS: ts("2024-03-04T09:00:10Z"), Bid: 1.1003, Ask: 1.0997}, // ask below bid
		{TS: ts("2024-03-04T09:00:20Z"), Bid: -1, Ask: 1.1001},     // non-positive
		{TS: ts("2024-03-04T09:00:30Z"), Bid: 1.0997, Ask: 1.1003},
	}

	report, err := s.InsertTicks("EURUSD", model.VariantQuote, batch)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if report.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", report.Inserted)
	}
	if len(report.Rejected) != 2 {
		t.Fatalf("expected 2 rejected, got %d", len(report.Rejected))
	}
	if report.Rejected[0].Index != 1 || report.Rejected[1].Index != 2 {
		t.Errorf("rejected wrong rows: %+v", report.Rejected)
	}

	// The remainder of the batch still committed.
	n, _ := s.ApproxRowCount("EURUSD", model.VariantQuote)
	if n != 2 {
		t.Errorf("expected 2 rows committed, got %d", n)
	}
}

func TestInsertTicks_ZeroSpreadAllowedOnTradeStream(t *testing.T) {
	s := openTestStore(t)

	report, err := s.InsertTicks("EURUSD", model.VariantTrade, []model.Tick{
		{TS: ts("2024-03-04T09:00:00Z"), Bid: 1.1, Ask: 1.1},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(report.Rejected) != 0 {
		t.Errorf("zero spread on trade stream must not be rejected: %+v", report.Rejected)
	}
}

func TestTicksInRange_HalfOpenOrdered(t *testing.T) {
	s := openTestStore(t)

	batch := []model.Tick{
		{TS: ts("2024-03-04T09:02:00Z"), Bid: 1.3, Ask: 1.3},
		{TS: ts("2024-03-04T09:00:00Z"), Bid: 1.1, Ask: 1.1},
		{TS: ts("2024-03-04T09:01:00Z"), Bid: 1.2, Ask: 1.2},
	}
	if _, err := s.InsertTicks("EURUSD", model.VariantTrade, batch); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.TicksInRange("EURUSD", model.VariantTrade,
		ts("2024-03-04T09:00:00Z"), ts("2024-03-04T09:02:00Z"), "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ticks (end exclusive), got %d", len(got))
	}
	if !got[0].TS.Before(got[1].TS) {
		t.Errorf("ticks not ordered: %v then %v", got[0].TS, got[1].TS)
	}
}

func TestTicksInRange_Predicate(t *testing.T) {
	s := openTestStore(t)

	batch := []model.Tick{
		{TS: ts("2024-03-04T09:00:00Z"), Bid: 1.0999, Ask: 1.1001}, // spread 0.0002
		{TS: ts("2024-03-04T09:00:30Z"), Bid: 1.0997, Ask: 1.1003}, // spread 0.0006
	}
	if _, err := s.InsertTicks("EURUSD", model.VariantQuote, batch); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.TicksInRange("EURUSD", model.VariantQuote,
		ts("2024-03-04T09:00:00Z"), ts("2024-03-04T09:01:00Z"),
		"ask - bid > ?", 0.0004)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 wide-spread tick, got %d", len(got))
	}
}

func TestDistinctTickMonths(t *testing.T) {
	s := openTestStore(t)

	batch := []model.Tick{
		{TS: ts("2024-03-15T12:00:00Z"), Bid: 1.1, Ask: 1.1},
		{TS: ts("2024-03-20T12:00:00Z"), Bid: 1.1, Ask: 1.1},
		{TS: ts("2024-06-01T00:00:00Z"), Bid: 1.1, Ask: 1.1},
	}
	if _, err := s.InsertTicks("EURUSD", model.VariantTrade, batch); err != nil {
		t.Fatalf("insert: %v", err)
	}

	months, err := s.DistinctTickMonths("EURUSD", model.VariantTrade)
	if err != nil {
		t.Fatalf("distinct months: %v", err)
	}
	want := []string{"2024-03", "2024-06"}
	if len(months) != len(want) {
		t.Fatalf("expected %v, got %v", want, months)
	}
	for i := range want {
		if months[i] != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], months[i])
		}
	}
}

func TestEarliestLatest_Empty(t *testing.T) {
	s := openTestStore(t)

	_, _, ok, err := s.EarliestLatest("EURUSD", model.VariantTrade)
	if err != nil {
		t.Fatalf("earliest/latest: %v", err)
	}
	if ok {
		t.Error("expected ok=false for empty instrument")
	}
}
