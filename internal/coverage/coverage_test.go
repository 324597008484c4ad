package coverage

import (
	"errors"
	"testing"
	"time"

	"fxdata-system/internal/model"
)

// fakeSource returns a fixed set of covered months.
type fakeSource struct {
	months []string
	err    error
}

func (f *fakeSource) DistinctTickMonths(instrument string, variant model.Variant) ([]string, error) {
	return f.months, f.err
}

func fixedNow(s string) func() time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.UTC() }
}

func monthsToStrings(ms []Month) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

func TestMissingMonths_InteriorGaps(t *testing.T) {
	// Covered: {1,3,5}; queried range runs through month 5.
	d := NewDetector(&fakeSource{months: []string{"2024-01", "2024-03", "2024-05"}})
	d.Now = fixedNow("2024-05-15")

	got, err := d.MissingMonths("EURUSD", Month{2024, time.January})
	if err != nil {
		t.Fatalf("missing months: %v", err)
	}
	want := []string{"2024-02", "2024-04"}
	gotStr := monthsToStrings(got)
	if len(gotStr) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotStr)
	}
	for i := range want {
		if gotStr[i] != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], gotStr[i])
		}
	}
}

func TestMissingMonths_LeadingAndInterior(t *testing.T) {
	// Ticks only in 2024-03 and 2024-06, queried through 2024-06.
	d := NewDetector(&fakeSource{months: []string{"2024-03", "2024-06"}})
	d.Now = fixedNow("2024-06-20")

	got, err := d.MissingMonths("X", Month{2024, time.January})
	if err != nil {
		t.Fatalf("missing months: %v", err)
	}
	want := []string{"2024-01", "2024-02", "2024-04", "2024-05"}
	gotStr := monthsToStrings(got)
	if len(gotStr) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotStr)
	}
	for i := range want {
		if gotStr[i] != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], gotStr[i])
		}
	}
}

func TestMissingMonths_NoTicks(t *testing.T) {
	d := NewDetector(&fakeSource{})
	d.Now = fixedNow("2024-03-10")

	got, err := d.MissingMonths("EURUSD", Month{2024, time.January})
	if err != nil {
		t.Fatalf("missing months: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected every month from start to now (3), got %v", monthsToStrings(got))
	}
}

func TestMissingMonths_FullyCovered(t *testing.T) {
	d := NewDetector(&fakeSource{months: []string{"2024-01", "2024-02", "2024-03"}})
	d.Now = fixedNow("2024-03-10")

	got, err := d.MissingMonths("EURUSD", Month{2024, time.January})
	if err != nil {
		t.Fatalf("missing months: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no missing months, got %v", monthsToStrings(got))
	}
}

func TestMissingMonths_FutureStart(t *testing.T) {
	src := &fakeSource{err: errors.New("must not be called")}
	d := NewDetector(src)
	d.Now = fixedNow("2024-03-10")

	_, err := d.MissingMonths("EURUSD", Month{2024, time.April})
	if !errors.Is(err, ErrFutureStart) {
		t.Fatalf("expected ErrFutureStart, got %v", err)
	}
}

func TestMonthArithmetic(t *testing.T) {
	m := Month{2024, time.December}
	next := m.Next()
	if next.Year != 2025 || next.Month != time.January {
		t.Errorf("December.Next: expected 2025-01, got %s", next)
	}
	if m.String() != "2024-12" {
		t.Errorf("expected 2024-12, got %s", m)
	}

	parsed, err := ParseMonth("2023-07")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Year != 2023 || parsed.Month != time.July {
		t.Errorf("parse: got %s", parsed)
	}
}
