// Package coverage detects which calendar months of tick data are
// missing for an instrument, including gaps that sit between two
// covered months, not only the range before the first or after the
// last covered month.
package coverage

import (
	"errors"
	"fmt"
	"time"

	"fxdata-system/internal/model"
)

// ErrFutureStart is returned when the requested start month lies after
// the current month. Rejected before any storage I/O.
var ErrFutureStart = errors.New("coverage: start month is in the future")

// Month is one calendar month (UTC).
type Month struct {
	Year  int
	Month time.Month
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start returns the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	t := m.Start().AddDate(0, 1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// After reports whether m is strictly after o.
func (m Month) After(o Month) bool {
	return m.Year > o.Year || (m.Year == o.Year && m.Month > o.Month)
}

// MonthOf returns the calendar month containing t (UTC).
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{Year: u.Year(), Month: u.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("coverage: bad month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// monthSource is the slice of the tick store the detector reads.
type monthSource interface {
	DistinctTickMonths(instrument string, variant model.Variant) ([]string, error)
}

// Detector computes missing coverage months against a tick store.
type Detector struct {
	store monthSource

	// Now is the clock used to bound the month sequence. Overridable
	// in tests; defaults to time.Now.
	Now func() time.Time
}

// NewDetector creates a Detector over the given store.
func NewDetector(store monthSource) *Detector {
	return &Detector{store: store, Now: time.Now}
}

// MissingMonths returns, in chronological order, every calendar month
// from start through the current month that holds no trade-variant
// tick. A month is covered as soon as one trade tick exists anywhere
// inside it. An instrument with zero ticks yields the full sequence;
// a fully covered instrument yields nil.
func (d *Detector) MissingMonths(instrument string, start Month) ([]Month, error) {
	current := MonthOf(d.Now())
	if start.After(current) {
		return nil, ErrFutureStart
	}

	present, err := d.store.DistinctTickMonths(instrument, model.VariantTrade)
	if err != nil {
		return nil, fmt.Errorf("coverage: read covered months: %w", err)
	}
	covered := make(map[string]bool, len(present))
	for _, m := range present {
		covered[m] = true
	}

	var missing []Month
	for m := start; !m.After(current); m = m.Next() {
		if !covered[m.String()] {
			missing = append(missing, m)
		}
	}
	return missing, nil
}
