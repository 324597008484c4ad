// Package sessions computes exchange trading-session membership and
// holiday flags for UTC minute timestamps.
//
// Session windows are defined in each exchange's local time and
// converted through its IANA zone, so seasonal offset changes are
// handled by the zone database rather than a fixed UTC offset.
package sessions

import (
	"fmt"
	"time"
)

// Calendar exposes trading-minute membership for one exchange.
// OpenMinutes is the bulk form: the set of open minutes over a span,
// keyed by unix minute (unix seconds / 60). IsOpen is the single-shot
// form, kept for spot checks; batch callers must use OpenMinutes.
type Calendar interface {
	Name() string
	OpenMinutes(start, end time.Time) map[int64]struct{}
	IsOpen(t time.Time) bool
}

// ExchangeCalendar is a Calendar backed by a local open/close window,
// a Mon-Fri trading week, and an optional holiday set.
type ExchangeCalendar struct {
	name     string
	loc      *time.Location
	openH    int
	openM    int
	closeH   int
	closeM   int
	holidays *HolidaySet // nil means no holiday data configured
}

// NewExchangeCalendar builds a calendar for the given IANA zone and
// local open/close window ([open, close) in local minutes-of-day).
func NewExchangeCalendar(name, zone string, openH, openM, closeH, closeM int, holidays *HolidaySet) (*ExchangeCalendar, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("sessions: load zone %s for %s: %w", zone, name, err)
	}
	return &ExchangeCalendar{
		name:     name,
		loc:      loc,
		openH:    openH,
		openM:    openM,
		closeH:   closeH,
		closeM:   closeM,
		holidays: holidays,
	}, nil
}

// Name returns the calendar's display name.
func (c *ExchangeCalendar) Name() string { return c.name }

// isTradingDay reports whether the local date of t is a weekday and
// not a holiday.
func (c *ExchangeCalendar) isTradingDay(local time.Time) bool {
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if c.holidays != nil && c.holidays.Contains(local) {
		return false
	}
	return true
}

// IsOpen reports whether t falls inside the exchange's trading window.
func (c *ExchangeCalendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	if !c.isTradingDay(local) {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	return hm >= c.openH*60+c.openM && hm < c.closeH*60+c.closeM
}

// OpenMinutes returns the set of open trading minutes over [start, end],
// keyed by unix minute. The session window is materialized once per
// trading day in local time, so DST transitions shift the UTC window
// with the zone.
func (c *ExchangeCalendar) OpenMinutes(start, end time.Time) map[int64]struct{} {
	set := make(map[int64]struct{})
	if end.Before(start) {
		return set
	}

	// Walk local dates; pad one day each side so sessions straddling
	// the UTC span boundary are not missed.
	first := start.In(c.loc).AddDate(0, 0, -1)
	last := end.In(c.loc).AddDate(0, 0, 1)

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !c.isTradingDay(d) {
			continue
		}
		openT := time.Date(d.Year(), d.Month(), d.Day(), c.openH, c.openM, 0, 0, c.loc)
		closeT := time.Date(d.Year(), d.Month(), d.Day(), c.closeH, c.closeM, 0, 0, c.loc)
		for m := openT; m.Before(closeT); m = m.Add(time.Minute) {
			if m.Before(start) || m.After(end) {
				continue
			}
			set[m.Unix()/60] = struct{}{}
		}
	}
	return set
}
