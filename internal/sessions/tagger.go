package sessions

import (
	"fmt"
	"time"

	"fxdata-system/internal/model"
)

// flagCalendar pairs a calendar with the flag field it drives.
type flagCalendar struct {
	cal Calendar
	set func(*model.SessionFlags, bool)
}

// Tagger computes per-minute session flags, holiday flags, and local
// hour-of-day columns for a fixed set of calendars.
//
// Tagging is batch-oriented: each calendar's open-minute set over the
// full input span is materialized once, then every input minute is a
// set-membership test. Looping calendars per timestamp instead is two
// to three orders of magnitude slower at realistic batch sizes.
//
// Output depends only on the inputs and the calendar tables, never on
// the wall clock.
type Tagger struct {
	calendars []flagCalendar
	ny        *time.Location
	london    *time.Location
}

// NewTagger builds the default tagger: eleven exchange calendars and
// the US/UK holiday calendars.
func NewTagger() (*Tagger, error) {
	specs := []struct {
		name, zone                   string
		openH, openM, closeH, closeM int
		holidays                     *HolidaySet
		set                          func(*model.SessionFlags, bool)
	}{
		{"NYSE", "America/New_York", 9, 30, 16, 0, USHolidays, func(f *model.SessionFlags, v bool) { f.NYSE = v }},
		{"NASDAQ", "America/New_York", 9, 30, 16, 0, USHolidays, func(f *model.SessionFlags, v bool) { f.NASDAQ = v }},
		{"TSX", "America/Toronto", 9, 30, 16, 0, nil, func(f *model.SessionFlags, v bool) { f.TSX = v }},
		{"LSE", "Europe/London", 8, 0, 16, 30, UKHolidays, func(f *model.SessionFlags, v bool) { f.LSE = v }},
		{"Xetra", "Europe/Berlin", 9, 0, 17, 30, nil, func(f *model.SessionFlags, v bool) { f.Xetra = v }},
		{"Paris", "Europe/Paris", 9, 0, 17, 30, nil, func(f *model.SessionFlags, v bool) { f.Paris = v }},
		{"SIX", "Europe/Zurich", 9, 0, 17, 30, nil, func(f *model.SessionFlags, v bool) { f.SIX = v }},
		{"Tokyo", "Asia/Tokyo", 9, 0, 15, 0, nil, func(f *model.SessionFlags, v bool) { f.Tokyo = v }},
		{"HongKong", "Asia/Hong_Kong", 9, 30, 16, 0, nil, func(f *model.SessionFlags, v bool) { f.HongKong = v }},
		{"Singapore", "Asia/Singapore", 9, 0, 17, 0, nil, func(f *model.SessionFlags, v bool) { f.Singapore = v }},
		{"ASX", "Australia/Sydney", 10, 0, 16, 0, nil, func(f *model.SessionFlags, v bool) { f.ASX = v }},
	}

	t := &Tagger{}
	for _, s := range specs {
		cal, err := NewExchangeCalendar(s.name, s.zone, s.openH, s.openM, s.closeH, s.closeM, s.holidays)
		if err != nil {
			return nil, err
		}
		t.calendars = append(t.calendars, flagCalendar{cal: cal, set: s.set})
	}

	var err error
	if t.ny, err = time.LoadLocation("America/New_York"); err != nil {
		return nil, fmt.Errorf("sessions: load New York zone: %w", err)
	}
	if t.london, err = time.LoadLocation("Europe/London"); err != nil {
		return nil, fmt.Errorf("sessions: load London zone: %w", err)
	}
	return t, nil
}

// Calendars returns the tracked exchange calendars in flag order.
func (t *Tagger) Calendars() []Calendar {
	out := make([]Calendar, len(t.calendars))
	for i, fc := range t.calendars {
		out[i] = fc.cal
	}
	return out
}

// Tag computes flags for a batch of UTC minute timestamps. The result
// is index-aligned with the input.
func (t *Tagger) Tag(minutes []time.Time) []model.SessionFlags {
	if len(minutes) == 0 {
		return nil
	}

	lo, hi := minutes[0], minutes[0]
	for _, m := range minutes[1:] {
		if m.Before(lo) {
			lo = m
		}
		if m.After(hi) {
			hi = m
		}
	}

	// One open-minute set per calendar over the whole span.
	sets := make([]map[int64]struct{}, len(t.calendars))
	for i, fc := range t.calendars {
		sets[i] = fc.cal.OpenMinutes(lo, hi)
	}

	flags := make([]model.SessionFlags, len(minutes))
	for i, m := range minutes {
		key := m.Unix() / 60
		f := &flags[i]
		for j, fc := range t.calendars {
			_, open := sets[j][key]
			fc.set(f, open)
		}

		ny := m.In(t.ny)
		ldn := m.In(t.london)
		f.NYHour = ny.Hour()
		f.LondonHour = ldn.Hour()
		f.USHoliday = USHolidays.Contains(ny)
		f.UKHoliday = UKHolidays.Contains(ldn)
	}
	return flags
}
