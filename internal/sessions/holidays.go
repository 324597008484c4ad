package sessions

import "time"

type monthDay struct {
	month time.Month
	day   int
}

// US market holidays (full-day closures), 2023-2026.
// Source: NYSE official holiday schedule, observed dates.
var usHolidays = map[int][]monthDay{
	2023: {
		{time.January, 2},   // New Year's Day (observed)
		{time.January, 16},  // Martin Luther King Jr. Day
		{time.February, 20}, // Washington's Birthday
		{time.April, 7},     // Good Friday
		{time.May, 29},      // Memorial Day
		{time.June, 19},     // Juneteenth
		{time.July, 4},      // Independence Day
		{time.September, 4}, // Labor Day
		{time.November, 23}, // Thanksgiving
		{time.December, 25}, // Christmas
	},
	2024: {
		{time.January, 1},
		{time.January, 15},
		{time.February, 19},
		{time.March, 29},
		{time.May, 27},
		{time.June, 19},
		{time.July, 4},
		{time.September, 2},
		{time.November, 28},
		{time.December, 25},
	},
	2025: {
		{time.January, 1},
		{time.January, 20},
		{time.February, 17},
		{time.April, 18},
		{time.May, 26},
		{time.June, 19},
		{time.July, 4},
		{time.September, 1},
		{time.November, 27},
		{time.December, 25},
	},
	2026: {
		{time.January, 1},
		{time.January, 19},
		{time.February, 16},
		{time.April, 3},
		{time.May, 25},
		{time.June, 19},
		{time.July, 3}, // Independence Day (observed)
		{time.September, 7},
		{time.November, 26},
		{time.December, 25},
	},
}

// UK bank holidays (LSE closures), 2023-2026.
// Source: GOV.UK bank holiday list, England and Wales.
var ukHolidays = map[int][]monthDay{
	2023: {
		{time.January, 2}, // New Year's Day (observed)
		{time.April, 7},   // Good Friday
		{time.April, 10},  // Easter Monday
		{time.May, 1},     // Early May bank holiday
		{time.May, 8},     // Coronation bank holiday
		{time.May, 29},    // Spring bank holiday
		{time.August, 28}, // Summer bank holiday
		{time.December, 25},
		{time.December, 26},
	},
	2024: {
		{time.January, 1},
		{time.March, 29},
		{time.April, 1},
		{time.May, 6},
		{time.May, 27},
		{time.August, 26},
		{time.December, 25},
		{time.December, 26},
	},
	2025: {
		{time.January, 1},
		{time.April, 18},
		{time.April, 21},
		{time.May, 5},
		{time.May, 26},
		{time.August, 25},
		{time.December, 25},
		{time.December, 26},
	},
	2026: {
		{time.January, 1},
		{time.April, 3},
		{time.April, 6},
		{time.May, 4},
		{time.May, 25},
		{time.August, 31},
		{time.December, 25},
		{time.December, 28}, // Boxing Day (observed)
	},
}

// HolidaySet is a precomputed date set for fast lookup against
// already-localized times.
type HolidaySet struct {
	name string
	days map[string]bool
}

func newHolidaySet(name string, table map[int][]monthDay) *HolidaySet {
	days := make(map[string]bool)
	for year, list := range table {
		for _, h := range list {
			days[dateKey(year, h.month, h.day)] = true
		}
	}
	return &HolidaySet{name: name, days: days}
}

// Name returns the holiday calendar's display name.
func (h *HolidaySet) Name() string { return h.name }

// Contains reports whether the date of local (interpreted in the
// caller's already-applied local zone) is a holiday.
func (h *HolidaySet) Contains(local time.Time) bool {
	return h.days[dateKey(local.Year(), local.Month(), local.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// USHolidays is the US full-day market closure set.
var USHolidays = newHolidaySet("US", usHolidays)

// UKHolidays is the UK bank holiday set.
var UKHolidays = newHolidaySet("UK", ukHolidays)
