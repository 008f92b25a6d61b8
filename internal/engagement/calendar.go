package engagement

import (
	"fmt"
	"time"
)

// Calendar answers day- and week-boundary questions in one reference
// time zone. Streaks, story pacing and weekly summaries all count
// calendar days in this zone, never rolling 24h windows.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location is the reference zone.
func (c Calendar) Location() *time.Location { return c.loc }

// civil drops the clock and the zone offset so day arithmetic is immune
// to DST transitions.
func (c Calendar) civil(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the number of calendar days from a to b. It is negative
// when b falls on an earlier date.
func (c Calendar) DaysBetween(a, b time.Time) int {
	return int(c.civil(b).Sub(c.civil(a)).Hours() / 24)
}

// SameDay reports whether a and b fall on the same calendar date.
func (c Calendar) SameDay(a, b time.Time) bool {
	return c.DaysBetween(a, b) == 0
}

// IsYesterday reports whether prev falls on the calendar day before now.
func (c Calendar) IsYesterday(prev, now time.Time) bool {
	return c.DaysBetween(prev, now) == 1
}

// DayKey formats t's calendar date, e.g. "2026-10-18".
func (c Calendar) DayKey(t time.Time) string {
	return t.In(c.loc).Format(time.DateOnly)
}

// ISOWeekKey formats t's ISO week, e.g. "2026-W42".
func (c Calendar) ISOWeekKey(t time.Time) string {
	y, w := t.In(c.loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// IsFirstLoginOfWeek reports whether a login at now is the first one in
// its ISO week given the previous visit.
func (c Calendar) IsFirstLoginOfWeek(lastVisited *time.Time, now time.Time) bool {
	if lastVisited == nil {
		return true
	}
	return c.ISOWeekKey(*lastVisited) != c.ISOWeekKey(now)
}

// DaysAgo is now minus n days of wall-clock time.
func DaysAgo(now time.Time, n int) time.Time {
	return now.AddDate(0, 0, -n)
}

// TimeOfDay buckets an hour (0-23) into morning, afternoon, evening or night.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// SpecialDate names the holiday at t, or the Northern Hemisphere season
// when t is not a holiday.
func (c Calendar) SpecialDate(t time.Time) string {
	_, month, day := t.In(c.loc).Date()

	switch {
	case month == time.January && day == 1:
		return "newYear"
	case month == time.February && day == 14:
		return "valentines"
	case month == time.October && day == 31:
		return "halloween"
	case month == time.December && day >= 24 && day <= 26:
		return "christmas"
	case month == time.December && day == 31:
		return "newYearsEve"
	}

	switch {
	case month == time.March && day >= 20, month == time.April, month == time.May, month == time.June && day < 20:
		return "spring"
	case month == time.June, month == time.July, month == time.August, month == time.September && day < 22:
		return "summer"
	case month == time.September, month == time.October, month == time.November, month == time.December && day < 21:
		return "autumn"
	default:
		return "winter"
	}
}
