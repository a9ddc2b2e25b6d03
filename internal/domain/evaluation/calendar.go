package evaluation

import "time"

const day = 24 * time.Hour

// civilDate keeps only the calendar date of t, as seen in t's own location,
// re-anchored at UTC midnight so differences are whole days regardless of DST.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from from to to (negative when to is earlier).
func DaysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)) / day)
}

// lastDayOfMonth returns the number of days in t's month.
func lastDayOfMonth(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDayOfMonth maps a configured day-of-month onto t's month.
func clampDayOfMonth(t time.Time, dayOfMonth int) int {
	if last := lastDayOfMonth(t); dayOfMonth > last {
		return last
	}
	return dayOfMonth
}
