// Package recurrence contains the scheduled-transaction execution engine:
// pure calendar-date arithmetic for recurring frequencies and the batch
// executor that turns due scheduled items into transactions.
package recurrence

import (
	"time"

	"github.com/finbeat/finbeat/internal/domain"
)

// NextDate returns the occurrence following current for the given frequency.
//
// Month and year steps clamp to the last day of the target month instead of
// overflowing: Jan 31 + 1 month is Feb 28 (29 in leap years), and
// Feb 29 + 1 year is Feb 28. Day-of-month is otherwise preserved.
// Unknown frequencies fall back to a daily step so the result always
// strictly advances.
func NextDate(current time.Time, freq domain.Frequency) time.Time {
	switch freq {
	case domain.FrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case domain.FrequencyMonthly:
		return addMonthsClamped(current, 1)
	case domain.FrequencyYearly:
		return addYearsClamped(current, 1)
	default:
		return current.AddDate(0, 0, 1)
	}
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DayBounds returns the UTC half-open interval [start, end) covering t's
// calendar day.
func DayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.UTC().Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// Normalize via the first of the month so AddDate cannot overflow,
	// then clamp the day.
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	return addMonthsClamped(t, years*12)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
