// Package daycount provides the date arithmetic shared by the interest and
// amortization engine. All other packages depend on these helpers instead of
// re-implementing calendar math.
package daycount

import "time"

// DaysInYear returns 366 for Gregorian leap years, otherwise 365.
func DaysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WholeMonthsBetween counts the calendar month boundaries crossed between
// start and end, ignoring the day of month on either side: Jan 31 to Mar 1
// is two months. Returns 0 when start is after end.
func WholeMonthsBetween(start, end time.Time) int {
	if start.After(end) {
		return 0
	}
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}

// ClampDay projects a due day onto a month that may be shorter, e.g. the
// 31st onto February.
func ClampDay(year int, month time.Month, day int) int {
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// AddMonthsClamped advances d by the given number of calendar months and
// places the result on dueDay, clamped to the target month's length. Unlike
// time.AddDate it never rolls over into the following month.
func AddMonthsClamped(d time.Time, months, dueDay int) time.Time {
	year := d.Year()
	month := int(d.Month()) + months
	year += (month - 1) / 12
	month = (month-1)%12 + 1
	day := ClampDay(year, time.Month(month), dueDay)
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b. Negative when a
// is after b. Both dates are truncated to midnight UTC first.
func DaysBetween(a, b time.Time) int {
	a = Truncate(a)
	b = Truncate(b)
	return int(b.Sub(a).Hours() / 24)
}

// Truncate normalizes a timestamp to midnight UTC so day arithmetic is not
// skewed by clock components or zone offsets.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthBounds returns the first and last day of the month containing d.
func MonthBounds(d time.Time) (time.Time, time.Time) {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(d.Year(), d.Month(), DaysInMonth(d.Year(), d.Month()), 0, 0, 0, 0, time.UTC)
	return first, last
}

// PreviousMonthBounds returns the bounds of the calendar month before the
// one containing d.
func PreviousMonthBounds(d time.Time) (time.Time, time.Time) {
	return MonthBounds(time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
