// internal/domain/schedule/calendar.go
package schedule

import "time"

// referenceLocation pins all calendar arithmetic to one timezone so that
// repeated interval additions never drift across DST transitions.
var referenceLocation = time.UTC

// Unit is a calendar interval unit.
type Unit string

const (
	UnitDays   Unit = "days"
	UnitWeeks  Unit = "weeks"
	UnitMonths Unit = "months"
	UnitYears  Unit = "years"
)

// AddInterval advances base by count units. Days, weeks and years are
// fixed-offset additions; months advance by calendar month and clamp the
// day-of-month to the last valid day of the target month, so Jan 31 plus
// one month is Feb 28 (or 29 in a leap year).
func AddInterval(base time.Time, count int, unit Unit) time.Time {
	t := base.In(referenceLocation)
	switch unit {
	case UnitDays:
		return t.AddDate(0, 0, count)
	case UnitWeeks:
		return t.AddDate(0, 0, 7*count)
	case UnitYears:
		return t.AddDate(count, 0, 0)
	case UnitMonths:
		year, month, day := t.Date()
		total := int(month) - 1 + count
		targetYear := year + total/12
		targetMonth := total % 12
		if targetMonth < 0 {
			targetMonth += 12
			targetYear--
		}
		m := time.Month(targetMonth + 1)
		if last := daysInMonth(targetYear, m); day > last {
			day = last
		}
		return time.Date(targetYear, m, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), referenceLocation)
	}
	return t
}

// daysInMonth returns the number of days in the given month. Day zero of
// the following month normalizes to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, referenceLocation).Day()
}

// DateKey truncates t to its calendar date in the reference timezone. Used
// for day-precision comparisons such as start-date checks.
func DateKey(t time.Time) time.Time {
	y, m, d := t.In(referenceLocation).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, referenceLocation)
}
