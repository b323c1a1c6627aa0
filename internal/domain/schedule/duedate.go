// internal/domain/schedule/duedate.go
package schedule

import (
	"database/sql"
	"errors"
	"time"
)

// DefaultLeniency tolerates scheduler jitter: a cycle may fire this long
// before its exact due instant instead of being postponed to the next tick.
const DefaultLeniency = 2 * time.Hour

// ErrNonAdvancingInterval guards RollForward against descriptors that do
// not move the date forward.
var ErrNonAdvancingInterval = errors.New("frequency interval does not advance the date")

// NextDue applies one frequency interval to base.
func NextDue(base time.Time, freq Frequency) (time.Time, error) {
	count, unit, err := freq.Interval()
	if err != nil {
		return time.Time{}, err
	}
	return AddInterval(base, count, unit), nil
}

// RollForward repeatedly applies the interval starting from lastKnown until
// the result is strictly after today, and returns that first qualifying
// date. This is the missed-cycle recovery primitive: after several skipped
// periods the next due date is the next future occurrence, not a backlog of
// every missed one.
func RollForward(lastKnown time.Time, freq Frequency, today time.Time) (time.Time, error) {
	count, unit, err := freq.Interval()
	if err != nil {
		return time.Time{}, err
	}
	d := lastKnown
	for !d.After(today) {
		next := AddInterval(d, count, unit)
		if !next.After(d) {
			return time.Time{}, ErrNonAdvancingInterval
		}
		d = next
	}
	return d, nil
}

// IsDue reports whether a cycle should fire: nextDue is set and now is at
// or past the start of its leniency window.
func IsDue(nextDue sql.NullTime, now time.Time, leniency time.Duration) bool {
	if !nextDue.Valid {
		return false
	}
	return !now.Before(nextDue.Time.Add(-leniency))
}
