package schedule

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddIntervalMonthClampsToEndOfFebruary(t *testing.T) {
	got := AddInterval(date(2025, time.January, 31), 1, UnitMonths)
	if want := date(2025, time.February, 28); !got.Equal(want) {
		t.Errorf("Jan 31 2025 + 1 month = %v, want %v", got, want)
	}

	got = AddInterval(date(2024, time.January, 31), 1, UnitMonths)
	if want := date(2024, time.February, 29); !got.Equal(want) {
		t.Errorf("Jan 31 2024 + 1 month = %v, want %v (leap year)", got, want)
	}
}

func TestAddIntervalMonthClampsForAllMonths(t *testing.T) {
	// Starting from the 31st, every month-add must land on a valid day of
	// the target month.
	base := date(2025, time.January, 31)
	for months := 1; months <= 12; months++ {
		got := AddInterval(base, months, UnitMonths)
		if got.Day() > daysInMonth(got.Year(), got.Month()) {
			t.Errorf("+%d months: day %d exceeds length of %v", months, got.Day(), got.Month())
		}
	}
}

func TestAddIntervalTwelveMonthsIsOneYearLater(t *testing.T) {
	got := AddInterval(date(2025, time.March, 15), 12, UnitMonths)
	if want := date(2026, time.March, 15); !got.Equal(want) {
		t.Errorf("Mar 15 2025 + 12 months = %v, want %v", got, want)
	}
}

func TestAddIntervalCrossesYearBoundary(t *testing.T) {
	got := AddInterval(date(2025, time.November, 30), 3, UnitMonths)
	if want := date(2026, time.February, 28); !got.Equal(want) {
		t.Errorf("Nov 30 2025 + 3 months = %v, want %v", got, want)
	}
}

func TestAddIntervalNegativeMonths(t *testing.T) {
	got := AddInterval(date(2025, time.March, 31), -1, UnitMonths)
	if want := date(2025, time.February, 28); !got.Equal(want) {
		t.Errorf("Mar 31 2025 - 1 month = %v, want %v", got, want)
	}
}

func TestAddIntervalFixedOffsets(t *testing.T) {
	base := date(2025, time.June, 10)
	if got, want := AddInterval(base, 5, UnitDays), date(2025, time.June, 15); !got.Equal(want) {
		t.Errorf("+5 days = %v, want %v", got, want)
	}
	if got, want := AddInterval(base, 2, UnitWeeks), date(2025, time.June, 24); !got.Equal(want) {
		t.Errorf("+2 weeks = %v, want %v", got, want)
	}
	if got, want := AddInterval(base, 1, UnitYears), date(2026, time.June, 10); !got.Equal(want) {
		t.Errorf("+1 year = %v, want %v", got, want)
	}
}

func TestAddIntervalPreservesTimeOfDay(t *testing.T) {
	base := time.Date(2025, time.January, 31, 9, 30, 0, 0, time.UTC)
	got := AddInterval(base, 1, UnitMonths)
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Errorf("time of day not preserved: got %v", got)
	}
}

func TestDateKey(t *testing.T) {
	ts := time.Date(2025, time.May, 3, 23, 59, 59, 0, time.UTC)
	if got, want := DateKey(ts), date(2025, time.May, 3); !got.Equal(want) {
		t.Errorf("DateKey(%v) = %v, want %v", ts, got, want)
	}
}
