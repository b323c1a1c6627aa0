// internal/domain/schedule/frequency.go
package schedule

import "fmt"

// Kind names a billing frequency.
type Kind string

const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindBiweekly Kind = "biweekly"
	KindMonthly  Kind = "monthly"
	KindYearly   Kind = "yearly"
	// KindCustom uses the descriptor's explicit count and unit.
	KindCustom Kind = "custom"
)

// Frequency describes how often a request recurs. Count and Unit are only
// consulted for KindCustom.
type Frequency struct {
	Kind  Kind
	Count int
	Unit  Unit
}

// Every builds a custom frequency from an explicit count and unit.
func Every(count int, unit Unit) Frequency {
	return Frequency{Kind: KindCustom, Count: count, Unit: unit}
}

// Interval resolves the frequency to a concrete calendar interval.
func (f Frequency) Interval() (int, Unit, error) {
	switch f.Kind {
	case KindDaily:
		return 1, UnitDays, nil
	case KindWeekly:
		return 1, UnitWeeks, nil
	case KindBiweekly:
		return 2, UnitWeeks, nil
	case KindMonthly:
		return 1, UnitMonths, nil
	case KindYearly:
		return 1, UnitYears, nil
	case KindCustom:
		if f.Count <= 0 {
			return 0, "", fmt.Errorf("custom frequency requires a positive count, got %d", f.Count)
		}
		switch f.Unit {
		case UnitDays, UnitWeeks, UnitMonths, UnitYears:
			return f.Count, f.Unit, nil
		}
		return 0, "", fmt.Errorf("custom frequency has unknown unit: %q", f.Unit)
	}
	return 0, "", fmt.Errorf("unknown frequency kind: %q", f.Kind)
}
