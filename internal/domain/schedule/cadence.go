// internal/domain/schedule/cadence.go
package schedule

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Label classifies an inferred billing cadence.
type Label string

const (
	CadenceDaily    Label = "daily"
	CadenceWeekly   Label = "weekly"
	CadenceBiweekly Label = "biweekly"
	CadenceMonthly  Label = "monthly"
	CadenceYearly   Label = "yearly"
	// CadenceIrregular means the median gap fits no bucket; the gap itself
	// is still usable as a day-count interval.
	CadenceIrregular Label = "irregular"
	CadenceUnknown   Label = "unknown"
)

// Cadence is the result of inferring periodicity from historical charges.
type Cadence struct {
	Label Label
	// MedianGapDays is the representative gap between charges, zero when
	// the label is unknown. It can be fractional for an even gap count.
	MedianGapDays float64
}

// cadenceBuckets are the target day gaps classification snaps to; the
// nearest bucket wins if it is within bucketToleranceDays.
var cadenceBuckets = []struct {
	days  float64
	label Label
}{
	{1, CadenceDaily},
	{7, CadenceWeekly},
	{14, CadenceBiweekly},
	{30, CadenceMonthly},
	{365, CadenceYearly},
}

const bucketToleranceDays = 5.0

var corporateSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "llc": {}, "ltd": {}, "limited": {},
	"co": {}, "corp": {}, "corporation": {}, "company": {}, "plc": {}, "gmbh": {},
}

// NormalizePayee lowers the name, strips punctuation and drops common
// corporate suffixes so "Netflix, Inc." and "NETFLIX" compare equal.
func NormalizePayee(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := corporateSuffixes[f]; drop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Infer derives a cadence from the charge dates of one payee identity.
// Fewer than three distinct dates, or fewer than two positive day-gaps, is
// not enough signal and yields CadenceUnknown.
func Infer(dates []time.Time) Cadence {
	distinct := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		distinct[DateKey(d)] = struct{}{}
	}
	if len(distinct) < 3 {
		return Cadence{Label: CadenceUnknown}
	}
	sorted := make([]time.Time, 0, len(distinct))
	for d := range distinct {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1]).Hours() / 24
		if gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) < 2 {
		return Cadence{Label: CadenceUnknown}
	}
	median := medianOf(gaps)

	best := cadenceBuckets[0]
	for _, b := range cadenceBuckets[1:] {
		if math.Abs(median-b.days) < math.Abs(median-best.days) {
			best = b
		}
	}
	if math.Abs(median-best.days) > bucketToleranceDays {
		return Cadence{Label: CadenceIrregular, MedianGapDays: median}
	}
	return Cadence{Label: best.label, MedianGapDays: median}
}

// medianOf returns the median, averaging the two middle values for an even
// count.
func medianOf(values []float64) float64 {
	vals := append([]float64(nil), values...)
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 0 {
		return (vals[mid-1] + vals[mid]) / 2
	}
	return vals[mid]
}

// Frequency maps the cadence to a due-date frequency. Irregular cadences
// become a day-count interval from the rounded median gap; unknown has no
// frequency.
func (c Cadence) Frequency() (Frequency, bool) {
	switch c.Label {
	case CadenceDaily:
		return Frequency{Kind: KindDaily}, true
	case CadenceWeekly:
		return Frequency{Kind: KindWeekly}, true
	case CadenceBiweekly:
		return Frequency{Kind: KindBiweekly}, true
	case CadenceMonthly:
		return Frequency{Kind: KindMonthly}, true
	case CadenceYearly:
		return Frequency{Kind: KindYearly}, true
	case CadenceIrregular:
		days := int(math.Round(c.MedianGapDays))
		if days < 1 {
			days = 1
		}
		return Every(days, UnitDays), true
	}
	return Frequency{}, false
}

// ProjectNext rolls the cadence forward from the last observed charge to
// the first occurrence after today. ok is false when the cadence carries no
// usable frequency.
func ProjectNext(lastDate time.Time, c Cadence, today time.Time) (time.Time, bool) {
	freq, ok := c.Frequency()
	if !ok {
		return time.Time{}, false
	}
	next, err := RollForward(lastDate, freq, today)
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}
