package forecast

// =============================================================================
// DATE RANGE - Inclusive span of calendar days
// =============================================================================

// DateRange is an inclusive [Start, End] span of days.
//
// Examples:
//   - a plan horizon: 2024-01-01 .. 2024-12-31
//   - a flexible window: 2024-01-15 .. 2024-03-15
//   - a history lookback: today-12 months .. today
type DateRange struct {
	Start Date
	End   Date
}

// Valid reports whether End is not before Start.
func (r DateRange) Valid() bool { return r.End.AfterOrEqual(r.Start) }

// Contains returns true if d is within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Overlaps reports whether the range intersects month m at all.
func (r DateRange) Overlaps(m Month) bool {
	return r.Start.BeforeOrEqual(m.End()) && r.End.AfterOrEqual(m.Start())
}

// Months lists every calendar month the range touches, including partial
// months at either edge, in chronological order.
func (r DateRange) Months() []Month {
	if !r.Valid() {
		return nil
	}
	first, last := MonthOf(r.Start), MonthOf(r.End)
	months := make([]Month, 0, MonthsBetween(first, last)+1)
	for m := first; !m.After(last); m = m.Next() {
		months = append(months, m)
	}
	return months
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// Lookback returns the trailing range of n months ending on asOf
// (2024-06-15, 12 -> 2023-06-16 .. 2024-06-15).
func Lookback(asOf Date, months int) DateRange {
	return DateRange{Start: asOf.AddMonths(-months).AddDays(1), End: asOf}
}
