package forecast

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date at day granularity
// =============================================================================

// DateLayout is the wire format for dates everywhere in the system.
const DateLayout = "2006-01-02"

// Date is a calendar date. The time component is always midnight UTC so two
// dates compare equal iff they name the same day.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day (in t's own location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is for tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonths shifts by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28/29), unlike time.AddDate which
// normalizes into the following month.
func (d Date) AddMonths(n int) Date {
	return MonthOf(d).Add(n).DayClamped(d.Day())
}

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }
func (d Date) String() string    { return d.Time.Format(DateLayout) }

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the signed number of days from -> to.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// =============================================================================
// MONTH - The projection step
// =============================================================================

// Month identifies one calendar month. It is the unit the engine steps by.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return MonthOf(NewDate(year, month, 1))
}

func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

// Start is the first day of the month.
func (m Month) Start() Date { return NewDate(m.Year, m.Month, 1) }

// End is the last day of the month.
func (m Month) End() Date { return m.Start().AddDays(m.Days() - 1) }

// Days returns how many days the month has.
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Add returns the month n months later (n may be negative).
func (m Month) Add(n int) Month {
	idx := m.index() + n
	return Month{Year: floorDiv(idx, 12), Month: time.Month(floorMod(idx, 12) + 1)}
}

func (m Month) Next() Month { return m.Add(1) }

// DayClamped returns the given day of this month, or the last day when the
// month is shorter (31 -> 28/29 in February).
func (m Month) DayClamped(day int) Date {
	if last := m.Days(); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(m.Year, m.Month, day)
}

func (m Month) Contains(d Date) bool { return m.Year == d.Year() && m.Month == d.Month() }
func (m Month) Before(o Month) bool  { return m.index() < o.index() }
func (m Month) After(o Month) bool   { return m.index() > o.index() }
func (m Month) Equal(o Month) bool   { return m.index() == o.index() }
func (m Month) String() string       { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }

// MonthsBetween returns the signed number of months from -> to.
func MonthsBetween(from, to Month) int { return to.index() - from.index() }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int { return a - floorDiv(a, b)*b }
