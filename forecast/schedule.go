/*
schedule.go - Recurring schedule resolution

PURPOSE:
  Decides whether, and how many times, a recurring schedule fires within a
  calendar month.

RULES BY FREQUENCY:
  Daily / Weekly / Fortnightly:
    Occurrences fall every Interval x (1, 7 or 14) days from AnchorDate.
    A month may contain several.

  Monthly:
    One occurrence every Interval months counted from AnchorDate's month,
    on DayOfMonth (or AnchorDate's day). Days past the end of a month clamp
    to its last day: anchored on the 31st fires on Feb 28 (Feb 29 in a
    leap year), Apr 30, and so on. An occurrence that would land before
    AnchorDate (DayOfMonth earlier than the anchor day in the anchor month)
    is skipped.

  Yearly:
    One occurrence every Interval years on AnchorDate's month and day,
    clamped the same way (Feb 29 anchors fire on Feb 28 in common years).

  Occurrences after EndDate (when set) never count.
*/
package forecast

// Validate checks the schedule is usable.
func (s Schedule) Validate() error {
	fail := func(reason string) error {
		return &ScheduleError{Frequency: s.Frequency, Interval: s.Interval, Reason: reason}
	}
	if !s.Frequency.Valid() {
		return fail("unsupported frequency")
	}
	if s.Interval <= 0 {
		return fail("interval must be positive")
	}
	if s.AnchorDate.IsZero() {
		return fail("anchor date is required")
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		return fail("day of month must be between 1 and 31")
	}
	return nil
}

// OccursIn reports whether the schedule fires at least once in m.
func (s Schedule) OccursIn(m Month) (bool, error) {
	n, err := s.OccurrenceCountIn(m)
	return n > 0, err
}

// OccurrenceCountIn returns how many times the schedule fires in m.
func (s Schedule) OccurrenceCountIn(m Month) (int, error) {
	dates, err := s.OccurrencesIn(m)
	return len(dates), err
}

// OccurrencesIn lists the dates the schedule fires on within m, in order.
func (s Schedule) OccurrencesIn(m Month) ([]Date, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var dates []Date
	switch s.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyFortnightly:
		dates = s.stepped(m)
	case FrequencyMonthly:
		dates = s.monthly(m)
	case FrequencyYearly:
		dates = s.yearly(m)
	}

	if s.EndDate != nil {
		kept := dates[:0]
		for _, d := range dates {
			if d.BeforeOrEqual(*s.EndDate) {
				kept = append(kept, d)
			}
		}
		dates = kept
	}
	return dates, nil
}

func (s Schedule) stepDays() int {
	switch s.Frequency {
	case FrequencyWeekly:
		return 7 * s.Interval
	case FrequencyFortnightly:
		return 14 * s.Interval
	default:
		return s.Interval
	}
}

func (s Schedule) stepped(m Month) []Date {
	from, to := m.Start(), m.End()
	if s.AnchorDate.After(to) {
		return nil
	}
	if s.AnchorDate.After(from) {
		from = s.AnchorDate
	}

	step := s.stepDays()
	// First k with anchor + k*step >= from.
	k := (DaysBetween(s.AnchorDate, from) + step - 1) / step

	var dates []Date
	for d := s.AnchorDate.AddDays(k * step); d.BeforeOrEqual(to); d = d.AddDays(step) {
		dates = append(dates, d)
	}
	return dates
}

func (s Schedule) monthly(m Month) []Date {
	elapsed := MonthsBetween(MonthOf(s.AnchorDate), m)
	if elapsed < 0 || elapsed%s.Interval != 0 {
		return nil
	}

	day := s.AnchorDate.Day()
	if s.DayOfMonth != nil {
		day = *s.DayOfMonth
	}
	d := m.DayClamped(day)
	if d.Before(s.AnchorDate) {
		return nil
	}
	return []Date{d}
}

func (s Schedule) yearly(m Month) []Date {
	if m.Month != s.AnchorDate.Month() {
		return nil
	}
	elapsed := m.Year - s.AnchorDate.Year()
	if elapsed < 0 || elapsed%s.Interval != 0 {
		return nil
	}
	return []Date{m.DayClamped(s.AnchorDate.Day())}
}
