package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

// =============================================================================
// MONTHLY SCHEDULES
// =============================================================================

func TestSchedule_Monthly_ClampsToEndOfFebruary(t *testing.T) {
	// GIVEN: A monthly schedule anchored on the 31st
	// WHEN: Resolving February in a common and a leap year
	// THEN: It fires on the 28th and the 29th respectively

	s := forecast.Schedule{Frequency: forecast.FrequencyMonthly, AnchorDate: date("2023-01-31"), Interval: 1}

	dates, err := s.OccurrencesIn(month(2023, time.February))
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2023-02-28", dates[0].String())

	dates, err = s.OccurrencesIn(month(2024, time.February))
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2024-02-29", dates[0].String())

	dates, err = s.OccurrencesIn(month(2024, time.April))
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2024-04-30", dates[0].String())
}

func TestSchedule_Monthly_Interval(t *testing.T) {
	// GIVEN: A quarterly schedule (every 3 months) anchored mid-January
	s := forecast.Schedule{Frequency: forecast.FrequencyMonthly, AnchorDate: date("2024-01-15"), Interval: 3}

	// THEN: It fires in Jan, Apr, Jul, Oct only, never before the anchor
	expect := map[time.Month]bool{time.January: true, time.April: true, time.July: true, time.October: true}
	for m := time.January; m <= time.December; m++ {
		occurs, err := s.OccursIn(month(2024, m))
		require.NoError(t, err)
		assert.Equal(t, expect[m], occurs, "month %s", m)
	}

	occurs, err := s.OccursIn(month(2023, time.October))
	require.NoError(t, err)
	assert.False(t, occurs, "no occurrences before the anchor month")
}

func TestSchedule_Monthly_DayOfMonthBeforeAnchorSkipsFirstMonth(t *testing.T) {
	// GIVEN: Anchored on Jan 20 but paid on the 10th
	s := forecast.Schedule{
		Frequency:  forecast.FrequencyMonthly,
		AnchorDate: date("2024-01-20"),
		Interval:   1,
		DayOfMonth: intPtr(10),
	}

	// THEN: Jan 10 precedes the anchor and is skipped; Feb 10 counts
	n, err := s.OccurrenceCountIn(month(2024, time.January))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	dates, err := s.OccurrencesIn(month(2024, time.February))
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2024-02-10", dates[0].String())
}

func TestSchedule_EndDateStopsOccurrences(t *testing.T) {
	end := date("2024-03-01")
	s := forecast.Schedule{Frequency: forecast.FrequencyMonthly, AnchorDate: date("2024-01-15"), Interval: 1, EndDate: &end}

	n, err := s.OccurrenceCountIn(month(2024, time.February))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.OccurrenceCountIn(month(2024, time.March))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "Mar 15 is after the end date")
}

// =============================================================================
// SUB-MONTHLY SCHEDULES
// =============================================================================

func TestSchedule_Weekly_CountsEveryOccurrence(t *testing.T) {
	// GIVEN: Weekly from Monday 2024-01-01
	s := forecast.Schedule{Frequency: forecast.FrequencyWeekly, AnchorDate: date("2024-01-01"), Interval: 1}

	// THEN: January has five Mondays, February four
	n, err := s.OccurrenceCountIn(month(2024, time.January))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = s.OccurrenceCountIn(month(2024, time.February))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSchedule_Fortnightly(t *testing.T) {
	s := forecast.Schedule{Frequency: forecast.FrequencyFortnightly, AnchorDate: date("2024-01-05"), Interval: 1}

	dates, err := s.OccurrencesIn(month(2024, time.March))
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, "2024-03-01", dates[0].String())
	assert.Equal(t, "2024-03-15", dates[1].String())
	assert.Equal(t, "2024-03-29", dates[2].String())
}

func TestSchedule_Daily_WithInterval(t *testing.T) {
	// GIVEN: Every other day from Feb 10 2024
	s := forecast.Schedule{Frequency: forecast.FrequencyDaily, AnchorDate: date("2024-02-10"), Interval: 2}

	// THEN: Feb 10, 12, ..., 28 (10 days); nothing in January
	n, err := s.OccurrenceCountIn(month(2024, time.February))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = s.OccurrenceCountIn(month(2024, time.January))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// March continues the cadence: Mar 1 is 20 days after Feb 10
	dates, err := s.OccurrencesIn(month(2024, time.March))
	require.NoError(t, err)
	require.NotEmpty(t, dates)
	assert.Equal(t, "2024-03-01", dates[0].String())
}

// =============================================================================
// YEARLY SCHEDULES
// =============================================================================

func TestSchedule_Yearly_LeapDayAnchor(t *testing.T) {
	// GIVEN: A biennial schedule anchored on Feb 29 2024
	s := forecast.Schedule{Frequency: forecast.FrequencyYearly, AnchorDate: date("2024-02-29"), Interval: 2}

	// THEN: 2025 is skipped by the interval; 2026 fires on Feb 28
	n, err := s.OccurrenceCountIn(month(2025, time.February))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	dates, err := s.OccurrencesIn(month(2026, time.February))
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2026-02-28", dates[0].String())

	n, err = s.OccurrenceCountIn(month(2026, time.March))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestSchedule_InvalidInterval(t *testing.T) {
	for _, interval := range []int{0, -1} {
		s := forecast.Schedule{Frequency: forecast.FrequencyMonthly, AnchorDate: date("2024-01-01"), Interval: interval}

		_, err := s.OccursIn(month(2024, time.January))
		require.Error(t, err)
		assert.ErrorIs(t, err, forecast.ErrInvalidSchedule)

		var se *forecast.ScheduleError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, interval, se.Interval)
	}
}

func TestSchedule_UnsupportedFrequency(t *testing.T) {
	s := forecast.Schedule{Frequency: "hourly", AnchorDate: date("2024-01-01"), Interval: 1}

	err := s.Validate()
	assert.ErrorIs(t, err, forecast.ErrInvalidSchedule)
	assert.True(t, forecast.IsClientError(err))
}
