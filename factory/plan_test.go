package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

const householdPlan = `{
  "id": "plan-1",
  "family_id": "fam-1",
  "name": "2024 budget",
  "start_date": "2024-01-01",
  "end_date": "2024-12-31",
  "account_ids": ["acc-1", "acc-2"],
  "starting_balance_mode": "manual",
  "starting_balance_amount": "1000.00",
  "currency": "USD",
  "income_strategy":   {"mode": "manual_recurring", "amount": "3000"},
  "outgoing_strategy": {"mode": "historical_average"},
  "created_at": "2024-01-02T08:00:00Z",
  "items": [
    {"id": "i1", "name": "Car tax", "type": "expense", "amount": "250", "fixed_date": "2024-03-01"},
    {"id": "i2", "name": "Salary bump", "type": "income", "amount": "100", "is_included": false,
     "schedule": {"frequency": "monthly", "anchor_date": "2024-02-25"}},
    {"id": "i3", "name": "Holiday", "type": "expense", "amount": "1200",
     "window": {"start_date": "2024-06-01", "end_date": "2024-08-31", "allocation_mode": "back_loaded"}}
  ]
}`

// =============================================================================
// PARSING
// =============================================================================

func TestParsePlan_FullDocument(t *testing.T) {
	// GIVEN: A plan document with every date mode
	f := NewPlanFactory()

	// WHEN: Parsing it
	plan, err := f.ParsePlan([]byte(householdPlan))
	require.NoError(t, err)

	// THEN: Every field lands on the domain plan
	assert.Equal(t, forecast.PlanID("plan-1"), plan.ID)
	assert.Equal(t, forecast.FamilyID("fam-1"), plan.FamilyID)
	assert.Equal(t, "2024-12-31", plan.EndDate.String())
	assert.Equal(t, []forecast.AccountID{"acc-1", "acc-2"}, plan.Scope.AccountIDs)
	require.NotNil(t, plan.StartingBalanceAmount)
	assert.Equal(t, "1000", plan.StartingBalanceAmount.String())
	assert.Equal(t, 2024, plan.CreatedAt.Year())
	require.NoError(t, forecast.Validate(*plan))

	income, ok := plan.IncomeStrategy.(forecast.ManualRecurring)
	require.True(t, ok)
	assert.Equal(t, forecast.FrequencyMonthly, income.Frequency, "frequency defaults to monthly")
	assert.Equal(t, forecast.HistoricalAverage{LookbackMonths: forecast.DefaultLookbackMonths}, plan.OutgoingStrategy)

	require.Len(t, plan.Items, 3)
	assert.IsType(t, forecast.FixedDate{}, plan.Items[0].DateMode)
	assert.True(t, plan.Items[0].IsIncluded, "is_included defaults to true")
	assert.Equal(t, forecast.PlanID("plan-1"), plan.Items[0].PlanID)

	sched, ok := plan.Items[1].DateMode.(forecast.Schedule)
	require.True(t, ok)
	assert.Equal(t, 1, sched.Interval, "interval defaults to 1")
	assert.False(t, plan.Items[1].IsIncluded)

	win, ok := plan.Items[2].DateMode.(forecast.FlexibleWindow)
	require.True(t, ok)
	assert.Equal(t, forecast.AllocateBackLoaded, win.AllocationMode)
}

func TestParsePlan_OmittedStrategiesStayNil(t *testing.T) {
	plan, err := NewPlanFactory().ParsePlan([]byte(`{"id":"p","start_date":"2024-01-01","end_date":"2024-01-31"}`))
	require.NoError(t, err)
	assert.Nil(t, plan.IncomeStrategy)
	assert.Nil(t, plan.OutgoingStrategy)
	assert.Empty(t, plan.Items)
}

func TestParsePlan_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed json":   `{"id":`,
		"bad date":         `{"id":"p","start_date":"01/02/2024"}`,
		"unknown strategy": `{"id":"p","income_strategy":{"mode":"guess"}}`,
		"manual no amount": `{"id":"p","income_strategy":{"mode":"manual_recurring"}}`,
		"bad timestamp":    `{"id":"p","created_at":"yesterday"}`,
		"no date mode":     `{"id":"p","items":[{"id":"i","type":"expense","amount":"1"}]}`,
		"two date modes":   `{"id":"p","items":[{"id":"i","type":"expense","amount":"1","fixed_date":"2024-01-01","window":{"start_date":"2024-01-01","end_date":"2024-02-01"}}]}`,
	}
	f := NewPlanFactory()
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParsePlan([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, forecast.ErrInvalidPlan)
		})
	}
}

func TestItemFromJSON_TwoDateModesNamesItem(t *testing.T) {
	d := forecast.MustParseDate("2024-01-01")
	_, err := NewPlanFactory().ItemFromJSON("plan-1", ItemJSON{
		ID: "i9", Type: "expense", FixedDate: &d,
		Schedule: &ScheduleJSON{Frequency: "monthly", AnchorDate: d},
	})

	var pe *forecast.PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, forecast.ItemID("i9"), pe.ItemID)
	assert.Equal(t, "date_mode", pe.Field)
}

// =============================================================================
// ENCODING
// =============================================================================

func TestToJSON_ReparsesToSamePlan(t *testing.T) {
	f := NewPlanFactory()
	plan, err := f.ParsePlan([]byte(householdPlan))
	require.NoError(t, err)

	data, err := f.EncodePlan(*plan)
	require.NoError(t, err)
	again, err := f.ParsePlan(data)
	require.NoError(t, err)

	assert.Equal(t, plan.ID, again.ID)
	assert.Equal(t, plan.Scope, again.Scope)
	assert.True(t, plan.CreatedAt.Equal(again.CreatedAt))
	require.Len(t, again.Items, 3)
	assert.False(t, again.Items[1].IsIncluded, "exclusion survives encoding")
	assert.Equal(t, plan.Items[1].DateMode, again.Items[1].DateMode)
	assert.Equal(t, plan.Items[2].DateMode, again.Items[2].DateMode)
}

func TestStrategyJSON_Nil(t *testing.T) {
	assert.Nil(t, NewPlanFactory().StrategyJSON(nil))
}
