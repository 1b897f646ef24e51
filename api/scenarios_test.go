/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:

	Every scenario loads through the API and produces a plan the engine can
	calculate. The tight budget is checked in detail since its figures are
	all manual.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/factory"
)

func TestScenarios_List(t *testing.T) {
	s := newTestServer(t)
	list := decode[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	require.Len(t, list, 4)
	assert.Equal(t, "steady-household", list[0].ID)
}

func TestScenarios_AllLoadAndCalculate(t *testing.T) {
	plans := map[string]string{
		"steady-household": "plan-steady",
		"tight-budget":     "plan-tight",
		"holiday-window":   "plan-holiday",
		"all-accounts":     "plan-family",
	}

	for scenario, planID := range plans {
		t.Run(scenario, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: scenario})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			current := decode[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, scenario, current.ID)

			rec = s.do(t, http.MethodGet, "/api/plans/"+planID+"/forecast", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			fc := decode[ForecastDTO](t, rec)
			assert.NotEmpty(t, fc.Months)
			assert.Equal(t, "2024-06-01", fc.Months[0].MonthStart)
			assert.Empty(t, fc.Warnings)
		})
	}
}

func TestScenario_TightBudget(t *testing.T) {
	// GIVEN: The tight budget scenario loaded in June 2024
	s := newTestServer(t)
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"tight-budget"}`).Code)

	// WHEN: Forecasting
	fc := decode[ForecastDTO](t, s.do(t, http.MethodGet, "/api/plans/plan-tight/forecast", nil))

	// THEN: June has five Saturday gym payments and the side gig is ignored
	require.Len(t, fc.Months, 12)
	assertDecimal(t, "-125", fc.Months[0].PlannedItemsTotal)
	assertDecimal(t, "775", fc.Months[0].ClosingBalance)
	require.Len(t, fc.Months[0].Contributions, 1)
	assert.Equal(t, "item-gym", fc.Months[0].Contributions[0].ItemID)
	assert.Equal(t, 5, fc.Months[0].Contributions[0].Occurrences)

	// AND: It runs out of money, and the uplift fixes it
	assert.Positive(t, fc.Summary.MonthsBelowZero)
	assert.True(t, fc.Summary.RequiredMonthlyUplift.IsPositive())
	assert.True(t, fc.Summary.UpliftVerified)
}

func TestScenario_HolidayWindowUsesDefaults(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"holiday-window"}`).Code)

	plan := decode[factory.PlanJSON](t, s.do(t, http.MethodGet, "/api/plans/plan-holiday", nil))
	require.NotNil(t, plan.IncomeStrategy)
	assert.Equal(t, factory.ModeManualRecurring, plan.IncomeStrategy.Mode)
	require.NotNil(t, plan.OutgoingStrategy)
	assert.Equal(t, factory.ModeHistoricalAverage, plan.OutgoingStrategy.Mode)

	// Window Aug-Oct, front-loaded: 1200 / 800 / 400
	fc := decode[ForecastDTO](t, s.do(t, http.MethodGet, "/api/plans/plan-holiday/forecast", nil))
	require.Len(t, fc.Months, 9)
	assert.Equal(t, "2024-08-01", fc.Months[2].MonthStart)
	assertDecimal(t, "-1200", fc.Months[2].PlannedItemsTotal)
	assertDecimal(t, "-800", fc.Months[3].PlannedItemsTotal)

	// Quarterly bonus from July: July and October
	assertDecimal(t, "750", fc.Months[1].PlannedItemsTotal)
	assertDecimal(t, "350", fc.Months[4].PlannedItemsTotal)
}

func TestScenarios_ResetAndUnknown(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"tight-budget"}`).Code)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"lottery-win"}`).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/reset", nil).Code)
	rec := s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", string(rec.Body.Bytes()[:4]))
	assert.Empty(t, decode[[]factory.PlanJSON](t, s.do(t, http.MethodGet, "/api/plans", nil)))
}

func TestRisk_FlagsTightBudget(t *testing.T) {
	// GIVEN: A tight and a steady household in the same database
	s := newTestServer(t)
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"tight-budget"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/plans", `{
		"id":"plan-fine","family_id":"fam-1","name":"Fine","start_date":"2024-07-01","end_date":"2024-09-30",
		"starting_balance_amount":"500",
		"income_strategy":{"mode":"manual_recurring","amount":"1000"},
		"outgoing_strategy":{"mode":"manual_recurring","amount":"900"}}`).Code)

	// WHEN: Scanning
	rec := s.do(t, http.MethodGet, "/api/risk", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Only the tight budget is reported, and logged
	risks := decode[[]RiskDTO](t, rec)
	require.Len(t, risks, 1)
	assert.Equal(t, "plan-tight", risks[0].PlanID)

	var warned bool
	for _, e := range s.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "plan goes below zero" {
			warned = true
			assert.Equal(t, "plan-tight", e.Data["plan_id"])
		}
	}
	assert.True(t, warned)
}
