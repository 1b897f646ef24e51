package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

// countingProvider records every collaborator call.
type countingProvider struct {
	calls int
}

func (c *countingProvider) GetCreditDebitTotals(context.Context, forecast.AccountID, forecast.Date, forecast.Date) ([]forecast.CreditDebitTotal, error) {
	c.calls++
	return nil, nil
}

func (c *countingProvider) GetCurrentBalance(context.Context, forecast.AccountID) (decimal.Decimal, error) {
	c.calls++
	return decimal.Zero, nil
}

func (c *countingProvider) ListAccountIDs(context.Context, forecast.FamilyID) ([]forecast.AccountID, error) {
	c.calls++
	return []forecast.AccountID{"acct-a"}, nil
}

func fixedClock() time.Time { return historyAsOf }

// =============================================================================
// CALCULATE - Manual plans
// =============================================================================

func TestCalculate_OneOffExpenseGoesNegative(t *testing.T) {
	// GIVEN: Jan-Mar 2024, start 1000, +500 / -800 per month and a 200
	// car repair on Feb 14
	plan := manualPlan(fixedItem("repair", "Car repair", forecast.ItemExpense, "200", "2024-02-14"))
	engine := forecast.NewEngine(nil, nil, nil)

	// WHEN: Calculating
	result, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)

	// THEN: 700, 200, -100 with March the lowest month
	require.Len(t, result.Months, 3)
	assertMoney(t, "700", result.Months[0].ClosingBalance)
	assertMoney(t, "200", result.Months[1].ClosingBalance)
	assertMoney(t, "-100", result.Months[2].ClosingBalance)

	assertMoney(t, "-100", result.Summary.LowestBalance)
	assert.Equal(t, "2024-03-01", result.Summary.LowestBalanceMonth.String())
	assert.Equal(t, 1, result.Summary.MonthsBelowZero)
	assertMoney(t, "1500", result.Summary.TotalIncome)
	assertMoney(t, "2600", result.Summary.TotalOutgoings)
	assertMoney(t, "800", result.Summary.MonthlyBaselineOutgoings)
}

func TestCalculate_RequiredUpliftClearsEveryMonth(t *testing.T) {
	plan := manualPlan(fixedItem("repair", "Car repair", forecast.ItemExpense, "200", "2024-02-14"))
	engine := forecast.NewEngine(nil, nil, nil)

	result, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)
	assertMoney(t, "33.34", result.Summary.RequiredMonthlyUplift)
	assert.True(t, result.Summary.UpliftVerified)

	// Raising income by the uplift keeps the plan at or above zero
	plan.IncomeStrategy = forecast.ManualRecurring{
		Amount:    money("500").Add(result.Summary.RequiredMonthlyUplift),
		Frequency: forecast.FrequencyMonthly,
	}
	uplifted, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 0, uplifted.Summary.MonthsBelowZero)
	assertMoney(t, "0", uplifted.Summary.RequiredMonthlyUplift)
}

func TestCalculate_FlexibleWindowSpreadsAcrossMonths(t *testing.T) {
	// GIVEN: A 300 trip spread evenly over Jan 15 - Mar 15
	trip := forecast.PlannedItem{
		ID: "trip", PlanID: "plan-1", Name: "Trip", Type: forecast.ItemExpense, Amount: money("300"), IsIncluded: true,
		DateMode: window("2024-01-15", "2024-03-15", forecast.AllocateEvenly),
	}
	engine := forecast.NewEngine(nil, nil, nil)

	result, err := engine.Calculate(context.Background(), manualPlan(trip))
	require.NoError(t, err)

	// THEN: Each month carries -100
	for _, m := range result.Months {
		assertMoney(t, "-100", m.PlannedItemsTotal)
		require.Len(t, m.Contributions, 1)
		assert.Equal(t, forecast.ItemID("trip"), m.Contributions[0].ItemID)
	}
	assertMoney(t, "-200", result.Months[2].ClosingBalance)
}

func TestCalculate_OpeningFollowsPreviousClosing(t *testing.T) {
	plan := manualPlan(
		fixedItem("bonus", "Bonus", forecast.ItemIncome, "250", "2024-01-20"),
		forecast.PlannedItem{
			ID: "gym", PlanID: "plan-1", Name: "Gym", Type: forecast.ItemExpense, Amount: money("25"), IsIncluded: true,
			DateMode: forecast.Schedule{Frequency: forecast.FrequencyWeekly, AnchorDate: date("2024-01-01"), Interval: 1},
		},
	)
	plan.EndDate = date("2024-12-31")
	engine := forecast.NewEngine(nil, nil, nil)

	result, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, result.Months, 12)

	assertMoney(t, "1000", result.Months[0].OpeningBalance)
	for i, m := range result.Months {
		if i > 0 {
			assertMoney(t, result.Months[i-1].ClosingBalance.String(), m.OpeningBalance)
		}
		want := m.OpeningBalance.Add(m.IncomeTotal).Sub(m.BaselineOutgoingsTotal).Add(m.PlannedItemsTotal)
		assertMoney(t, want.String(), m.ClosingBalance)
	}
}

func TestCalculate_SamePlanSameResult(t *testing.T) {
	plan := manualPlan(
		fixedItem("repair", "Car repair", forecast.ItemExpense, "200", "2024-02-14"),
		forecast.PlannedItem{
			ID: "trip", PlanID: "plan-1", Name: "Trip", Type: forecast.ItemExpense, Amount: money("100"), IsIncluded: true,
			DateMode: window("2024-01-01", "2024-03-31", forecast.AllocateFrontLoaded),
		},
	)
	engine := forecast.NewEngine(nil, nil, nil)

	first, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)
	second, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, second.Months, len(first.Months))
	for i := range first.Months {
		assert.Equal(t, first.Months[i].ClosingBalance.String(), second.Months[i].ClosingBalance.String())
	}
	assert.Equal(t, first.Summary.RequiredMonthlyUplift.String(), second.Summary.RequiredMonthlyUplift.String())
	assert.Len(t, plan.Items, 2, "plan is not modified")
}

func TestCalculate_ExcludedItemIgnored(t *testing.T) {
	item := fixedItem("repair", "Car repair", forecast.ItemExpense, "200", "2024-02-14")
	item.IsIncluded = false
	engine := forecast.NewEngine(nil, nil, nil)

	result, err := engine.Calculate(context.Background(), manualPlan(item))
	require.NoError(t, err)
	assertMoney(t, "100", result.Months[2].ClosingBalance)
}

// =============================================================================
// CALCULATE - History-backed plans
// =============================================================================

func TestCalculate_HistoryAndCalculatedBalance(t *testing.T) {
	// GIVEN: Two accounts opening at 500, each +3000 / -2400 a month for a
	// year, and a plan over all accounts resolved on 2024-06-30
	mem := householdHistory(t, "3000", "2400", "500", "500")
	engine := forecast.NewEngine(mem, mem, mem)
	plan := forecast.ForecastPlan{
		ID: "plan-h", FamilyID: "family-1", Name: "H2",
		StartDate: date("2024-07-01"), EndDate: date("2024-09-30"),
		Scope:               forecast.AccountScope{AllAccounts: true},
		StartingBalanceMode: forecast.StartingBalanceCalculated,
		Currency:            "USD",
		IncomeStrategy:      forecast.HistoricalAverage{LookbackMonths: 12},
		OutgoingStrategy:    forecast.HistoricalAverage{LookbackMonths: 12},
		CreatedAt:           historyAsOf,
	}

	// WHEN: Calculating
	result, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)

	// THEN: Start 2 x 7700, +1200 per month
	assert.Equal(t, []forecast.AccountID{"acct-a", "acct-b"}, result.Inputs.Accounts)
	assertMoney(t, "15400", result.Inputs.StartingBalance)
	assertMoney(t, "6000", result.Inputs.MonthlyIncome)
	assertMoney(t, "4800", result.Inputs.MonthlyOutgoings)
	assertMoney(t, "16600", result.Months[0].ClosingBalance)
	assertMoney(t, "19000", result.Months[2].ClosingBalance)
	assert.Empty(t, result.Warnings)
}

func TestCalculate_AllAccountsWithoutDirectory(t *testing.T) {
	mem := householdHistory(t, "100", "50", "0")
	engine := forecast.NewEngine(mem, nil, nil)
	plan := manualPlan()
	plan.Scope = forecast.AccountScope{AllAccounts: true}
	plan.IncomeStrategy = forecast.HistoricalAverage{LookbackMonths: 12}

	result, err := engine.Calculate(context.Background(), plan)
	require.NoError(t, err)

	// THEN: No accounts, zero income, one warning
	assertMoney(t, "0", result.Inputs.MonthlyIncome)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, forecast.WarnAccountSkipped, result.Warnings[0].Code)
}

func TestCalculate_UnknownAllocationModeWarnsWithItem(t *testing.T) {
	trip := forecast.PlannedItem{
		ID: "trip", PlanID: "plan-1", Name: "Trip", Type: forecast.ItemExpense, Amount: money("300"), IsIncluded: true,
		DateMode: window("2024-01-01", "2024-03-31", "lumpy"),
	}
	engine := forecast.NewEngine(nil, nil, nil)

	result, err := engine.Calculate(context.Background(), manualPlan(trip))
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, forecast.WarnUnknownAllocationMode, result.Warnings[0].Code)
	assert.Equal(t, forecast.ItemID("trip"), result.Warnings[0].ItemID)
}

// =============================================================================
// CALCULATE - Errors
// =============================================================================

func TestCalculate_ValidatesBeforeAnyCollaboratorCall(t *testing.T) {
	// GIVEN: A history-backed plan with a broken schedule
	counter := &countingProvider{}
	engine := forecast.NewEngine(counter, counter, counter)
	plan := manualPlan(forecast.PlannedItem{
		ID: "bad", PlanID: "plan-1", Name: "Bad", Type: forecast.ItemExpense, Amount: money("10"), IsIncluded: true,
		DateMode: forecast.Schedule{Frequency: forecast.FrequencyMonthly, AnchorDate: date("2024-01-01"), Interval: 0},
	})
	plan.Scope = forecast.AccountScope{AllAccounts: true}
	plan.IncomeStrategy = forecast.HistoricalAverage{LookbackMonths: 12}
	plan.StartingBalanceMode = forecast.StartingBalanceCalculated

	// WHEN: Calculating
	_, err := engine.Calculate(context.Background(), plan)

	// THEN: The schedule error surfaces and nothing was queried
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrInvalidSchedule)
	var se *forecast.ScheduleError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, forecast.ItemID("bad"), se.ItemID)
	assert.Equal(t, 0, counter.calls)
}

func TestCalculate_InvertedHorizon(t *testing.T) {
	plan := manualPlan()
	plan.StartDate, plan.EndDate = date("2024-03-01"), date("2024-01-01")

	_, err := forecast.NewEngine(nil, nil, nil).Calculate(context.Background(), plan)
	assert.ErrorIs(t, err, forecast.ErrInvalidPlan)
	assert.True(t, forecast.IsClientError(err))
}

func TestCalculate_MissingStartingBalance(t *testing.T) {
	plan := manualPlan()
	plan.StartingBalanceAmount = nil
	_, err := forecast.NewEngine(nil, nil, nil).Calculate(context.Background(), plan)
	assert.ErrorIs(t, err, forecast.ErrMissingStartingBalance)

	plan = manualPlan()
	plan.StartingBalanceMode = forecast.StartingBalanceCalculated
	_, err = forecast.NewEngine(nil, nil, nil).Calculate(context.Background(), plan)
	assert.ErrorIs(t, err, forecast.ErrMissingStartingBalance)
}

func TestCalculate_CollaboratorErrorsAreWrapped(t *testing.T) {
	mem := householdHistory(t, "100", "50", "0")
	plan := manualPlan()
	plan.Scope = forecast.AccountScope{AccountIDs: []forecast.AccountID{"acct-missing"}}
	plan.OutgoingStrategy = forecast.HistoricalAverage{LookbackMonths: 3}

	_, err := forecast.NewEngine(mem, mem, mem).Calculate(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "resolve outgoings")
}

func TestCalculate_CancelledContext(t *testing.T) {
	counter := &countingProvider{}
	engine := forecast.NewEngine(counter, counter, counter)
	plan := manualPlan()
	plan.Scope = forecast.AccountScope{AllAccounts: true}
	plan.StartingBalanceMode = forecast.StartingBalanceCalculated

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Calculate(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, counter.calls)
}

// =============================================================================
// VALIDATE
// =============================================================================

func TestValidate(t *testing.T) {
	negative := fixedItem("neg", "Negative", forecast.ItemExpense, "-5", "2024-01-01")
	badType := fixedItem("typ", "Odd", "transfer", "5", "2024-01-01")
	noMode := forecast.PlannedItem{ID: "none", Type: forecast.ItemIncome, Amount: money("5"), IsIncluded: true}
	inverted := forecast.PlannedItem{
		ID: "win", Type: forecast.ItemExpense, Amount: money("5"), IsIncluded: true,
		DateMode: window("2024-03-01", "2024-01-01", forecast.AllocateEvenly),
	}

	cases := []struct {
		name   string
		mutate func(*forecast.ForecastPlan)
		want   error
	}{
		{"valid", func(*forecast.ForecastPlan) {}, nil},
		{"missing dates", func(p *forecast.ForecastPlan) { p.EndDate = forecast.Date{} }, forecast.ErrInvalidPlan},
		{"negative amount", func(p *forecast.ForecastPlan) { p.Items = append(p.Items, negative) }, forecast.ErrInvalidPlan},
		{"bad item type", func(p *forecast.ForecastPlan) { p.Items = append(p.Items, badType) }, forecast.ErrInvalidPlan},
		{"no date mode", func(p *forecast.ForecastPlan) { p.Items = append(p.Items, noMode) }, forecast.ErrInvalidPlan},
		{"inverted window", func(p *forecast.ForecastPlan) { p.Items = append(p.Items, inverted) }, forecast.ErrInvalidPlan},
		{"zero lookback", func(p *forecast.ForecastPlan) {
			p.OutgoingStrategy = forecast.HistoricalAverage{}
		}, forecast.ErrInvalidPlan},
		{"bad frequency", func(p *forecast.ForecastPlan) {
			p.IncomeStrategy = forecast.ManualRecurring{Amount: money("1"), Frequency: "hourly"}
		}, forecast.ErrInvalidPlan},
		{"unknown starting mode", func(p *forecast.ForecastPlan) { p.StartingBalanceMode = "guess" }, forecast.ErrInvalidPlan},
		{"excluded items are not checked", func(p *forecast.ForecastPlan) {
			skipped := noMode
			skipped.IsIncluded = false
			p.Items = append(p.Items, skipped)
		}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := manualPlan()
			tc.mutate(&plan)
			err := forecast.Validate(plan)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

// =============================================================================
// PREPARE NEW PLAN
// =============================================================================

func TestPrepareNewPlan_DerivesIncomeFromHistory(t *testing.T) {
	// GIVEN: A new plan without strategies over two 3000/month accounts
	mem := householdHistory(t, "3000", "2400", "0", "0")
	engine := forecast.NewEngine(mem, mem, mem)
	engine.DefaultLookback = 12
	plan := forecast.ForecastPlan{
		ID: "plan-new", FamilyID: "family-1", Currency: "USD",
		Scope:     forecast.AccountScope{AllAccounts: true},
		CreatedAt: historyAsOf,
	}

	// WHEN: Preparing it
	require.NoError(t, engine.PrepareNewPlan(context.Background(), &plan))

	// THEN: Income is frozen at today's average, outgoings stay historical
	income, ok := plan.IncomeStrategy.(forecast.ManualRecurring)
	require.True(t, ok, "income strategy is %T", plan.IncomeStrategy)
	assertMoney(t, "6000", income.Amount)
	assert.Equal(t, forecast.FrequencyMonthly, income.Frequency)
	assert.Equal(t, forecast.HistoricalAverage{LookbackMonths: 12}, plan.OutgoingStrategy)
	assert.Equal(t, historyAsOf, plan.UpdatedAt)
}

func TestPrepareNewPlan_KeepsExplicitStrategies(t *testing.T) {
	engine := forecast.NewEngine(nil, nil, nil)
	engine.Now = fixedClock
	plan := manualPlan()
	plan.CreatedAt = time.Time{}

	require.NoError(t, engine.PrepareNewPlan(context.Background(), &plan))
	assert.Equal(t, forecast.ManualRecurring{Amount: money("500"), Frequency: forecast.FrequencyMonthly}, plan.IncomeStrategy)
	assert.Equal(t, historyAsOf, plan.CreatedAt)
	assert.Equal(t, historyAsOf, plan.UpdatedAt)
}
