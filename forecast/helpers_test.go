package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/forecast/provider"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) forecast.Date { return forecast.MustParseDate(s) }

func money(s string) decimal.Decimal { return forecast.MustParseDecimal(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func intPtr(n int) *int { return &n }

// assertMoney compares decimals by value, ignoring exponent.
func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}

func month(year int, m time.Month) forecast.Month { return forecast.NewMonth(year, m) }

// manualPlan is the Jan-Mar 2024 plan: start 1000, income 500, outgoings 800.
func manualPlan(items ...forecast.PlannedItem) forecast.ForecastPlan {
	return forecast.ForecastPlan{
		ID:                    "plan-1",
		FamilyID:              "family-1",
		Name:                  "Q1",
		StartDate:             date("2024-01-01"),
		EndDate:               date("2024-03-31"),
		StartingBalanceMode:   forecast.StartingBalanceManual,
		StartingBalanceAmount: moneyPtr("1000"),
		Currency:              "USD",
		IncomeStrategy:        forecast.ManualRecurring{Amount: money("500"), Frequency: forecast.FrequencyMonthly},
		OutgoingStrategy:      forecast.ManualRecurring{Amount: money("800"), Frequency: forecast.FrequencyMonthly},
		CreatedAt:             time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Items:                 items,
	}
}

func fixedItem(id, name string, typ forecast.ItemType, amount, on string) forecast.PlannedItem {
	return forecast.PlannedItem{
		ID:         forecast.ItemID(id),
		PlanID:     "plan-1",
		Name:       name,
		Type:       typ,
		Amount:     money(amount),
		IsIncluded: true,
		DateMode:   forecast.FixedDate{Date: date(on)},
	}
}

// historyAsOf is "today" for history-backed plans; the twelve-month
// lookback ending here covers exactly July 2023 through June 2024.
var historyAsOf = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// householdHistory registers one account per opening balance under
// family-1 and records a credit on the 1st and a debit on the 10th of every
// month from July 2023 through June 2024.
func householdHistory(t *testing.T, credit, debit string, openings ...string) *provider.Memory {
	t.Helper()
	ctx := context.Background()
	mem := provider.NewMemory()

	for i, opening := range openings {
		id := forecast.AccountID("acct-" + string(rune('a'+i)))
		require.NoError(t, mem.AddAccount(ctx, provider.Account{
			ID:             id,
			FamilyID:       "family-1",
			Name:           string(id),
			Currency:       "USD",
			OpeningBalance: money(opening),
		}))

		for m := 0; m < 12; m++ {
			mo := month(2023, time.July).Add(m)
			require.NoError(t, mem.Record(ctx,
				provider.Transaction{
					ID: string(id) + "-in-" + mo.String(), AccountID: id,
					Date: mo.DayClamped(1), Type: forecast.TxCredit, Amount: money(credit),
				},
				provider.Transaction{
					ID: string(id) + "-out-" + mo.String(), AccountID: id,
					Date: mo.DayClamped(10), Type: forecast.TxDebit, Amount: money(debit),
				},
			))
		}
	}
	return mem
}
