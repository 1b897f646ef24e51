package api

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestRiskScanner_StartRejectsBadSchedule(t *testing.T) {
	s := newTestServer(t)
	rs := s.handler.Scanner
	rs.Schedule = "every tuesday-ish"

	err := rs.Start()
	assert.Error(t, err)
	assert.True(t, rs.NextRun().IsZero())
}

func TestRiskScanner_DisabledStartIsNoop(t *testing.T) {
	s := newTestServer(t)
	rs := s.handler.Scanner
	rs.Enabled = false

	require.NoError(t, rs.Start())
	assert.True(t, rs.NextRun().IsZero())
	rs.Stop()
}

func TestRiskScanner_StartStop(t *testing.T) {
	s := newTestServer(t)
	rs := s.handler.Scanner
	rs.Schedule = "@every 24h"

	require.NoError(t, rs.Start())
	assert.False(t, rs.NextRun().IsZero())
	// Starting twice keeps the one schedule.
	require.NoError(t, rs.Start())

	rs.Stop()
	assert.True(t, rs.NextRun().IsZero())
}

// =============================================================================
// SCAN
// =============================================================================

func scanPlan(id string, start, income, outgoings string) forecast.ForecastPlan {
	amount := decimal.RequireFromString(start)
	return forecast.ForecastPlan{
		ID:                    forecast.PlanID(id),
		FamilyID:              "fam-1",
		Name:                  id,
		StartDate:             forecast.MustParseDate("2024-07-01"),
		EndDate:               forecast.MustParseDate("2024-12-31"),
		StartingBalanceMode:   forecast.StartingBalanceManual,
		StartingBalanceAmount: &amount,
		IncomeStrategy:        forecast.ManualRecurring{Amount: decimal.RequireFromString(income), Frequency: forecast.FrequencyMonthly},
		OutgoingStrategy:      forecast.ManualRecurring{Amount: decimal.RequireFromString(outgoings), Frequency: forecast.FrequencyMonthly},
		Currency:              "USD",
		CreatedAt:             testNow,
		UpdatedAt:             testNow,
	}
}

func TestRiskScanner_ScanOnce(t *testing.T) {
	// GIVEN: A plan that runs dry, a healthy plan, an archived plan that
	// runs dry and a plan that cannot be calculated
	s := newTestServer(t)
	ctx := context.Background()
	store := s.handler.Store

	require.NoError(t, store.SavePlan(ctx, scanPlan("tight", "100", "1000", "1100")))
	require.NoError(t, store.SavePlan(ctx, scanPlan("healthy", "100", "1000", "900")))
	require.NoError(t, store.SavePlan(ctx, scanPlan("old", "0", "0", "500")))
	require.NoError(t, store.ArchivePlan(ctx, "old"))

	broken := scanPlan("broken", "0", "0", "0")
	broken.StartingBalanceAmount = nil
	require.NoError(t, store.SavePlan(ctx, broken))

	// WHEN: Scanning once
	risks, err := s.handler.Scanner.ScanOnce(ctx)
	require.NoError(t, err)

	// THEN: Only the active plan that goes negative is reported
	require.Len(t, risks, 1)
	assert.Equal(t, "tight", risks[0].PlanID)
	assert.Equal(t, 5, risks[0].MonthsBelowZero)
	assert.True(t, risks[0].LowestBalance.Equal(decimal.RequireFromString("-500")))
	assert.Equal(t, "2024-12-01", risks[0].LowestBalanceMonth)
	assert.True(t, risks[0].RequiredMonthlyUplift.Equal(decimal.RequireFromString("83.34")))

	at, last := s.handler.Scanner.LastResult()
	assert.False(t, at.IsZero())
	assert.Equal(t, risks, last)
}

func TestRiskScanner_ScanOnceCancelled(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.handler.Store.SavePlan(ctx, scanPlan("tight", "100", "1000", "1100")))
	cancel()

	_, err := s.handler.Scanner.ScanOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
