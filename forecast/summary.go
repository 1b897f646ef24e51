/*
summary.go - Risk statistics over a month series

PURPOSE:
  Answers "how bad does it get, and what would fix it?" for a projection.

FIELDS:
  LowestBalance / LowestBalanceMonth:
    Minimum closing balance and the month it happens in. Ties go to the
    earliest month.

  MonthsBelowZero:
    Months whose closing balance is negative.

  TotalIncome / TotalOutgoings:
    Baseline income plus positive planned contributions; baseline
    outgoings plus negative planned contributions (as a magnitude).

  RequiredMonthlyUplift:
    Smallest extra monthly income, added to every month from the first,
    that keeps every closing balance >= 0. Adding u to every month raises
    month i's closing balance by u*(i+1), so the closed form is

        max over months i with closing_i < 0 of  -closing_i / (i+1)

    which is -lowest / (lowestIndex+1) whenever the lowest month is the
    binding one. The candidate is rounded up to the minor unit, then
    verified by re-projecting with the uplift applied. If verification
    fails, the uplift grows by one minor unit per attempt, up to
    UpliftPolicy.MaxAttempts.
*/
package forecast

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ForecastSummary holds the summary statistics of one projection.
type ForecastSummary struct {
	LowestBalance            decimal.Decimal
	LowestBalanceMonth       Date
	RequiredMonthlyUplift    decimal.Decimal
	MonthsBelowZero          int
	TotalIncome              decimal.Decimal
	TotalOutgoings           decimal.Decimal
	MonthlyBaselineOutgoings decimal.Decimal

	// UpliftVerified is false only when the bounded retry ran out.
	UpliftVerified bool
	UpliftAttempts int
}

// UpliftPolicy configures required-uplift verification.
type UpliftPolicy struct {
	// MaxAttempts bounds re-projections. Zero means DefaultUpliftAttempts.
	MaxAttempts int

	// Tolerance is how far below zero the verified minimum may be. Nil
	// means one minor unit.
	Tolerance *decimal.Decimal
}

// DefaultUpliftAttempts bounds the verification loop when unset.
const DefaultUpliftAttempts = 100

// Rerun re-projects the whole horizon with uplift added to every month's
// income.
type Rerun func(uplift decimal.Decimal) ([]ForecastMonth, error)

// SummaryInput contains everything Summarize needs.
type SummaryInput struct {
	Months                   []ForecastMonth
	MonthlyBaselineOutgoings decimal.Decimal
	Places                   int32
	Policy                   UpliftPolicy

	// Rerun is optional; without it the closed-form uplift is reported
	// unverified.
	Rerun Rerun
}

// Summarize computes the summary statistics for a month series.
func Summarize(in SummaryInput) (ForecastSummary, error) {
	s := ForecastSummary{
		LowestBalance:            decimal.Zero,
		RequiredMonthlyUplift:    decimal.Zero,
		TotalIncome:              decimal.Zero,
		TotalOutgoings:           decimal.Zero,
		MonthlyBaselineOutgoings: in.MonthlyBaselineOutgoings,
		UpliftVerified:           true,
	}
	if len(in.Months) == 0 {
		return s, nil
	}

	lowestIdx := lowestIndex(in.Months)
	s.LowestBalance = in.Months[lowestIdx].ClosingBalance
	s.LowestBalanceMonth = in.Months[lowestIdx].MonthStart

	for _, m := range in.Months {
		if m.ClosingBalance.IsNegative() {
			s.MonthsBelowZero++
		}
		s.TotalIncome = s.TotalIncome.Add(m.IncomeTotal).Add(m.PlannedIncomeTotal)
		s.TotalOutgoings = s.TotalOutgoings.Add(m.BaselineOutgoingsTotal).Add(m.PlannedExpenseTotal)
	}

	if !s.LowestBalance.IsNegative() {
		return s, nil
	}

	uplift, attempts, verified, err := requiredUplift(in)
	if err != nil {
		return ForecastSummary{}, err
	}
	s.RequiredMonthlyUplift = uplift
	s.UpliftAttempts = attempts
	s.UpliftVerified = verified
	return s, nil
}

// lowestIndex returns the index of the minimum closing balance, earliest on
// ties.
func lowestIndex(months []ForecastMonth) int {
	idx := 0
	for i := 1; i < len(months); i++ {
		if months[i].ClosingBalance.LessThan(months[idx].ClosingBalance) {
			idx = i
		}
	}
	return idx
}

func requiredUplift(in SummaryInput) (decimal.Decimal, int, bool, error) {
	candidate := decimal.Zero
	for i, m := range in.Months {
		if !m.ClosingBalance.IsNegative() {
			continue
		}
		need := m.ClosingBalance.Neg().Div(decimal.NewFromInt(int64(i + 1)))
		if need.GreaterThan(candidate) {
			candidate = need
		}
	}
	candidate = candidate.RoundCeil(in.Places)

	if in.Rerun == nil {
		return candidate, 0, false, nil
	}

	maxAttempts := in.Policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultUpliftAttempts
	}
	step := decimal.New(1, -in.Places)
	tolerance := step
	if in.Policy.Tolerance != nil {
		tolerance = *in.Policy.Tolerance
	}
	floor := tolerance.Neg()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		months, err := in.Rerun(candidate)
		if err != nil {
			return decimal.Zero, attempt, false, fmt.Errorf("verify uplift %s: %w", candidate, err)
		}
		if len(months) == 0 || !months[lowestIndex(months)].ClosingBalance.LessThan(floor) {
			return candidate, attempt, true, nil
		}
		if attempt < maxAttempts {
			candidate = candidate.Add(step)
		}
	}
	return candidate, maxAttempts, false, nil
}
