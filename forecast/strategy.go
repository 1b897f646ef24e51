package forecast

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGY RESOLVER - Strategy -> one monthly figure
// =============================================================================

var (
	twelve         = decimal.NewFromInt(12)
	daysPerYear    = decimal.NewFromInt(365)
	weeksPerYear   = decimal.NewFromInt(52)
	fortnightsPerY = decimal.NewFromInt(26)
)

// NormalizeMonthly converts an amount recurring at freq into a monthly
// figure: daily x 365/12, weekly x 52/12, fortnightly x 26/12, monthly x 1,
// yearly / 12. The result is not rounded.
func NormalizeMonthly(amount decimal.Decimal, freq Frequency) (decimal.Decimal, error) {
	switch freq {
	case FrequencyDaily:
		return amount.Mul(daysPerYear).Div(twelve), nil
	case FrequencyWeekly:
		return amount.Mul(weeksPerYear).Div(twelve), nil
	case FrequencyFortnightly:
		return amount.Mul(fortnightsPerY).Div(twelve), nil
	case FrequencyMonthly:
		return amount, nil
	case FrequencyYearly:
		return amount.Div(twelve), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidPlan, freq)
	}
}

// StrategyResolver turns income/outgoing strategies into monthly amounts.
type StrategyResolver struct {
	// History may be nil; history-based strategies then resolve to zero with
	// an unresolved_strategy warning.
	History HistoricalAggregates

	// Places is the minor-unit precision results are rounded to.
	Places int32

	// DefaultLookback applies to a nil strategy. Zero means
	// DefaultLookbackMonths.
	DefaultLookback int
}

// ResolveInput carries everything one resolution needs.
type ResolveInput struct {
	Strategy Strategy
	Flow     TransactionType // TxCredit for income, TxDebit for outgoings
	Accounts []AccountID
	AsOf     Date
}

// ResolveMonthly returns the monthly baseline for the given strategy. A nil
// strategy is treated as HistoricalAverage over the default lookback.
func (r *StrategyResolver) ResolveMonthly(ctx context.Context, in ResolveInput) (decimal.Decimal, []Warning, error) {
	strategy := in.Strategy
	if strategy == nil {
		strategy = HistoricalAverage{LookbackMonths: r.defaultLookback()}
	}

	switch s := strategy.(type) {
	case ManualRecurring:
		if s.Amount.IsNegative() {
			return decimal.Zero, nil, &PlanError{Field: string(in.Flow) + "_strategy", Reason: "amount must not be negative"}
		}
		monthly, err := NormalizeMonthly(s.Amount, s.Frequency)
		if err != nil {
			return decimal.Zero, nil, &PlanError{Field: string(in.Flow) + "_strategy", Reason: err.Error()}
		}
		return monthly.Round(r.Places), nil, nil

	case HistoricalAverage:
		return r.historical(ctx, s, in)

	default:
		return decimal.Zero, nil, &PlanError{Field: string(in.Flow) + "_strategy", Reason: fmt.Sprintf("unknown strategy %T", strategy)}
	}
}

func (r *StrategyResolver) historical(ctx context.Context, s HistoricalAverage, in ResolveInput) (decimal.Decimal, []Warning, error) {
	if s.LookbackMonths <= 0 {
		return decimal.Zero, nil, &PlanError{Field: string(in.Flow) + "_strategy", Reason: "lookback months must be positive"}
	}
	if r.History == nil {
		return decimal.Zero, []Warning{{
			Code:    WarnUnresolvedStrategy,
			Message: fmt.Sprintf("%v: no history available for %s average, using zero", ErrUnresolvedStrategy, in.Flow),
		}}, nil
	}

	window := Lookback(in.AsOf, s.LookbackMonths)
	total := decimal.Zero
	for _, accountID := range in.Accounts {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, nil, err
		}
		totals, err := r.History.GetCreditDebitTotals(ctx, accountID, window.Start, window.End)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("history for account %s: %w", accountID, err)
		}
		for _, t := range totals {
			if t.Type == in.Flow {
				total = total.Add(t.Total.Abs())
			}
		}
	}

	return total.Div(decimal.NewFromInt(int64(s.LookbackMonths))).Round(r.Places), nil, nil
}

func (r *StrategyResolver) defaultLookback() int {
	if r.DefaultLookback > 0 {
		return r.DefaultLookback
	}
	return DefaultLookbackMonths
}
