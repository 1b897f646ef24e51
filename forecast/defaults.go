package forecast

import (
	"context"
	"fmt"
)

// PrepareNewPlan fills in the defaults a freshly created plan gets before it
// is first stored:
//
//   - no outgoing strategy: HistoricalAverage over the default lookback
//   - no income strategy: the credit average over the default lookback,
//     frozen as a monthly ManualRecurring so later history does not move it
//   - CreatedAt and UpdatedAt stamped from the engine clock when unset
//
// Plans that already carry both strategies are only stamped.
func (e *Engine) PrepareNewPlan(ctx context.Context, plan *ForecastPlan) error {
	if plan == nil {
		return fmt.Errorf("%w: nil plan", ErrInvalidPlan)
	}

	now := e.now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	if plan.UpdatedAt.IsZero() {
		plan.UpdatedAt = plan.CreatedAt
	}

	if plan.OutgoingStrategy == nil {
		plan.OutgoingStrategy = HistoricalAverage{LookbackMonths: e.lookback()}
	}
	if plan.IncomeStrategy != nil {
		return nil
	}

	accounts, warnings, err := e.scope(ctx, ForecastPlan{
		FamilyID: plan.FamilyID,
		Scope:    plan.Scope,
		// Forces scope resolution; income is derived from history.
		IncomeStrategy: HistoricalAverage{LookbackMonths: e.lookback()},
	})
	if err != nil {
		return fmt.Errorf("derive income for plan %s: %w", plan.ID, err)
	}

	resolver := &StrategyResolver{History: e.History, Places: MinorUnitPlaces(plan.Currency)}
	income, w, err := resolver.ResolveMonthly(ctx, ResolveInput{
		Strategy: HistoricalAverage{LookbackMonths: e.lookback()},
		Flow:     TxCredit,
		Accounts: accounts,
		AsOf:     DateOf(plan.CreatedAt.UTC()),
	})
	if err != nil {
		return fmt.Errorf("derive income for plan %s: %w", plan.ID, err)
	}
	warnings = append(warnings, w...)

	if e.Logger != nil {
		for _, warn := range warnings {
			e.Logger.WithField("plan_id", plan.ID).WithField("code", warn.Code).Debug(warn.Message)
		}
	}

	plan.IncomeStrategy = ManualRecurring{Amount: income, Frequency: FrequencyMonthly}
	return nil
}
