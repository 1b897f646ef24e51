/*
engine.go - Forecast orchestration

PURPOSE:
  Calculate(plan) drives the whole projection:

  1. Validate the plan (date range, items, strategies, starting balance).
     Every hard error surfaces here, before any collaborator is called.
  2. Resolve the account scope, baseline income, baseline outgoings and
     starting balance. These are the only collaborator calls and each is
     preceded by a context check.
  3. Pre-allocate flexible windows.
  4. Fold the Month Projector over every month from StartDate's month to
     EndDate's month, threading closing balance into the next opening.
  5. Summarize.

PURITY:
  Steps 3-5 are pure. The same plan snapshot and collaborator responses
  always produce an identical result. The plan is never modified.

EXAMPLE:
  engine := forecast.NewEngine(history, balances, accounts)
  result, err := engine.Calculate(ctx, plan)
  if errors.Is(err, forecast.ErrInvalidPlan) { ... }
*/
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes forecasts. It holds no per-call state and may be shared
// across goroutines.
type Engine struct {
	History  HistoricalAggregates
	Balances AccountBalances
	Accounts AccountLister

	Uplift UpliftPolicy

	// DefaultLookback replaces missing strategies. Zero means
	// DefaultLookbackMonths.
	DefaultLookback int

	// Logger receives debug-level warning records. Nil disables logging.
	Logger logrus.FieldLogger

	// Now supplies "today" for plans without timestamps.
	Now func() time.Time
}

// NewEngine creates an engine over the given collaborators. Any of them may
// be nil when the plans it serves do not need them.
func NewEngine(history HistoricalAggregates, balances AccountBalances, accounts AccountLister) *Engine {
	return &Engine{
		History:  history,
		Balances: balances,
		Accounts: accounts,
		Now:      time.Now,
	}
}

// ResolvedInputs are the collaborator-derived constants of one run.
type ResolvedInputs struct {
	AsOf             Date
	Accounts         []AccountID
	StartingBalance  decimal.Decimal
	MonthlyIncome    decimal.Decimal
	MonthlyOutgoings decimal.Decimal
}

// ForecastResult is the transient output of Calculate. It is never persisted
// by the engine.
type ForecastResult struct {
	PlanID   PlanID
	Currency string
	Months   []ForecastMonth
	Summary  ForecastSummary
	Inputs   ResolvedInputs
	Warnings []Warning
}

// Calculate projects plan month by month.
func (e *Engine) Calculate(ctx context.Context, plan ForecastPlan) (*ForecastResult, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}
	if plan.StartingBalanceMode == StartingBalanceCalculated && e.Balances == nil {
		return nil, fmt.Errorf("%w: plan %s needs account balances but none are available",
			ErrMissingStartingBalance, plan.ID)
	}

	places := MinorUnitPlaces(plan.Currency)
	inputs, warnings, err := e.resolve(ctx, plan, places)
	if err != nil {
		return nil, err
	}

	allocations := make(map[ItemID]Allocation)
	for _, item := range plan.Items {
		w, ok := item.DateMode.(FlexibleWindow)
		if !item.IsIncluded || !ok {
			continue
		}
		alloc, err := AllocateAcrossMonths(w, item.Amount, places)
		if err != nil {
			return nil, withItem(err, item.ID)
		}
		for _, warn := range alloc.Warnings {
			warn.ItemID = item.ID
			warnings = append(warnings, warn)
		}
		allocations[item.ID] = alloc
	}

	p := &projection{
		months:      plan.Horizon().Months(),
		inputs:      inputs,
		items:       plan.Items,
		allocations: allocations,
		projector:   MonthProjector{Places: places},
	}

	months, err := p.run(decimal.Zero)
	if err != nil {
		return nil, err
	}

	summary, err := Summarize(SummaryInput{
		Months:                   months,
		MonthlyBaselineOutgoings: inputs.MonthlyOutgoings,
		Places:                   places,
		Policy:                   e.Uplift,
		Rerun:                    p.run,
	})
	if err != nil {
		return nil, err
	}

	result := &ForecastResult{
		PlanID:   plan.ID,
		Currency: plan.Currency,
		Months:   months,
		Summary:  summary,
		Inputs:   inputs,
		Warnings: warnings,
	}
	e.logWarnings(plan, result)
	return result, nil
}

// resolve performs every collaborator call of a run.
func (e *Engine) resolve(ctx context.Context, plan ForecastPlan, places int32) (ResolvedInputs, []Warning, error) {
	in := ResolvedInputs{AsOf: e.asOf(plan)}

	accounts, warnings, err := e.scope(ctx, plan)
	if err != nil {
		return ResolvedInputs{}, nil, err
	}
	in.Accounts = accounts

	strategies := &StrategyResolver{History: e.History, Places: places, DefaultLookback: e.DefaultLookback}

	income, w, err := strategies.ResolveMonthly(ctx, ResolveInput{
		Strategy: plan.IncomeStrategy, Flow: TxCredit, Accounts: accounts, AsOf: in.AsOf,
	})
	if err != nil {
		return ResolvedInputs{}, nil, fmt.Errorf("resolve income: %w", err)
	}
	warnings = append(warnings, w...)
	in.MonthlyIncome = income

	outgoings, w, err := strategies.ResolveMonthly(ctx, ResolveInput{
		Strategy: plan.OutgoingStrategy, Flow: TxDebit, Accounts: accounts, AsOf: in.AsOf,
	})
	if err != nil {
		return ResolvedInputs{}, nil, fmt.Errorf("resolve outgoings: %w", err)
	}
	warnings = append(warnings, w...)
	in.MonthlyOutgoings = outgoings

	balances := &StartingBalanceResolver{Balances: e.Balances}
	start, w, err := balances.ResolveStartingBalance(ctx, plan, accounts)
	if err != nil {
		return ResolvedInputs{}, nil, fmt.Errorf("resolve starting balance: %w", err)
	}
	warnings = append(warnings, w...)
	in.StartingBalance = start

	return in, warnings, nil
}

// scope lists the in-scope accounts. The lister is only consulted when some
// resolver actually needs accounts.
func (e *Engine) scope(ctx context.Context, plan ForecastPlan) ([]AccountID, []Warning, error) {
	if !needsAccounts(plan) {
		return nil, nil, nil
	}
	if !plan.Scope.AllAccounts {
		return dedupe(plan.Scope.AccountIDs), nil, nil
	}
	if e.Accounts == nil {
		return nil, []Warning{{
			Code:    WarnAccountSkipped,
			Message: "plan covers all accounts but no account directory is available",
		}}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ids, err := e.Accounts.ListAccountIDs(ctx, plan.FamilyID)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts for family %s: %w", plan.FamilyID, err)
	}
	return dedupe(ids), nil, nil
}

func (e *Engine) asOf(plan ForecastPlan) Date {
	if t := plan.ResolvedAt(); !t.IsZero() {
		return DateOf(t.UTC())
	}
	return DateOf(e.now().UTC())
}

func (e *Engine) lookback() int {
	if e.DefaultLookback > 0 {
		return e.DefaultLookback
	}
	return DefaultLookbackMonths
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logWarnings(plan ForecastPlan, result *ForecastResult) {
	if e.Logger == nil {
		return
	}
	for _, w := range result.Warnings {
		e.Logger.WithFields(logrus.Fields{
			"plan_id": plan.ID,
			"item_id": w.ItemID,
			"code":    w.Code,
		}).Debug(w.Message)
	}
	if !result.Summary.UpliftVerified {
		e.Logger.WithFields(logrus.Fields{
			"plan_id":  plan.ID,
			"uplift":   result.Summary.RequiredMonthlyUplift.String(),
			"attempts": result.Summary.UpliftAttempts,
		}).Warn("required uplift could not be verified")
	}
}

func needsAccounts(plan ForecastPlan) bool {
	if plan.StartingBalanceMode == StartingBalanceCalculated {
		return true
	}
	for _, s := range []Strategy{plan.IncomeStrategy, plan.OutgoingStrategy} {
		if _, manual := s.(ManualRecurring); !manual {
			return true
		}
	}
	return false
}

func dedupe(ids []AccountID) []AccountID {
	seen := make(map[AccountID]bool, len(ids))
	out := make([]AccountID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// =============================================================================
// PROJECTION - The pure fold
// =============================================================================

type projection struct {
	months      []Month
	inputs      ResolvedInputs
	items       []PlannedItem
	allocations map[ItemID]Allocation
	projector   MonthProjector
}

// run folds the projector over the horizon with uplift added to income.
func (p *projection) run(uplift decimal.Decimal) ([]ForecastMonth, error) {
	out := make([]ForecastMonth, 0, len(p.months))
	opening := p.inputs.StartingBalance
	income := p.inputs.MonthlyIncome.Add(uplift)

	for _, m := range p.months {
		fm, err := p.projector.Project(MonthInput{
			Month:            m,
			OpeningBalance:   opening,
			MonthlyIncome:    income,
			MonthlyOutgoings: p.inputs.MonthlyOutgoings,
			Items:            p.items,
			Allocations:      p.allocations,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, fm)
		opening = fm.ClosingBalance
	}
	return out, nil
}
