package forecast

import (
	"fmt"
)

// =============================================================================
// VALIDATION - Every hard error, before any I/O
// =============================================================================

// Validate checks a plan snapshot for everything that would make Calculate
// fail. Only included items are checked; excluded items are kept for record
// and may be incomplete.
func Validate(plan ForecastPlan) error {
	if plan.StartDate.IsZero() || plan.EndDate.IsZero() {
		return &PlanError{PlanID: plan.ID, Field: "dates", Reason: "start and end dates are required"}
	}
	if plan.EndDate.Before(plan.StartDate) {
		return &PlanError{PlanID: plan.ID, Field: "dates",
			Reason: fmt.Sprintf("end date %s is before start date %s", plan.EndDate, plan.StartDate)}
	}

	if err := validateStrategy(plan, "income_strategy", plan.IncomeStrategy); err != nil {
		return err
	}
	if err := validateStrategy(plan, "outgoing_strategy", plan.OutgoingStrategy); err != nil {
		return err
	}

	switch plan.StartingBalanceMode {
	case StartingBalanceManual, "":
		if plan.StartingBalanceAmount == nil {
			return fmt.Errorf("%w: plan %s uses a manual starting balance without an amount",
				ErrMissingStartingBalance, plan.ID)
		}
	case StartingBalanceCalculated:
	default:
		return &PlanError{PlanID: plan.ID, Field: "starting_balance_mode",
			Reason: fmt.Sprintf("unknown mode %q", plan.StartingBalanceMode)}
	}

	for _, item := range plan.Items {
		if !item.IsIncluded {
			continue
		}
		if err := validateItem(plan.ID, item); err != nil {
			return err
		}
	}
	return nil
}

func validateStrategy(plan ForecastPlan, field string, s Strategy) error {
	switch s := s.(type) {
	case nil:
		return nil
	case ManualRecurring:
		if s.Amount.IsNegative() {
			return &PlanError{PlanID: plan.ID, Field: field, Reason: "amount must not be negative"}
		}
		if !s.Frequency.Valid() {
			return &PlanError{PlanID: plan.ID, Field: field, Reason: fmt.Sprintf("unsupported frequency %q", s.Frequency)}
		}
	case HistoricalAverage:
		if s.LookbackMonths <= 0 {
			return &PlanError{PlanID: plan.ID, Field: field, Reason: "lookback months must be positive"}
		}
	default:
		return &PlanError{PlanID: plan.ID, Field: field, Reason: fmt.Sprintf("unknown strategy %T", s)}
	}
	return nil
}

func validateItem(planID PlanID, item PlannedItem) error {
	bad := func(field, reason string) error {
		return &PlanError{PlanID: planID, ItemID: item.ID, Field: field, Reason: reason}
	}

	if !item.Type.Valid() {
		return bad("type", fmt.Sprintf("unknown item type %q", item.Type))
	}
	if item.Amount.IsNegative() {
		return bad("amount", "amount must not be negative")
	}

	switch mode := item.DateMode.(type) {
	case FixedDate:
		if mode.Date.IsZero() {
			return bad("date", "fixed date is required")
		}
	case Schedule:
		if err := mode.Validate(); err != nil {
			return withItem(err, item.ID)
		}
	case FlexibleWindow:
		if mode.StartDate.IsZero() || mode.EndDate.IsZero() {
			return bad("window", "start and end dates are required")
		}
		if !mode.Range().Valid() {
			return bad("window", "end date before start date")
		}
	case nil:
		return bad("date_mode", "exactly one date mode is required")
	default:
		return bad("date_mode", fmt.Sprintf("unknown date mode %T", mode))
	}
	return nil
}
