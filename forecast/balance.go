package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STARTING BALANCE RESOLVER
// =============================================================================

// StartingBalanceResolver turns a plan's starting-balance mode into the
// opening amount of the first projected month.
//
//   - manual:             the stored amount; missing -> ErrMissingStartingBalance
//   - calculated_current: sum of current balances of the in-scope accounts;
//     accounts the collaborator reports as not found are skipped
type StartingBalanceResolver struct {
	Balances AccountBalances
}

// ResolveStartingBalance resolves the opening amount for plan given its
// already-resolved account scope.
func (r *StartingBalanceResolver) ResolveStartingBalance(ctx context.Context, plan ForecastPlan, accounts []AccountID) (decimal.Decimal, []Warning, error) {
	switch plan.StartingBalanceMode {
	case StartingBalanceManual, "":
		if plan.StartingBalanceAmount == nil {
			return decimal.Zero, nil, fmt.Errorf("%w: plan %s uses a manual starting balance without an amount",
				ErrMissingStartingBalance, plan.ID)
		}
		return *plan.StartingBalanceAmount, nil, nil

	case StartingBalanceCalculated:
		if r.Balances == nil {
			return decimal.Zero, nil, fmt.Errorf("%w: plan %s needs account balances but none are available",
				ErrMissingStartingBalance, plan.ID)
		}
		return r.sumBalances(ctx, accounts)

	default:
		return decimal.Zero, nil, &PlanError{PlanID: plan.ID, Field: "starting_balance_mode",
			Reason: fmt.Sprintf("unknown mode %q", plan.StartingBalanceMode)}
	}
}

func (r *StartingBalanceResolver) sumBalances(ctx context.Context, accounts []AccountID) (decimal.Decimal, []Warning, error) {
	var (
		total    = decimal.Zero
		warnings []Warning
	)
	for _, id := range accounts {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, nil, err
		}
		bal, err := r.Balances.GetCurrentBalance(ctx, id)
		if errors.Is(err, ErrAccountNotFound) {
			warnings = append(warnings, Warning{
				Code:    WarnAccountSkipped,
				Message: fmt.Sprintf("account %s could not be resolved and was skipped", id),
			})
			continue
		}
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("balance for account %s: %w", id, err)
		}
		total = total.Add(bal)
	}
	return total, warnings, nil
}
