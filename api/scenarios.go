/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built households that populate the database with accounts,
	transaction history and forecast plans. Each scenario demonstrates one
	part of the engine.

AVAILABLE SCENARIOS:

	steady-household: Historical averages, calculated balance, yearly bill
	tight-budget:     Manual figures that run out of money (needs uplift)
	holiday-window:   Flexible window spread front-loaded across months
	all-accounts:     Two accounts, whole-family scope

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create accounts
 3. Record twelve months of credit/debit history
 4. Create plans via the plan factory

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "tight-budget"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Plan dates are relative to the current month.

SEE ALSO:
  - handlers.go: Plan and account handlers
  - factory/plan.go: Plan JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/forecast/provider"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const demoFamily = "family-demo"

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-household",
		Name:        "Steady Household",
		Description: "Income and outgoings averaged from a year of history, yearly insurance bill",
	},
	{
		ID:          "tight-budget",
		Name:        "Tight Budget",
		Description: "Manual figures where outgoings exceed income; shows the required monthly uplift",
	},
	{
		ID:          "holiday-window",
		Name:        "Holiday Window",
		Description: "Summer holiday spread front-loaded across three months plus a quarterly bonus",
	},
	{
		ID:          "all-accounts",
		Name:        "All Accounts",
		Description: "Checking and savings accounts forecast together",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "steady-household":
		load = h.loadSteadyHouseholdScenario
	case "tight-budget":
		load = h.loadTightBudgetScenario
	case "holiday-window":
		load = h.loadHolidayWindowScenario
	case "all-accounts":
		load = h.loadAllAccountsScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSteadyHouseholdScenario(ctx context.Context) error {
	if err := h.createAccount(ctx, "acct-checking", "Joint Checking", "2500.00"); err != nil {
		return err
	}
	// 3200 in, 2900 out every month for a year
	if err := h.seedHistory(ctx, "acct-checking", 12, "3200.00", "2900.00"); err != nil {
		return err
	}

	start := h.thisMonth()
	return h.createPlanFromJSON(ctx, fmt.Sprintf(`{
		"id": "plan-steady",
		"family_id": %q,
		"name": "Next 12 months",
		"start_date": %q,
		"end_date": %q,
		"account_ids": ["acct-checking"],
		"starting_balance_mode": "calculated_current",
		"currency": "USD",
		"income_strategy": {"mode": "historical_average", "lookback_months": 12},
		"outgoing_strategy": {"mode": "historical_average", "lookback_months": 12},
		"items": [
			{
				"id": "item-insurance",
				"name": "Car insurance",
				"type": "expense",
				"amount": "960.00",
				"schedule": {"frequency": "yearly", "anchor_date": %q}
			},
			{
				"id": "item-tax-refund",
				"name": "Tax refund",
				"type": "income",
				"amount": "640.00",
				"fixed_date": %q
			}
		]
	}`, demoFamily, start.Start(), start.Add(11).End(), start.Add(3).DayClamped(15), start.Add(4).DayClamped(20)))
}

func (h *Handler) loadTightBudgetScenario(ctx context.Context) error {
	start := h.thisMonth()
	return h.createPlanFromJSON(ctx, fmt.Sprintf(`{
		"id": "plan-tight",
		"family_id": %q,
		"name": "Tight budget",
		"start_date": %q,
		"end_date": %q,
		"starting_balance_mode": "manual",
		"starting_balance_amount": "1000.00",
		"currency": "USD",
		"income_strategy": {"mode": "manual_recurring", "amount": "2000.00", "frequency": "monthly"},
		"outgoing_strategy": {"mode": "manual_recurring", "amount": "2100.00", "frequency": "monthly"},
		"items": [
			{
				"id": "item-gym",
				"name": "Gym membership",
				"type": "expense",
				"amount": "25.00",
				"schedule": {"frequency": "weekly", "anchor_date": %q}
			},
			{
				"id": "item-side-gig",
				"name": "Side gig (not confirmed)",
				"type": "income",
				"amount": "400.00",
				"is_included": false,
				"schedule": {"frequency": "monthly", "anchor_date": %q}
			}
		]
	}`, demoFamily, start.Start(), start.Add(11).End(), start.Start(), start.Start()))
}

func (h *Handler) loadHolidayWindowScenario(ctx context.Context) error {
	if err := h.createAccount(ctx, "acct-checking", "Joint Checking", "4000.00"); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, "acct-checking", 12, "3800.00", "3100.00"); err != nil {
		return err
	}

	start := h.thisMonth()
	return h.createPlanFromJSON(ctx, fmt.Sprintf(`{
		"id": "plan-holiday",
		"family_id": %q,
		"name": "Holiday savings",
		"start_date": %q,
		"end_date": %q,
		"account_ids": ["acct-checking"],
		"starting_balance_mode": "calculated_current",
		"currency": "USD",
		"items": [
			{
				"id": "item-holiday",
				"name": "Summer holiday",
				"type": "expense",
				"amount": "2400.00",
				"window": {"start_date": %q, "end_date": %q, "allocation_mode": "front_loaded"}
			},
			{
				"id": "item-bonus",
				"name": "Quarterly bonus",
				"type": "income",
				"amount": "750.00",
				"schedule": {"frequency": "monthly", "interval": 3, "anchor_date": %q, "day_of_month": 31}
			}
		]
	}`, demoFamily, start.Start(), start.Add(8).End(),
		start.Add(2).Start(), start.Add(4).End(), start.Add(1).Start()))
}

func (h *Handler) loadAllAccountsScenario(ctx context.Context) error {
	if err := h.createAccount(ctx, "acct-checking", "Joint Checking", "1800.00"); err != nil {
		return err
	}
	if err := h.createAccount(ctx, "acct-savings", "Rainy Day Savings", "6000.00"); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, "acct-checking", 12, "3500.00", "3300.00"); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, "acct-savings", 12, "200.00", "0"); err != nil {
		return err
	}

	start := h.thisMonth()
	return h.createPlanFromJSON(ctx, fmt.Sprintf(`{
		"id": "plan-family",
		"family_id": %q,
		"name": "Whole family",
		"start_date": %q,
		"end_date": %q,
		"all_accounts": true,
		"starting_balance_mode": "calculated_current",
		"currency": "USD",
		"income_strategy": {"mode": "historical_average", "lookback_months": 6},
		"outgoing_strategy": {"mode": "historical_average", "lookback_months": 12},
		"items": [
			{
				"id": "item-roof",
				"name": "Roof repair",
				"type": "expense",
				"amount": "7500.00",
				"fixed_date": %q
			}
		]
	}`, demoFamily, start.Start(), start.Add(11).End(), start.Add(5).DayClamped(10)))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) thisMonth() forecast.Month {
	return forecast.MonthOf(forecast.DateOf(h.now()))
}

func (h *Handler) createAccount(ctx context.Context, id, name, opening string) error {
	return h.Store.SaveAccount(ctx, provider.Account{
		ID:             forecast.AccountID(id),
		FamilyID:       demoFamily,
		Name:           name,
		Currency:       "USD",
		OpeningBalance: decimal.RequireFromString(opening),
	})
}

// seedHistory records one credit on the 1st and one debit on the 5th of each
// of the last n full months. A zero amount records nothing.
func (h *Handler) seedHistory(ctx context.Context, accountID string, months int, credit, debit string) error {
	creditAmount := decimal.RequireFromString(credit)
	debitAmount := decimal.RequireFromString(debit)
	current := h.thisMonth()

	var txs []provider.Transaction
	for i := 1; i <= months; i++ {
		m := current.Add(-i)
		if creditAmount.IsPositive() {
			txs = append(txs, provider.Transaction{
				ID:             fmt.Sprintf("tx-%s-%s-in", accountID, m),
				AccountID:      forecast.AccountID(accountID),
				Date:           m.DayClamped(1),
				Type:           forecast.TxCredit,
				Amount:         creditAmount,
				Description:    "Salary",
				IdempotencyKey: fmt.Sprintf("scenario-%s-%s-credit", accountID, m),
			})
		}
		if debitAmount.IsPositive() {
			txs = append(txs, provider.Transaction{
				ID:             fmt.Sprintf("tx-%s-%s-out", accountID, m),
				AccountID:      forecast.AccountID(accountID),
				Date:           m.DayClamped(5),
				Type:           forecast.TxDebit,
				Amount:         debitAmount,
				Description:    "Household spending",
				IdempotencyKey: fmt.Sprintf("scenario-%s-%s-debit", accountID, m),
			})
		}
	}
	if len(txs) == 0 {
		return nil
	}
	return h.Store.RecordTransactions(ctx, txs...)
}

func (h *Handler) createPlanFromJSON(ctx context.Context, jsonStr string) error {
	plan, err := h.PlanFactory.ParsePlan([]byte(jsonStr))
	if err != nil {
		return err
	}
	if err := forecast.Validate(*plan); err != nil {
		return err
	}
	if err := h.Engine.PrepareNewPlan(ctx, plan); err != nil {
		return err
	}
	return h.Store.SavePlan(ctx, *plan)
}
