/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Plans travel as
  factory.PlanJSON documents (the same encoding the store uses); forecast
  output and accounts have their own response types here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every amount is a decimal.Decimal, which marshals as a quoted string
  ("1234.50"). Clients never see a float.

TYPES:
  Forecast:
    ForecastDTO, ForecastMonthDTO, ContributionDTO, SummaryDTO, WarningDTO

  Accounts:
    AccountDTO, CreateAccountRequest, TransactionDTO, RecordTransactionsRequest

  Risk:
    RiskDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON, ItemJSON
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/forecast/provider"
)

// =============================================================================
// FORECAST
// =============================================================================

// ForecastDTO is the response of a forecast calculation.
type ForecastDTO struct {
	PlanID           string             `json:"plan_id"`
	Currency         string             `json:"currency,omitempty"`
	AsOf             string             `json:"as_of"`
	StartingBalance  decimal.Decimal    `json:"starting_balance"`
	MonthlyIncome    decimal.Decimal    `json:"monthly_income"`
	MonthlyOutgoings decimal.Decimal    `json:"monthly_outgoings"`
	Months           []ForecastMonthDTO `json:"months"`
	Summary          SummaryDTO         `json:"summary"`
	Warnings         []WarningDTO       `json:"warnings"`
}

// ForecastMonthDTO is one projected month.
type ForecastMonthDTO struct {
	MonthStart             string            `json:"month_start"`
	OpeningBalance         decimal.Decimal   `json:"opening_balance"`
	IncomeTotal            decimal.Decimal   `json:"income_total"`
	BaselineOutgoingsTotal decimal.Decimal   `json:"baseline_outgoings_total"`
	PlannedItemsTotal      decimal.Decimal   `json:"planned_items_total"`
	PlannedIncomeTotal     decimal.Decimal   `json:"planned_income_total"`
	PlannedExpenseTotal    decimal.Decimal   `json:"planned_expense_total"`
	ClosingBalance         decimal.Decimal   `json:"closing_balance"`
	Contributions          []ContributionDTO `json:"contributions,omitempty"`
}

// ContributionDTO is one planned item's signed effect on a month.
type ContributionDTO struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Occurrences int             `json:"occurrences"`
	Amount      decimal.Decimal `json:"amount"`
}

// SummaryDTO carries the risk statistics of a forecast.
type SummaryDTO struct {
	LowestBalance            decimal.Decimal `json:"lowest_balance"`
	LowestBalanceMonth       string          `json:"lowest_balance_month"`
	RequiredMonthlyUplift    decimal.Decimal `json:"required_monthly_uplift"`
	MonthsBelowZero          int             `json:"months_below_zero"`
	TotalIncome              decimal.Decimal `json:"total_income"`
	TotalOutgoings           decimal.Decimal `json:"total_outgoings"`
	MonthlyBaselineOutgoings decimal.Decimal `json:"monthly_baseline_outgoings"`
	UpliftVerified           bool            `json:"uplift_verified"`
}

// WarningDTO is a non-fatal condition recorded during calculation.
type WarningDTO struct {
	Code    string `json:"code"`
	ItemID  string `json:"item_id,omitempty"`
	Message string `json:"message"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents a bank account with its current balance.
type AccountDTO struct {
	ID             string           `json:"id"`
	FamilyID       string           `json:"family_id"`
	Name           string           `json:"name"`
	Currency       string           `json:"currency"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	ID             string          `json:"id,omitempty"`
	FamilyID       string          `json:"family_id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// TransactionDTO is one dated credit or debit.
type TransactionDTO struct {
	ID             string          `json:"id,omitempty"`
	Date           forecast.Date   `json:"date"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// RecordTransactionsRequest appends transactions to one account.
type RecordTransactionsRequest struct {
	Transactions []TransactionDTO `json:"transactions"`
}

// =============================================================================
// RISK
// =============================================================================

// RiskDTO describes a plan whose forecast dips below zero.
type RiskDTO struct {
	PlanID                string          `json:"plan_id"`
	PlanName              string          `json:"plan_name"`
	FamilyID              string          `json:"family_id"`
	MonthsBelowZero       int             `json:"months_below_zero"`
	LowestBalance         decimal.Decimal `json:"lowest_balance"`
	LowestBalanceMonth    string          `json:"lowest_balance_month"`
	RequiredMonthlyUplift decimal.Decimal `json:"required_monthly_uplift"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// NewForecastDTO converts an engine result into its response form.
func NewForecastDTO(r *forecast.ForecastResult) ForecastDTO {
	dto := ForecastDTO{
		PlanID:           string(r.PlanID),
		Currency:         r.Currency,
		AsOf:             r.Inputs.AsOf.String(),
		StartingBalance:  r.Inputs.StartingBalance,
		MonthlyIncome:    r.Inputs.MonthlyIncome,
		MonthlyOutgoings: r.Inputs.MonthlyOutgoings,
		Months:           make([]ForecastMonthDTO, len(r.Months)),
		Summary:          toSummaryDTO(r.Summary),
		Warnings:         make([]WarningDTO, len(r.Warnings)),
	}
	for i, m := range r.Months {
		md := ForecastMonthDTO{
			MonthStart:             m.MonthStart.String(),
			OpeningBalance:         m.OpeningBalance,
			IncomeTotal:            m.IncomeTotal,
			BaselineOutgoingsTotal: m.BaselineOutgoingsTotal,
			PlannedItemsTotal:      m.PlannedItemsTotal,
			PlannedIncomeTotal:     m.PlannedIncomeTotal,
			PlannedExpenseTotal:    m.PlannedExpenseTotal,
			ClosingBalance:         m.ClosingBalance,
		}
		for _, c := range m.Contributions {
			md.Contributions = append(md.Contributions, ContributionDTO{
				ItemID:      string(c.ItemID),
				Name:        c.Name,
				Occurrences: c.Occurrences,
				Amount:      c.Amount,
			})
		}
		dto.Months[i] = md
	}
	for i, w := range r.Warnings {
		dto.Warnings[i] = WarningDTO{Code: string(w.Code), ItemID: string(w.ItemID), Message: w.Message}
	}
	return dto
}

func toSummaryDTO(s forecast.ForecastSummary) SummaryDTO {
	dto := SummaryDTO{
		LowestBalance:            s.LowestBalance,
		RequiredMonthlyUplift:    s.RequiredMonthlyUplift,
		MonthsBelowZero:          s.MonthsBelowZero,
		TotalIncome:              s.TotalIncome,
		TotalOutgoings:           s.TotalOutgoings,
		MonthlyBaselineOutgoings: s.MonthlyBaselineOutgoings,
		UpliftVerified:           s.UpliftVerified,
	}
	if !s.LowestBalanceMonth.IsZero() {
		dto.LowestBalanceMonth = s.LowestBalanceMonth.String()
	}
	return dto
}

func toAccountDTO(a provider.Account) AccountDTO {
	return AccountDTO{
		ID:             string(a.ID),
		FamilyID:       string(a.FamilyID),
		Name:           a.Name,
		Currency:       a.Currency,
		OpeningBalance: a.OpeningBalance,
	}
}

func toTransactionDTOs(txs []provider.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = TransactionDTO{
			ID:             tx.ID,
			Date:           tx.Date,
			Type:           string(tx.Type),
			Amount:         tx.Amount,
			Description:    tx.Description,
			IdempotencyKey: tx.IdempotencyKey,
		}
	}
	return dtos
}
