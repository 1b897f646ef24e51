/*
Package factory converts plan documents to and from forecast.ForecastPlan.

PURPOSE:
  The engine models strategies and date modes as sealed sum types. Outside
  the engine (database rows, HTTP bodies, CLI input files) a plan is a JSON
  document. This package is the only place the two meet, so a malformed
  document is rejected here with ErrInvalidPlan before it reaches the
  engine.

JSON SCHEMA:
  {
    "id": "plan-1",
    "family_id": "fam-1",
    "name": "2024 budget",
    "start_date": "2024-01-01",
    "end_date": "2024-12-31",
    "all_accounts": false,
    "account_ids": ["acc-1"],
    "starting_balance_mode": "manual",
    "starting_balance_amount": "1000.00",
    "currency": "USD",
    "income_strategy":   {"mode": "manual_recurring", "amount": "3000", "frequency": "monthly"},
    "outgoing_strategy": {"mode": "historical_average", "lookback_months": 12},
    "items": [
      {"id": "i1", "name": "Car tax", "type": "expense", "amount": "250",
       "fixed_date": "2024-03-01"},
      {"id": "i2", "name": "Salary bump", "type": "income", "amount": "100",
       "schedule": {"frequency": "monthly", "anchor_date": "2024-02-25", "interval": 1}},
      {"id": "i3", "name": "Holiday", "type": "expense", "amount": "1200",
       "window": {"start_date": "2024-06-01", "end_date": "2024-08-31", "allocation_mode": "even"}}
    ]
  }

DATE MODES:
  An item carries exactly one of fixed_date, schedule or window. Zero or
  more than one is ErrInvalidPlan.

DEFAULTS:
  - is_included omitted:       true
  - schedule.interval omitted: 1
  - strategy omitted:          left nil (the engine resolves it at calculation)

SEE ALSO:
  - forecast/plan.go: domain types
  - store/sqlstore: persists items and strategies with these encodings
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the document form of a forecast plan.
type PlanJSON struct {
	ID                    string           `json:"id"`
	FamilyID              string           `json:"family_id"`
	Name                  string           `json:"name"`
	StartDate             forecast.Date    `json:"start_date"`
	EndDate               forecast.Date    `json:"end_date"`
	AllAccounts           bool             `json:"all_accounts,omitempty"`
	AccountIDs            []string         `json:"account_ids,omitempty"`
	StartingBalanceMode   string           `json:"starting_balance_mode,omitempty"`
	StartingBalanceAmount *decimal.Decimal `json:"starting_balance_amount,omitempty"`
	Currency              string           `json:"currency,omitempty"`
	IncomeStrategy        *StrategyJSON    `json:"income_strategy,omitempty"`
	OutgoingStrategy      *StrategyJSON    `json:"outgoing_strategy,omitempty"`
	Archived              bool             `json:"archived,omitempty"`
	CreatedAt             string           `json:"created_at,omitempty"`
	UpdatedAt             string           `json:"updated_at,omitempty"`
	Items                 []ItemJSON       `json:"items,omitempty"`
}

// StrategyJSON is a strategy tagged by mode.
type StrategyJSON struct {
	Mode           string           `json:"mode"` // manual_recurring, historical_average
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Frequency      string           `json:"frequency,omitempty"`
	LookbackMonths int              `json:"lookback_months,omitempty"`
}

// Strategy modes.
const (
	ModeManualRecurring   = "manual_recurring"
	ModeHistoricalAverage = "historical_average"
)

// ItemJSON is the document form of a planned item.
type ItemJSON struct {
	ID         string          `json:"id"`
	PlanID     string          `json:"plan_id,omitempty"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	IsIncluded *bool           `json:"is_included,omitempty"`

	FixedDate *forecast.Date `json:"fixed_date,omitempty"`
	Schedule  *ScheduleJSON  `json:"schedule,omitempty"`
	Window    *WindowJSON    `json:"window,omitempty"`
}

// ScheduleJSON is a recurring date mode.
type ScheduleJSON struct {
	Frequency  string         `json:"frequency"`
	AnchorDate forecast.Date  `json:"anchor_date"`
	Interval   *int           `json:"interval,omitempty"`
	DayOfMonth *int           `json:"day_of_month,omitempty"`
	EndDate    *forecast.Date `json:"end_date,omitempty"`
}

// WindowJSON is a flexible window date mode.
type WindowJSON struct {
	StartDate      forecast.Date `json:"start_date"`
	EndDate        forecast.Date `json:"end_date"`
	AllocationMode string        `json:"allocation_mode,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts plan documents to domain plans and back.
type PlanFactory struct{}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON document into a plan.
func (f *PlanFactory) ParsePlan(data []byte) (*forecast.ForecastPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("%w: parse plan JSON: %v", forecast.ErrInvalidPlan, err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts a document into a plan. Structural problems (unknown
// strategy mode, zero or several date modes) are ErrInvalidPlan; semantic
// checks are left to forecast.Validate.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*forecast.ForecastPlan, error) {
	planID := forecast.PlanID(pj.ID)
	plan := &forecast.ForecastPlan{
		ID:                    planID,
		FamilyID:              forecast.FamilyID(pj.FamilyID),
		Name:                  pj.Name,
		StartDate:             pj.StartDate,
		EndDate:               pj.EndDate,
		Scope:                 forecast.AccountScope{AllAccounts: pj.AllAccounts},
		StartingBalanceMode:   forecast.StartingBalanceMode(pj.StartingBalanceMode),
		StartingBalanceAmount: pj.StartingBalanceAmount,
		Currency:              pj.Currency,
		Archived:              pj.Archived,
	}
	for _, id := range pj.AccountIDs {
		plan.Scope.AccountIDs = append(plan.Scope.AccountIDs, forecast.AccountID(id))
	}

	var err error
	if plan.CreatedAt, err = parseTimestamp(pj.CreatedAt); err != nil {
		return nil, &forecast.PlanError{PlanID: planID, Field: "created_at", Reason: err.Error()}
	}
	if plan.UpdatedAt, err = parseTimestamp(pj.UpdatedAt); err != nil {
		return nil, &forecast.PlanError{PlanID: planID, Field: "updated_at", Reason: err.Error()}
	}

	if plan.IncomeStrategy, err = f.ParseStrategy(pj.IncomeStrategy); err != nil {
		return nil, &forecast.PlanError{PlanID: planID, Field: "income_strategy", Reason: err.Error()}
	}
	if plan.OutgoingStrategy, err = f.ParseStrategy(pj.OutgoingStrategy); err != nil {
		return nil, &forecast.PlanError{PlanID: planID, Field: "outgoing_strategy", Reason: err.Error()}
	}

	for _, ij := range pj.Items {
		item, err := f.ItemFromJSON(planID, ij)
		if err != nil {
			return nil, err
		}
		plan.Items = append(plan.Items, item)
	}
	return plan, nil
}

// ParseStrategy converts a tagged strategy. Nil stays nil.
func (f *PlanFactory) ParseStrategy(sj *StrategyJSON) (forecast.Strategy, error) {
	if sj == nil {
		return nil, nil
	}
	switch sj.Mode {
	case ModeManualRecurring:
		if sj.Amount == nil {
			return nil, fmt.Errorf("manual_recurring requires an amount")
		}
		freq := forecast.Frequency(sj.Frequency)
		if freq == "" {
			freq = forecast.FrequencyMonthly
		}
		return forecast.ManualRecurring{Amount: *sj.Amount, Frequency: freq}, nil
	case ModeHistoricalAverage:
		lookback := sj.LookbackMonths
		if lookback == 0 {
			lookback = forecast.DefaultLookbackMonths
		}
		return forecast.HistoricalAverage{LookbackMonths: lookback}, nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", sj.Mode)
	}
}

// ItemFromJSON converts a planned item document.
func (f *PlanFactory) ItemFromJSON(planID forecast.PlanID, ij ItemJSON) (forecast.PlannedItem, error) {
	item := forecast.PlannedItem{
		ID:         forecast.ItemID(ij.ID),
		PlanID:     planID,
		Name:       ij.Name,
		Type:       forecast.ItemType(ij.Type),
		Amount:     ij.Amount,
		IsIncluded: ij.IsIncluded == nil || *ij.IsIncluded,
	}

	set := 0
	if ij.FixedDate != nil {
		set++
		item.DateMode = forecast.FixedDate{Date: *ij.FixedDate}
	}
	if ij.Schedule != nil {
		set++
		interval := 1
		if ij.Schedule.Interval != nil {
			interval = *ij.Schedule.Interval
		}
		item.DateMode = forecast.Schedule{
			Frequency:  forecast.Frequency(ij.Schedule.Frequency),
			AnchorDate: ij.Schedule.AnchorDate,
			Interval:   interval,
			DayOfMonth: ij.Schedule.DayOfMonth,
			EndDate:    ij.Schedule.EndDate,
		}
	}
	if ij.Window != nil {
		set++
		item.DateMode = forecast.FlexibleWindow{
			StartDate:      ij.Window.StartDate,
			EndDate:        ij.Window.EndDate,
			AllocationMode: forecast.AllocationMode(ij.Window.AllocationMode),
		}
	}
	if set != 1 {
		return forecast.PlannedItem{}, &forecast.PlanError{PlanID: planID, ItemID: item.ID, Field: "date_mode",
			Reason: fmt.Sprintf("exactly one of fixed_date, schedule, window is required (got %d)", set)}
	}
	return item, nil
}

// =============================================================================
// ENCODING
// =============================================================================

// ToJSON converts a plan into its document form.
func (f *PlanFactory) ToJSON(plan forecast.ForecastPlan) PlanJSON {
	pj := PlanJSON{
		ID:                    string(plan.ID),
		FamilyID:              string(plan.FamilyID),
		Name:                  plan.Name,
		StartDate:             plan.StartDate,
		EndDate:               plan.EndDate,
		AllAccounts:           plan.Scope.AllAccounts,
		StartingBalanceMode:   string(plan.StartingBalanceMode),
		StartingBalanceAmount: plan.StartingBalanceAmount,
		Currency:              plan.Currency,
		IncomeStrategy:        f.StrategyJSON(plan.IncomeStrategy),
		OutgoingStrategy:      f.StrategyJSON(plan.OutgoingStrategy),
		Archived:              plan.Archived,
		CreatedAt:             formatTimestamp(plan.CreatedAt),
		UpdatedAt:             formatTimestamp(plan.UpdatedAt),
	}
	for _, id := range plan.Scope.AccountIDs {
		pj.AccountIDs = append(pj.AccountIDs, string(id))
	}
	for _, item := range plan.Items {
		pj.Items = append(pj.Items, f.ItemJSON(item))
	}
	return pj
}

// EncodePlan marshals a plan document.
func (f *PlanFactory) EncodePlan(plan forecast.ForecastPlan) ([]byte, error) {
	return json.Marshal(f.ToJSON(plan))
}

// StrategyJSON converts a strategy to its tagged form. Nil stays nil.
func (f *PlanFactory) StrategyJSON(s forecast.Strategy) *StrategyJSON {
	switch s := s.(type) {
	case forecast.ManualRecurring:
		amount := s.Amount
		return &StrategyJSON{Mode: ModeManualRecurring, Amount: &amount, Frequency: string(s.Frequency)}
	case forecast.HistoricalAverage:
		return &StrategyJSON{Mode: ModeHistoricalAverage, LookbackMonths: s.LookbackMonths}
	default:
		return nil
	}
}

// ItemJSON converts a planned item to its document form.
func (f *PlanFactory) ItemJSON(item forecast.PlannedItem) ItemJSON {
	included := item.IsIncluded
	ij := ItemJSON{
		ID:         string(item.ID),
		PlanID:     string(item.PlanID),
		Name:       item.Name,
		Type:       string(item.Type),
		Amount:     item.Amount,
		IsIncluded: &included,
	}
	switch mode := item.DateMode.(type) {
	case forecast.FixedDate:
		d := mode.Date
		ij.FixedDate = &d
	case forecast.Schedule:
		interval := mode.Interval
		ij.Schedule = &ScheduleJSON{
			Frequency:  string(mode.Frequency),
			AnchorDate: mode.AnchorDate,
			Interval:   &interval,
			DayOfMonth: mode.DayOfMonth,
			EndDate:    mode.EndDate,
		}
	case forecast.FlexibleWindow:
		ij.Window = &WindowJSON{
			StartDate:      mode.StartDate,
			EndDate:        mode.EndDate,
			AllocationMode: string(mode.AllocationMode),
		}
	}
	return ij
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
