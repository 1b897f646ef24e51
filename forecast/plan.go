/*
plan.go - Plan snapshot consumed by the engine

PURPOSE:
  Defines the read-only input of a forecast: the plan, its strategies and
  its planned items. Persistence and wire formats live elsewhere (factory,
  store); these types only model the domain.

SUM TYPES:
  DateMode:  FixedDate | Schedule | FlexibleWindow
  Strategy:  ManualRecurring | HistoricalAverage

  Both are sealed interfaces: only the variants in this package implement
  them, and a PlannedItem holds a single DateMode value, so two date modes
  can never be populated at once.

SEE ALSO:
  - schedule.go: Schedule occurrence rules
  - window.go: FlexibleWindow allocation
  - strategy.go: Strategy resolution
  - factory/plan.go: JSON encoding at the persistence boundary
*/
package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PLAN
// =============================================================================

// ForecastPlan is a named projection scenario. It owns its planned items.
type ForecastPlan struct {
	ID       PlanID
	FamilyID FamilyID
	Name     string

	// Inclusive horizon; EndDate >= StartDate.
	StartDate Date
	EndDate   Date

	Scope AccountScope

	StartingBalanceMode   StartingBalanceMode
	StartingBalanceAmount *decimal.Decimal

	Currency string

	IncomeStrategy   Strategy
	OutgoingStrategy Strategy

	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Insertion order is preserved and is the order contributions appear in.
	Items []PlannedItem
}

// Horizon returns the plan's inclusive date range.
func (p ForecastPlan) Horizon() DateRange {
	return DateRange{Start: p.StartDate, End: p.EndDate}
}

// ResolvedAt is "today" for history lookups: the last time the plan was
// resolved, falling back to its creation time.
func (p ForecastPlan) ResolvedAt() time.Time {
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.CreatedAt
}

// Item returns the planned item with the given ID.
func (p ForecastPlan) Item(id ItemID) (PlannedItem, bool) {
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return PlannedItem{}, false
}

// AccountScope is either every account of the family or an explicit set.
type AccountScope struct {
	AllAccounts bool
	AccountIDs  []AccountID
}

// =============================================================================
// PLANNED ITEM
// =============================================================================

// PlannedItem is a one-off, recurring, or windowed adjustment on top of the
// baseline.
type PlannedItem struct {
	ID     ItemID
	PlanID PlanID
	Name   string
	Type   ItemType

	// Non-negative magnitude; Type supplies the sign.
	Amount decimal.Decimal

	// Excluded items are kept for record but never contribute.
	IsIncluded bool

	DateMode DateMode
}

// DateMode is one of FixedDate, Schedule or FlexibleWindow.
type DateMode interface {
	dateMode()
}

// FixedDate contributes the full amount once, in the month containing Date.
type FixedDate struct {
	Date Date
}

// Schedule contributes once per occurrence.
type Schedule struct {
	Frequency  Frequency
	AnchorDate Date
	Interval   int

	// Monthly only; defaults to AnchorDate's day.
	DayOfMonth *int

	// Optional; occurrences after EndDate are ignored.
	EndDate *Date
}

// FlexibleWindow spreads the amount over every month [StartDate, EndDate]
// overlaps.
type FlexibleWindow struct {
	StartDate      Date
	EndDate        Date
	AllocationMode AllocationMode
}

func (FixedDate) dateMode()      {}
func (Schedule) dateMode()       {}
func (FlexibleWindow) dateMode() {}

func (w FlexibleWindow) Range() DateRange {
	return DateRange{Start: w.StartDate, End: w.EndDate}
}

// =============================================================================
// STRATEGY
// =============================================================================

// Strategy describes how a baseline monthly figure is obtained.
type Strategy interface {
	strategy()
}

// ManualRecurring is a fixed amount recurring at Frequency.
type ManualRecurring struct {
	Amount    decimal.Decimal
	Frequency Frequency
}

// HistoricalAverage averages the trailing LookbackMonths of history.
type HistoricalAverage struct {
	LookbackMonths int
}

func (ManualRecurring) strategy()   {}
func (HistoricalAverage) strategy() {}

// DefaultLookbackMonths is used when a plan is created without strategies.
const DefaultLookbackMonths = 12
