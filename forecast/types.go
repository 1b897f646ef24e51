/*
Package forecast provides the cash-flow forecast engine.

PURPOSE:
  Projects a household's cash position forward month by month from a
  user-defined plan. The engine is a pure function from a plan snapshot
  (plus one-time collaborator lookups) to a ForecastResult: a month series
  and summary risk statistics.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, never float64
  - Minor units: the smallest currency unit (cents, yen) used for rounding
  - Identifiers: type-safe plan/family/account/item IDs
  - Enumerations: frequencies, item types, allocation modes

DESIGN PRINCIPLES:
  1. Precision: decimal arithmetic end to end, rounded only to minor units
  2. Purity: collaborators are queried once up front, then a pure fold runs
  3. Structural sum types: a planned item holds exactly one DateMode, a
     strategy is exactly one of ManualRecurring / HistoricalAverage

USAGE:
  engine := forecast.NewEngine(history, balances, accounts)
  result, err := engine.Calculate(ctx, plan)
  fmt.Println(result.Summary.LowestBalance, result.Summary.LowestBalanceMonth)

SEE ALSO:
  - plan.go: ForecastPlan, PlannedItem, DateMode, Strategy
  - engine.go: Calculate orchestration
  - summary.go: lowest balance and required uplift
*/
package forecast

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// DefaultMinorUnitPlaces applies to any currency not listed below.
const DefaultMinorUnitPlaces int32 = 2

var minorUnitPlaces = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnitPlaces returns the number of decimal places of the smallest unit
// of the given ISO 4217 currency.
func MinorUnitPlaces(currency string) int32 {
	if p, ok := minorUnitPlaces[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return p
	}
	return DefaultMinorUnitPlaces
}

// MinorUnit returns one smallest currency unit (0.01 for USD, 1 for JPY).
func MinorUnit(currency string) decimal.Decimal {
	return decimal.New(1, -MinorUnitPlaces(currency))
}

// MustParseDecimal is for fixtures; it panics on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type FamilyID string
type AccountID string
type ItemID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Frequency is how often a schedule fires or a manual figure recurs.
type Frequency string

const (
	FrequencyDaily       Frequency = "daily"
	FrequencyWeekly      Frequency = "weekly"
	FrequencyFortnightly Frequency = "fortnightly"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyYearly      Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyFortnightly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// ItemType carries the sign of a planned item.
type ItemType string

const (
	ItemIncome  ItemType = "income"  // adds to balance
	ItemExpense ItemType = "expense" // subtracts from balance
)

// Signed applies the item type's sign to a non-negative magnitude.
func (t ItemType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == ItemExpense {
		return amount.Neg()
	}
	return amount
}

func (t ItemType) Valid() bool { return t == ItemIncome || t == ItemExpense }

// AllocationMode decides how a flexible window spreads its amount.
type AllocationMode string

const (
	AllocateEvenly      AllocationMode = "even"
	AllocateFrontLoaded AllocationMode = "front_loaded"
	AllocateBackLoaded  AllocationMode = "back_loaded"
)

// StartingBalanceMode selects where the opening balance comes from.
type StartingBalanceMode string

const (
	StartingBalanceManual     StartingBalanceMode = "manual"
	StartingBalanceCalculated StartingBalanceMode = "calculated_current"
)

// TransactionType classifies historical aggregates.
type TransactionType string

const (
	TxCredit TransactionType = "credit"
	TxDebit  TransactionType = "debit"
)
