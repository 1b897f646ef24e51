/*
window.go - Flexible window allocation

PURPOSE:
  Distributes a planned item's amount across the months a flexible window
  overlaps. A month counts as overlapped if the window touches it at all,
  partial edge months included.

EXACTNESS:
  Every share except the last is truncated to the currency's minor unit.
  The last overlapped month receives amount minus the sum of the others,
  so shares always add back to the item amount exactly.

    300 over Jan..Mar, even  -> 100.00 / 100.00 / 100.00
    100 over Jan..Mar, even  ->  33.33 /  33.33 /  33.34

MODES:
  even          equal weights
  front_loaded  weights n, n-1, ..., 1
  back_loaded   weights 1, 2, ..., n
  anything else falls back to even and records a warning
*/
package forecast

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MonthShare is the part of a window amount assigned to one month.
type MonthShare struct {
	Month  Month
	Amount decimal.Decimal
}

// Allocation is the per-month split of one flexible window.
type Allocation struct {
	Shares   []MonthShare
	Warnings []Warning
}

// For returns the share assigned to m (zero when the window misses m).
func (a Allocation) For(m Month) decimal.Decimal {
	for _, s := range a.Shares {
		if s.Month.Equal(m) {
			return s.Amount
		}
	}
	return decimal.Zero
}

// Total sums all shares.
func (a Allocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range a.Shares {
		total = total.Add(s.Amount)
	}
	return total
}

// AllocateAcrossMonths splits amount across the months w overlaps. places is
// the currency's minor-unit precision (see MinorUnitPlaces).
func AllocateAcrossMonths(w FlexibleWindow, amount decimal.Decimal, places int32) (Allocation, error) {
	if w.StartDate.IsZero() || w.EndDate.IsZero() {
		return Allocation{}, &PlanError{Field: "window", Reason: "start and end dates are required"}
	}
	if !w.Range().Valid() {
		return Allocation{}, &PlanError{Field: "window", Reason: "end date before start date"}
	}

	months := w.Range().Months()
	n := len(months)

	var alloc Allocation
	mode := w.AllocationMode
	switch mode {
	case AllocateEvenly, AllocateFrontLoaded, AllocateBackLoaded:
	case "":
		mode = AllocateEvenly
	default:
		alloc.Warnings = append(alloc.Warnings, Warning{
			Code:    WarnUnknownAllocationMode,
			Message: fmt.Sprintf("allocation mode %q is not recognized, spreading evenly", w.AllocationMode),
		})
		mode = AllocateEvenly
	}

	weights := make([]int64, n)
	var totalWeight int64
	for i := range weights {
		switch mode {
		case AllocateFrontLoaded:
			weights[i] = int64(n - i)
		case AllocateBackLoaded:
			weights[i] = int64(i + 1)
		default:
			weights[i] = 1
		}
		totalWeight += weights[i]
	}

	alloc.Shares = make([]MonthShare, n)
	assigned := decimal.Zero
	for i, m := range months {
		var share decimal.Decimal
		if i == n-1 {
			share = amount.Sub(assigned)
		} else {
			share = amount.
				Mul(decimal.NewFromInt(weights[i])).
				Div(decimal.NewFromInt(totalWeight)).
				Truncate(places)
			assigned = assigned.Add(share)
		}
		alloc.Shares[i] = MonthShare{Month: m, Amount: share}
	}
	return alloc, nil
}
