/*
projector.go - One calendar month of projection

PURPOSE:
  Advances the balance by one month. Combines the opening balance, the
  constant baseline income/outgoings and every included planned item's
  contribution for that month into a closing balance.

CONTRIBUTIONS:
  FixedDate:       full signed amount if the date falls in the month
  Schedule:        occurrence count x signed amount
  FlexibleWindow:  the month's pre-allocated share, signed

CONSERVATION:
  closing = opening + income - baselineOutgoings + plannedItemsTotal

  plannedItemsTotal is signed (income items positive, expense items
  negative). PlannedIncomeTotal and PlannedExpenseTotal carry the same
  contributions split by sign as magnitudes, for the summary totals.

SEE ALSO:
  - engine.go: drives Project across the plan horizon
  - schedule.go, window.go: per-item rules
*/
package forecast

import "github.com/shopspring/decimal"

// ForecastMonth is one row of output.
type ForecastMonth struct {
	MonthStart Date

	OpeningBalance         decimal.Decimal
	IncomeTotal            decimal.Decimal
	BaselineOutgoingsTotal decimal.Decimal
	PlannedItemsTotal      decimal.Decimal
	ClosingBalance         decimal.Decimal

	// Magnitudes of positive and negative planned contributions.
	PlannedIncomeTotal  decimal.Decimal
	PlannedExpenseTotal decimal.Decimal

	Contributions []ItemContribution
}

// Month returns the calendar month of the row.
func (fm ForecastMonth) Month() Month { return MonthOf(fm.MonthStart) }

// ItemContribution is one planned item's signed effect on one month.
type ItemContribution struct {
	ItemID      ItemID
	Name        string
	Occurrences int
	Amount      decimal.Decimal
}

// MonthInput contains all inputs for projecting one month.
type MonthInput struct {
	Month            Month
	OpeningBalance   decimal.Decimal
	MonthlyIncome    decimal.Decimal
	MonthlyOutgoings decimal.Decimal
	Items            []PlannedItem

	// Pre-computed window splits keyed by item. Windows missing from the
	// map are allocated on the fly.
	Allocations map[ItemID]Allocation
}

// MonthProjector computes ForecastMonth rows.
type MonthProjector struct {
	// Places is the minor-unit precision used for on-the-fly allocations.
	Places int32
}

// Project computes one month. Excluded items are ignored.
func (mp MonthProjector) Project(in MonthInput) (ForecastMonth, error) {
	fm := ForecastMonth{
		MonthStart:             in.Month.Start(),
		OpeningBalance:         in.OpeningBalance,
		IncomeTotal:            in.MonthlyIncome,
		BaselineOutgoingsTotal: in.MonthlyOutgoings,
		PlannedItemsTotal:      decimal.Zero,
		PlannedIncomeTotal:     decimal.Zero,
		PlannedExpenseTotal:    decimal.Zero,
	}

	for _, item := range in.Items {
		if !item.IsIncluded {
			continue
		}
		amount, occurrences, err := mp.contribution(item, in)
		if err != nil {
			return ForecastMonth{}, err
		}
		if occurrences == 0 || amount.IsZero() {
			continue
		}

		signed := item.Type.Signed(amount)
		fm.Contributions = append(fm.Contributions, ItemContribution{
			ItemID:      item.ID,
			Name:        item.Name,
			Occurrences: occurrences,
			Amount:      signed,
		})
		fm.PlannedItemsTotal = fm.PlannedItemsTotal.Add(signed)
		if signed.IsNegative() {
			fm.PlannedExpenseTotal = fm.PlannedExpenseTotal.Add(amount)
		} else {
			fm.PlannedIncomeTotal = fm.PlannedIncomeTotal.Add(amount)
		}
	}

	fm.ClosingBalance = fm.OpeningBalance.
		Add(fm.IncomeTotal).
		Sub(fm.BaselineOutgoingsTotal).
		Add(fm.PlannedItemsTotal)
	return fm, nil
}

// contribution returns the unsigned amount an item adds to the month and
// how many occurrences produced it.
func (mp MonthProjector) contribution(item PlannedItem, in MonthInput) (decimal.Decimal, int, error) {
	switch mode := item.DateMode.(type) {
	case FixedDate:
		if in.Month.Contains(mode.Date) {
			return item.Amount, 1, nil
		}
		return decimal.Zero, 0, nil

	case Schedule:
		n, err := mode.OccurrenceCountIn(in.Month)
		if err != nil {
			return decimal.Zero, 0, withItem(err, item.ID)
		}
		return item.Amount.Mul(decimal.NewFromInt(int64(n))), n, nil

	case FlexibleWindow:
		alloc, ok := in.Allocations[item.ID]
		if !ok {
			var err error
			alloc, err = AllocateAcrossMonths(mode, item.Amount, mp.Places)
			if err != nil {
				return decimal.Zero, 0, withItem(err, item.ID)
			}
		}
		share := alloc.For(in.Month)
		if share.IsZero() {
			return decimal.Zero, 0, nil
		}
		return share, 1, nil

	default:
		return decimal.Zero, 0, &PlanError{PlanID: item.PlanID, ItemID: item.ID, Field: "date_mode", Reason: "date mode is required"}
	}
}

// withItem attaches an item ID to structured errors that lack one.
func withItem(err error, id ItemID) error {
	switch e := err.(type) {
	case *ScheduleError:
		e.ItemID = id
	case *PlanError:
		e.ItemID = id
	}
	return err
}
