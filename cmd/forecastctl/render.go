package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/api"
	"github.com/warp/cashflow-forecast/forecast"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorRed    = lipgloss.Color("#D14D41")
	colorOrange = lipgloss.Color("#DA702C")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(colorText).Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	negStyle    = numberStyle.Foreground(colorRed)
	labelStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorOrange)
)

// renderForecast draws the month table followed by the summary block.
func renderForecast(name string, r *forecast.ForecastResult) string {
	places := forecast.MinorUnitPlaces(r.Currency)
	money := func(d decimal.Decimal) string { return d.StringFixed(places) }

	rows := make([][]string, 0, len(r.Months))
	for _, m := range r.Months {
		rows = append(rows, []string{
			m.Month().String(),
			money(m.OpeningBalance),
			money(m.IncomeTotal),
			money(m.BaselineOutgoingsTotal.Neg()),
			money(m.PlannedItemsTotal),
			money(m.ClosingBalance),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("Month", "Opening", "Income", "Outgoings", "Planned", "Closing").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			case col == 5 && r.Months[row].ClosingBalance.IsNegative():
				return negStyle
			default:
				return numberStyle
			}
		})

	var b strings.Builder
	title := name
	if title == "" {
		title = string(r.PlanID)
	}
	if r.Currency != "" {
		title += "  (" + r.Currency + ")"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	s := r.Summary
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-22s", label)), value)
	}
	line("Starting balance", money(r.Inputs.StartingBalance))
	line("Monthly income", money(r.Inputs.MonthlyIncome))
	line("Monthly outgoings", money(r.Inputs.MonthlyOutgoings))
	if !s.LowestBalanceMonth.IsZero() {
		line("Lowest balance", fmt.Sprintf("%s in %s", money(s.LowestBalance), forecast.MonthOf(s.LowestBalanceMonth)))
	}
	if s.MonthsBelowZero == 0 {
		line("Months below zero", okStyle.Render("0"))
	} else {
		line("Months below zero", warnStyle.Render(fmt.Sprint(s.MonthsBelowZero)))
		uplift := money(s.RequiredMonthlyUplift)
		if !s.UpliftVerified {
			uplift += warnStyle.Render("  (unverified)")
		}
		line("Required uplift", uplift+" / month")
	}

	for _, w := range r.Warnings {
		msg := w.Message
		if w.ItemID != "" {
			msg = string(w.ItemID) + ": " + msg
		}
		fmt.Fprintf(&b, "  %s %s\n", warnStyle.Render("!"), msg)
	}
	return b.String()
}

// renderRisks draws one row per at-risk plan.
func renderRisks(risks []api.RiskDTO) string {
	rows := make([][]string, 0, len(risks))
	for _, r := range risks {
		rows = append(rows, []string{
			r.PlanName,
			r.FamilyID,
			fmt.Sprint(r.MonthsBelowZero),
			r.LowestBalance.String(),
			r.LowestBalanceMonth,
			r.RequiredMonthlyUplift.String(),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("Plan", "Family", "Months < 0", "Lowest", "Month", "Uplift").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col < 2 || col == 4:
				return cellStyle
			case col == 3:
				return negStyle
			default:
				return numberStyle
			}
		})
	return t.Render()
}
