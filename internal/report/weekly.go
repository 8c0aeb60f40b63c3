package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// DefaultWeeklyBudget applies when a user has not set one.
var DefaultWeeklyBudget = decimal.NewFromInt(500)

// weeklyTopCategories is how many categories a weekly report lists.
const weeklyTopCategories = 4

// WeeklyReport summarizes spend for the week containing a reference date.
type WeeklyReport struct {
	WeekStart          time.Time
	WeekEnd            time.Time
	Count              int
	TotalSpent         decimal.Decimal
	BudgetLimit        decimal.Decimal
	Remaining          decimal.Decimal
	PercentUnderBudget int64
	TopCategories      []CategoryTotal
}

// Weekly builds the report for the Sunday-to-Saturday week containing ref.
// A non-positive budget falls back to DefaultWeeklyBudget.
func Weekly(expenses []expense.Expense, ref time.Time, budget decimal.Decimal) WeeklyReport {
	if !budget.IsPositive() {
		budget = DefaultWeeklyBudget
	}

	// Week is always a known granularity
	days, _ := Aggregate(expenses, ref, Week)

	var members []expense.Expense
	for _, d := range days {
		members = append(members, d.Members...)
	}
	total := Total(days)

	under := budget.Sub(total).Div(budget).Mul(hundred).Round(0).IntPart()
	if under < 0 {
		under = 0
	}

	return WeeklyReport{
		WeekStart:          days[0].PeriodStart,
		WeekEnd:            days[len(days)-1].PeriodEnd,
		Count:              len(members),
		TotalSpent:         total,
		BudgetLimit:        budget,
		Remaining:          budget.Sub(total),
		PercentUnderBudget: under,
		TopCategories:      TopN(members, weeklyTopCategories),
	}
}
