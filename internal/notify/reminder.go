package notify

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/report"
)

// Reminder is the weekly summary handed to the mail worker.
type Reminder struct {
	UserID             string            `json:"userId"`
	WeekStart          string            `json:"weekStart"`
	WeekEnd            string            `json:"weekEnd"`
	Count              int               `json:"count"`
	TotalSpent         decimal.Decimal   `json:"totalSpent"`
	BudgetLimit        decimal.Decimal   `json:"budgetLimit"`
	Remaining          decimal.Decimal   `json:"remaining"`
	PercentUnderBudget int64             `json:"percentUnderBudget"`
	TopCategories      []CategorySummary `json:"topCategories"`
	GeneratedAt        time.Time         `json:"generatedAt"`
}

type CategorySummary struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// NewReminder converts a weekly report into a message for userID.
func NewReminder(userID string, r report.WeeklyReport, now time.Time) Reminder {
	top := make([]CategorySummary, 0, len(r.TopCategories))
	for _, c := range r.TopCategories {
		top = append(top, CategorySummary{Category: c.Label(), Amount: c.Amount, Percentage: c.Percentage})
	}
	return Reminder{
		UserID:             userID,
		WeekStart:          expense.FormatDay(r.WeekStart),
		WeekEnd:            expense.FormatDay(r.WeekEnd),
		Count:              r.Count,
		TotalSpent:         r.TotalSpent,
		BudgetLimit:        r.BudgetLimit,
		Remaining:          r.Remaining,
		PercentUnderBudget: r.PercentUnderBudget,
		TopCategories:      top,
		GeneratedAt:        now,
	}
}
