package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// ErrNoExpenses is returned when an export would contain no rows.
var ErrNoExpenses = errors.New("no expenses in the selected period")

var exportHeader = []string{"Date", "Vendor", "Amount", "Category", "Description", "Receipt Available", "Recurring"}

// InWindow returns the expenses dated within [start, end], in input order.
func InWindow(expenses []expense.Expense, start, end time.Time) []expense.Expense {
	start, end = Day(start), Day(end)
	var out []expense.Expense
	for _, e := range expenses {
		day, ok := e.Day()
		if !ok || day.Before(start) || day.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ForYear returns the expenses dated within the UTC calendar year.
func ForYear(expenses []expense.Expense, year int) []expense.Expense {
	start, end, _ := Window(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), Year)
	return InWindow(expenses, start, end)
}

// WriteTaxCSV writes one row per expense followed by a summary and a per-category breakdown.
func WriteTaxCSV(w io.Writer, expenses []expense.Expense) error {
	if len(expenses) == 0 {
		return ErrNoExpenses
	}

	cw := csv.NewWriter(w)
	rows := [][]string{exportHeader}
	for _, e := range expenses {
		rows = append(rows, []string{
			exportText(e.Date),
			exportText(e.Vendor),
			e.Amount.StringFixed(2),
			exportText(e.Category),
			exportText(e.Description),
			yesNo(e.HasReceipt()),
			yesNo(e.IsRecurring),
		})
	}

	rows = append(rows,
		[]string{},
		[]string{"--- SUMMARY ---"},
		[]string{"Total Expenses", GrandTotal(expenses).StringFixed(2)},
		[]string{"Total Receipts", strconv.Itoa(len(expenses))},
		[]string{},
		[]string{"--- BY CATEGORY ---"},
		[]string{"Category", "Amount", "Count"},
	)
	for _, c := range Ranked(expenses) {
		rows = append(rows, []string{c.Label(), c.Amount.StringFixed(2), strconv.Itoa(c.Count)})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

func exportText(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
