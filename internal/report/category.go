package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// Uncategorized labels expenses that have no category.
const Uncategorized = "Uncategorized"

var hundred = decimal.NewFromInt(100)

// CategoryTotal is the spend in one category. Category is "" for uncategorized.
type CategoryTotal struct {
	Category   string
	Amount     decimal.Decimal
	Count      int
	Percentage decimal.Decimal // share of the grand total, 2 decimals
}

// Label returns the category name for display.
func (c CategoryTotal) Label() string {
	if c.Category == "" {
		return Uncategorized
	}
	return c.Category
}

// GrandTotal sums every amount.
func GrandTotal(expenses []expense.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// TotalsByCategory maps each category key to its summed amount.
func TotalsByCategory(expenses []expense.Expense) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		key := e.CategoryKey()
		totals[key] = totals[key].Add(e.Amount)
	}
	return totals
}

// Ranked returns every category by descending total, ties broken by name.
func Ranked(expenses []expense.Expense) []CategoryTotal {
	grand := GrandTotal(expenses)

	index := make(map[string]int)
	var out []CategoryTotal
	for _, e := range expenses {
		key := e.CategoryKey()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CategoryTotal{Category: key, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
		out[i].Count++
	}

	for i := range out {
		out[i].Percentage = percentage(out[i].Amount, grand)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if c := out[a].Amount.Cmp(out[b].Amount); c != 0 {
			return c > 0
		}
		return out[a].Category < out[b].Category
	})
	return out
}

// TopN returns the n largest categories.
func TopN(expenses []expense.Expense, n int) []CategoryTotal {
	if n <= 0 {
		return []CategoryTotal{}
	}
	ranked := Ranked(expenses)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		return []CategoryTotal{}
	}
	return ranked
}

func percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
