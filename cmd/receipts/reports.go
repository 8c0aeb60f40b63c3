package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/report"
)

// referenceDay parses --date, defaulting to today
func (a *app) referenceDay(date string) (time.Time, error) {
	if date == "" {
		return report.Day(a.now()), nil
	}
	day, ok := expense.ParseDay(date)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
	}
	return day, nil
}

func calendarCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("calendar").SetParent(parent)
	period := fs.StringLong("period", "month", "week, month or year")
	date := fs.StringLong("date", "", "reference date as YYYY-MM-DD (default today)")
	offset := fs.IntLong("offset", 0, "periods to move from the reference date, negative for earlier")

	return &ff.Command{
		Name:      "calendar",
		Usage:     "receipts calendar [FLAGS]",
		ShortHelp: "show spend per day (or per month for a year)",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			g, err := report.ParseGranularity(*period)
			if err != nil {
				return err
			}
			ref, err := a.referenceDay(*date)
			if err != nil {
				return err
			}
			dir, steps := report.Next, *offset
			if steps < 0 {
				dir, steps = report.Previous, -steps
			}
			for i := 0; i < steps; i++ {
				if ref, err = report.Advance(ref, g, dir); err != nil {
					return err
				}
			}

			expenses, err := a.expenses(ctx)
			if err != nil {
				return err
			}
			buckets, err := report.Aggregate(expenses, ref, g)
			if err != nil {
				return err
			}

			label := expense.DayLayout
			if g == report.Year {
				label = "2006-01"
			}
			first, last := buckets[0].PeriodStart, buckets[len(buckets)-1].PeriodEnd
			a.printf("%s to %s\n", expense.FormatDay(first), expense.FormatDay(last))

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, b := range buckets {
				if b.Count == 0 {
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", b.PeriodStart.Format(label), b.Count, b.Total.StringFixed(2))
			}
			fmt.Fprintf(tw, "Total\t\t%s\n", report.Total(buckets).StringFixed(2))
			return tw.Flush()
		},
	}
}

func weeklyCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("weekly").SetParent(parent)
	date := fs.StringLong("date", "", "any day of the week as YYYY-MM-DD (default today)")

	return &ff.Command{
		Name:      "weekly",
		Usage:     "receipts weekly [FLAGS]",
		ShortHelp: "summarize a week against the weekly budget",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			ref, err := a.referenceDay(*date)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			prefs, err := client.Preferences(ctx, a.user)
			if err != nil {
				return err
			}
			expenses, err := client.ListExpenses(ctx, a.user)
			if err != nil {
				return err
			}

			r := report.Weekly(expenses, ref, prefs.WeeklyBudget)
			a.printf("Week %s to %s\n", expense.FormatDay(r.WeekStart), expense.FormatDay(r.WeekEnd))
			a.printf("Expenses:  %d\n", r.Count)
			a.printf("Spent:     %s\n", r.TotalSpent.StringFixed(2))
			a.printf("Budget:    %s\n", r.BudgetLimit.StringFixed(2))
			a.printf("Remaining: %s\n", r.Remaining.StringFixed(2))
			a.printf("Under budget: %d%%\n", r.PercentUnderBudget)
			if len(r.TopCategories) > 0 {
				a.printf("Top categories:\n")
				a.printCategories(r.TopCategories)
			}
			return nil
		},
	}
}

func categoriesCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("categories").SetParent(parent)
	top := fs.IntLong("top", 0, "show only the N largest categories (0 for all)")
	period := fs.StringLong("period", "", "limit to the week, month or year containing --date")
	date := fs.StringLong("date", "", "reference date as YYYY-MM-DD (default today)")

	return &ff.Command{
		Name:      "categories",
		Usage:     "receipts categories [FLAGS]",
		ShortHelp: "break spend down by category",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			expenses, err := a.expenses(ctx)
			if err != nil {
				return err
			}
			if *period != "" {
				g, err := report.ParseGranularity(*period)
				if err != nil {
					return err
				}
				ref, err := a.referenceDay(*date)
				if err != nil {
					return err
				}
				start, end, err := report.Window(ref, g)
				if err != nil {
					return err
				}
				expenses = report.InWindow(expenses, start, end)
			}

			totals := report.Ranked(expenses)
			if *top > 0 {
				totals = report.TopN(expenses, *top)
			}
			if len(totals) == 0 {
				a.printf("No expenses.\n")
				return nil
			}
			a.printCategories(totals)
			a.printf("Total: %s\n", report.GrandTotal(expenses).StringFixed(2))
			return nil
		},
	}
}

func exportCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	year := fs.IntLong("year", 0, "tax year to export")
	from := fs.StringLong("from", "", "first day as YYYY-MM-DD")
	to := fs.StringLong("to", "", "last day as YYYY-MM-DD")
	out := fs.StringLong("out", "", "output file (default stdout)")

	return &ff.Command{
		Name:      "export",
		Usage:     "receipts export [FLAGS]",
		ShortHelp: "write a tax CSV for a year or date range",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			expenses, err := a.expenses(ctx)
			if err != nil {
				return err
			}

			switch {
			case *year != 0 && (*from != "" || *to != ""):
				return errors.New("use either --year or --from/--to")
			case *year != 0:
				expenses = report.ForYear(expenses, *year)
			case *from != "" && *to != "":
				start, ok := expense.ParseDay(*from)
				if !ok {
					return fmt.Errorf("invalid --from %q", *from)
				}
				end, ok := expense.ParseDay(*to)
				if !ok {
					return fmt.Errorf("invalid --to %q", *to)
				}
				if end.Before(start) {
					return errors.New("--to is before --from")
				}
				expenses = report.InWindow(expenses, start, end)
			default:
				return errors.New("--year or both --from and --to are required")
			}

			var w io.Writer = a.out
			if *out != "" {
				f, err := os.Create(*out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := report.WriteTaxCSV(w, expenses); err != nil {
				return err
			}
			if *out != "" {
				a.printf("Exported %d expenses to %s\n", len(expenses), *out)
			}
			return nil
		},
	}
}

func (a *app) expenses(ctx context.Context) ([]expense.Expense, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return client.ListExpenses(ctx, a.user)
}

func (a *app) printCategories(totals []report.CategoryTotal) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range totals {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s%%\n", c.Label(), c.Count, c.Amount.StringFixed(2), c.Percentage.StringFixed(2))
	}
	tw.Flush()
}
