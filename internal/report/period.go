package report

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// Granularity selects the calendar window of an aggregation.
type Granularity string

const (
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// ErrUnknownGranularity is returned for granularities other than week, month and year.
var ErrUnknownGranularity = errors.New("unknown granularity")

// ParseGranularity validates s.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Week, Month, Year:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// Direction moves a reference date backwards or forwards.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

// CalendarBucket aggregates the expenses dated within [PeriodStart, PeriodEnd].
type CalendarBucket struct {
	PeriodStart time.Time
	PeriodEnd   time.Time // last day included
	Count       int
	Total       decimal.Decimal
	Members     []expense.Expense
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Window returns the first and last day of the period containing ref.
func Window(ref time.Time, g Granularity) (time.Time, time.Time, error) {
	day := Day(ref)
	switch g {
	case Week:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 6), nil
	case Month:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, daysIn(day.Year(), day.Month())-1), nil
	case Year:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(day.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownGranularity, g)
}

func buckets(ref time.Time, g Granularity) ([]CalendarBucket, error) {
	start, end, err := Window(ref, g)
	if err != nil {
		return nil, err
	}

	var out []CalendarBucket
	if g == Year {
		for m := time.January; m <= time.December; m++ {
			first := time.Date(start.Year(), m, 1, 0, 0, 0, 0, time.UTC)
			out = append(out, CalendarBucket{
				PeriodStart: first,
				PeriodEnd:   first.AddDate(0, 0, daysIn(first.Year(), m)-1),
				Total:       decimal.Zero,
			})
		}
		return out, nil
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, CalendarBucket{PeriodStart: d, PeriodEnd: d, Total: decimal.Zero})
	}
	return out, nil
}

// Aggregate partitions expenses into the buckets of the window containing ref.
// Expenses without a parseable date are skipped. Members keep input order.
func Aggregate(expenses []expense.Expense, ref time.Time, g Granularity) ([]CalendarBucket, error) {
	out, err := buckets(ref, g)
	if err != nil {
		return nil, err
	}
	windowStart := out[0].PeriodStart
	windowEnd := out[len(out)-1].PeriodEnd

	skipped := 0
	for _, e := range expenses {
		day, ok := e.Day()
		if !ok {
			skipped++
			slog.Debug("Skipping undated expense", "id", e.ID, "date", expense.Display(e.Date))
			continue
		}
		if day.Before(windowStart) || day.After(windowEnd) {
			continue
		}

		var idx int
		if g == Year {
			idx = int(day.Month()) - 1
		} else {
			idx = int(day.Sub(windowStart).Hours() / 24)
		}

		b := &out[idx]
		b.Count++
		b.Total = b.Total.Add(e.Amount)
		b.Members = append(b.Members, e)
	}

	if skipped > 0 {
		slog.Debug("Aggregation skipped undated expenses", "count", skipped, "granularity", g)
	}
	return out, nil
}

// Advance moves ref one period in dir. Month and year steps clamp the day to
// the last day of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
func Advance(ref time.Time, g Granularity, dir Direction) (time.Time, error) {
	day := Day(ref)
	step := int(dir)
	switch g {
	case Week:
		return day.AddDate(0, 0, 7*step), nil
	case Month:
		return addMonthsClamped(day, step), nil
	case Year:
		return addMonthsClamped(day, 12*step), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownGranularity, g)
}

func addMonthsClamped(day time.Time, months int) time.Time {
	first := time.Date(day.Year(), day.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	d := day.Day()
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// Total sums the bucket totals.
func Total(buckets []CalendarBucket) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(b.Total)
	}
	return sum
}
