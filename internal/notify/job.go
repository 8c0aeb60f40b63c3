package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/report"
)

// Source provides the data a reminder run needs.
type Source interface {
	Users(ctx context.Context) ([]string, error)
	Preferences(ctx context.Context, userID string) (expense.Preferences, error)
	ListExpenses(ctx context.Context, userID string) ([]expense.Expense, error)
}

// Job sends every opted-in user a summary of the previous week.
type Job struct {
	source        Source
	publisher     Publisher
	defaultBudget decimal.Decimal
	now           func() time.Time
}

func NewJob(source Source, publisher Publisher, defaultBudget decimal.Decimal) *Job {
	return NewJobWithClock(source, publisher, defaultBudget, time.Now)
}

// NewJobWithClock creates a Job with a custom clock for testing
func NewJobWithClock(source Source, publisher Publisher, defaultBudget decimal.Decimal, now func() time.Time) *Job {
	if !defaultBudget.IsPositive() {
		defaultBudget = report.DefaultWeeklyBudget
	}
	return &Job{source: source, publisher: publisher, defaultBudget: defaultBudget, now: now}
}

// Run publishes one reminder per enabled user and returns how many were sent.
// A failure for one user does not stop the others.
func (j *Job) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	// Week always advances
	lastWeek, _ := report.Advance(now, report.Week, report.Previous)

	users, err := j.source.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ok, err := j.remind(ctx, userID, lastWeek, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

func (j *Job) remind(ctx context.Context, userID string, week, now time.Time) (bool, error) {
	prefs, err := j.source.Preferences(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("getting preferences: %w", err)
	}
	if !prefs.NotificationsEnabled {
		slog.Debug("Skipping reminder, notifications disabled", "user", userID)
		return false, nil
	}

	budget := prefs.WeeklyBudget
	if !budget.IsPositive() {
		budget = j.defaultBudget
	}

	expenses, err := j.source.ListExpenses(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("listing expenses: %w", err)
	}

	weekly := report.Weekly(expenses, week, budget)
	if err := j.publisher.Publish(ctx, NewReminder(userID, weekly, now)); err != nil {
		return false, err
	}
	return true, nil
}
