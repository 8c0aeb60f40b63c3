package main

import (
	"context"
	"fmt"

	"github.com/peterbourgon/ff/v4"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/ledger"
)

func prefsCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("prefs").SetParent(parent)
	notifications := fs.StringLong("notifications", "", "weekly reminders: on or off")
	budget := fs.StringLong("budget", "", "weekly budget, e.g. 350.00")

	return &ff.Command{
		Name:      "prefs",
		Usage:     "receipts prefs [FLAGS]",
		ShortHelp: "show or change reminder preferences",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			update := ledger.PreferencesUpdate{UserID: a.user}
			switch *notifications {
			case "":
			case "on":
				on := true
				update.NotificationsEnabled = &on
			case "off":
				off := false
				update.NotificationsEnabled = &off
			default:
				return fmt.Errorf("--notifications must be on or off, got %q", *notifications)
			}
			if *budget != "" {
				b, err := decimal.NewFromString(*budget)
				if err != nil {
					return fmt.Errorf("--budget: %w", err)
				}
				if !b.IsPositive() {
					return fmt.Errorf("--budget must be positive")
				}
				update.WeeklyBudget = &b
			}

			var prefs expense.Preferences
			if update.NotificationsEnabled != nil || update.WeeklyBudget != nil {
				prefs, err = client.UpdatePreferences(ctx, update)
			} else {
				prefs, err = client.Preferences(ctx, a.user)
			}
			if err != nil {
				return err
			}

			state := "off"
			if prefs.NotificationsEnabled {
				state = "on"
			}
			budgetText := "default"
			if prefs.WeeklyBudget.IsPositive() {
				budgetText = prefs.WeeklyBudget.StringFixed(2)
			}
			a.printf("Notifications: %s\n", state)
			a.printf("Weekly budget: %s\n", budgetText)
			return nil
		},
	}
}
