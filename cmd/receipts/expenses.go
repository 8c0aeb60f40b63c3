package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/ingest"
)

func ingestCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("ingest").SetParent(parent)
	edits := registerEdits(fs)
	yes := fs.BoolLong("yes", "save without asking for confirmation")

	return &ff.Command{
		Name:      "ingest",
		Usage:     "receipts ingest [FLAGS] FILE",
		ShortHelp: "upload a receipt, review the extracted fields and save",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("ingest takes exactly one FILE")
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			pipeline := ingest.NewPipeline(client, a.user)
			extracted, err := pipeline.BeginUpload(ctx, f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			review := ingest.NewReviewSession()
			review.Sync(extracted)
			if err := edits.apply(review); err != nil {
				return errors.Join(err, pipeline.Cancel())
			}
			a.printFields(review.Fields())

			if !*yes && !a.confirm("Save this expense?") {
				a.printf("Discarded.\n")
				return pipeline.Cancel()
			}

			saved, err := pipeline.Commit(ctx, review.Draft())
			if err != nil {
				return err
			}
			a.printf("Saved expense %s\n", saved.ID)
			return nil
		},
	}
}

func addCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("add").SetParent(parent)
	edits := registerEdits(fs)

	return &ff.Command{
		Name:      "add",
		Usage:     "receipts add [FLAGS]",
		ShortHelp: "save an expense without a receipt",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			review := ingest.NewReviewSession()
			if err := edits.apply(review); err != nil {
				return err
			}
			saved, err := ingest.SaveManual(ctx, client, a.user, review.Draft())
			if err != nil {
				return err
			}
			a.printf("Saved expense %s\n", saved.ID)
			return nil
		},
	}
}

func listCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("list").SetParent(parent)
	return &ff.Command{
		Name:      "list",
		Usage:     "receipts list",
		ShortHelp: "list saved expenses",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			expenses, err := client.ListExpenses(ctx, a.user)
			if err != nil {
				return err
			}
			if len(expenses) == 0 {
				a.printf("No expenses.\n")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tVENDOR\tCATEGORY\tAMOUNT\tRECEIPT\tRECURRING")
			for _, e := range expenses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID,
					expense.Display(e.Date),
					expense.Display(e.Vendor),
					expense.Display(e.Category),
					e.Amount.StringFixed(2),
					yesNo(e.HasReceipt()),
					yesNo(e.IsRecurring),
				)
			}
			return tw.Flush()
		},
	}
}

func updateCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("update").SetParent(parent)
	edits := registerEdits(fs)

	return &ff.Command{
		Name:      "update",
		Usage:     "receipts update [FLAGS] ID",
		ShortHelp: "change fields of a saved expense",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("update takes exactly one ID")
			}
			if !edits.changed() {
				return errors.New("nothing to update")
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			current, err := findExpense(ctx, a, args[0])
			if err != nil {
				return err
			}

			review := ingest.NewReviewSession()
			seed := expense.DraftOf(current)
			review.Sync(&seed)
			if err := edits.apply(review); err != nil {
				return err
			}

			changed, err := review.Draft().ToExpense(a.user, current.ReceiptKey)
			if err != nil {
				return err
			}
			changed.ID = current.ID
			updated, err := client.UpdateExpense(ctx, changed)
			if err != nil {
				return err
			}
			a.printf("Updated expense %s\n", updated.ID)
			return nil
		},
	}
}

func deleteCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("delete").SetParent(parent)
	return &ff.Command{
		Name:      "delete",
		Usage:     "receipts delete ID",
		ShortHelp: "delete an expense and its receipt",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("delete takes exactly one ID")
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			if err := client.DeleteExpense(ctx, a.user, args[0]); err != nil {
				return err
			}
			a.printf("Deleted expense %s\n", args[0])
			return nil
		},
	}
}

func linkCommand(a *app, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("link").SetParent(parent)
	return &ff.Command{
		Name:      "link",
		Usage:     "receipts link ID",
		ShortHelp: "print a temporary download link for an expense's receipt",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("link takes exactly one ID")
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			e, err := findExpense(ctx, a, args[0])
			if err != nil {
				return err
			}
			if !e.HasReceipt() {
				return fmt.Errorf("expense %s has no receipt", e.ID)
			}
			link, err := client.DownloadLink(ctx, a.user, e.ReceiptKey)
			if err != nil {
				return err
			}
			a.printf("%s\n(expires %s)\n", link.URL, link.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

// findExpense looks an expense up by ID in the user's list
func findExpense(ctx context.Context, a *app, id string) (expense.Expense, error) {
	client, err := a.client()
	if err != nil {
		return expense.Expense{}, err
	}
	expenses, err := client.ListExpenses(ctx, a.user)
	if err != nil {
		return expense.Expense{}, err
	}
	for _, e := range expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return expense.Expense{}, fmt.Errorf("expense %s not found", id)
}

func (a *app) printFields(fields []ingest.Field) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "%s:\t%s\n", f.Label, f.Value)
	}
	tw.Flush()
}

func (a *app) confirm(question string) bool {
	a.printf("%s [y/N] ", question)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
