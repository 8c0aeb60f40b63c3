package ingest

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// Field is one row of the review form with its display value.
type Field struct {
	Label  string
	Value  string
	Absent bool
}

// ReviewSession holds the editable copy of an extraction result.
// It performs no I/O; the draft is handed to Pipeline.Commit.
type ReviewSession struct {
	source *expense.Draft
	draft  expense.Draft
	dirty  bool
}

// NewReviewSession creates an empty session.
func NewReviewSession() *ReviewSession {
	return &ReviewSession{}
}

// Sync seeds the draft from extracted when it is a different result than the
// current one. Unsaved edits are discarded in that case. Reports whether it reseeded.
func (r *ReviewSession) Sync(extracted *expense.Draft) bool {
	if extracted == r.source {
		return false
	}
	r.source = extracted
	r.draft = expense.Draft{}
	if extracted != nil {
		r.draft = *extracted
	}
	r.dirty = false
	return true
}

// Dirty reports whether the draft was edited since it was seeded.
func (r *ReviewSession) Dirty() bool {
	return r.dirty
}

// Draft returns a copy of the current draft.
func (r *ReviewSession) Draft() expense.Draft {
	return r.draft
}

// SetVendor sets the vendor; an empty value clears it.
func (r *ReviewSession) SetVendor(v string) {
	r.draft.Vendor = expense.StringPtr(v)
	r.dirty = true
}

// SetCategory sets the category; an empty value clears it.
func (r *ReviewSession) SetCategory(v string) {
	r.draft.Category = expense.StringPtr(v)
	r.dirty = true
}

// SetDescription sets the description; an empty value clears it.
func (r *ReviewSession) SetDescription(v string) {
	r.draft.Description = expense.StringPtr(v)
	r.dirty = true
}

// SetDate sets the date; it must be YYYY-MM-DD or empty.
func (r *ReviewSession) SetDate(v string) error {
	if v != "" {
		if _, ok := expense.ParseDay(v); !ok {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
		}
	}
	r.draft.Date = expense.StringPtr(v)
	r.dirty = true
	return nil
}

// SetAmount parses and sets the amount. An empty value clears it to zero.
func (r *ReviewSession) SetAmount(v string) error {
	amount := decimal.Zero
	if v != "" {
		parsed, ok := expense.ParseAmount(v)
		if !ok {
			return fmt.Errorf("invalid amount %q", v)
		}
		if parsed.IsNegative() {
			return expense.ErrNegativeAmount
		}
		amount = parsed
	}
	r.draft.Amount = &amount
	r.dirty = true
	return nil
}

// SetRecurring sets the recurring flag.
func (r *ReviewSession) SetRecurring(v bool) {
	r.draft.IsRecurring = &v
	r.dirty = true
}

// Fields returns every field with a display value, absent ones rendered as the placeholder.
func (r *ReviewSession) Fields() []Field {
	d := r.draft
	recurring := d.IsRecurring != nil && *d.IsRecurring
	return []Field{
		textField("Vendor", d.Vendor),
		{Label: "Amount", Value: expense.DisplayAmount(d.Amount), Absent: d.Amount == nil},
		textField("Category", d.Category),
		textField("Description", d.Description),
		textField("Date", d.Date),
		{Label: "Recurring", Value: strconv.FormatBool(recurring)},
	}
}

func textField(label string, p *string) Field {
	if p == nil || expense.IsSentinel(*p) {
		return Field{Label: label, Value: expense.NotApplicable, Absent: true}
	}
	return Field{Label: label, Value: *p}
}
