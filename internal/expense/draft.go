package expense

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Draft is a partial expense: the output of extraction and the editable copy under review.
// A nil field has no value. A non-nil empty text field is an explicit clear.
type Draft struct {
	Vendor      *string          `json:"vendor,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Date        *string          `json:"date,omitempty"`
	IsRecurring *bool            `json:"isRecurring,omitempty"`
}

// UnmarshalJSON accepts sentinel strings, nulls, numeric or string amounts
// and maps anything without a usable value to nil.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var raw struct {
		Vendor      json.RawMessage `json:"vendor"`
		Amount      json.RawMessage `json:"amount"`
		Category    json.RawMessage `json:"category"`
		Description json.RawMessage `json:"description"`
		Date        json.RawMessage `json:"date"`
		IsRecurring *bool           `json:"isRecurring"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshaling draft: %w", err)
	}

	*d = Draft{
		Vendor:      rawText(raw.Vendor),
		Amount:      rawAmount(raw.Amount),
		Category:    rawText(raw.Category),
		Description: rawText(raw.Description),
		Date:        rawDate(raw.Date),
		IsRecurring: raw.IsRecurring,
	}
	return nil
}

func rawText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// numbers and other scalars keep their literal text
		s = string(raw)
	}
	return Optional(s)
}

func rawAmount(raw json.RawMessage) *decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}
	d, ok := ParseAmount(text)
	if !ok {
		return nil
	}
	return &d
}

func rawDate(raw json.RawMessage) *string {
	p := rawText(raw)
	if p == nil {
		return nil
	}
	day, ok := ParseDay(*p)
	if !ok {
		// kept verbatim; aggregation treats it as undated
		return p
	}
	s := FormatDay(day)
	return &s
}

// DraftOf copies a committed expense into an editable draft.
func DraftOf(e Expense) Draft {
	amount := e.Amount
	recurring := e.IsRecurring
	return Draft{
		Vendor:      copyText(e.Vendor),
		Amount:      &amount,
		Category:    copyText(e.Category),
		Description: copyText(e.Description),
		Date:        copyText(e.Date),
		IsRecurring: &recurring,
	}
}

// Merge returns d with every field set in edits laid over it.
func (d Draft) Merge(edits Draft) Draft {
	merged := d
	if edits.Vendor != nil {
		merged.Vendor = edits.Vendor
	}
	if edits.Amount != nil {
		merged.Amount = edits.Amount
	}
	if edits.Category != nil {
		merged.Category = edits.Category
	}
	if edits.Description != nil {
		merged.Description = edits.Description
	}
	if edits.Date != nil {
		merged.Date = edits.Date
	}
	if edits.IsRecurring != nil {
		merged.IsRecurring = edits.IsRecurring
	}
	return merged
}

// ToExpense turns the draft into a record ready to save.
// An absent amount becomes zero; cleared text fields become absent.
func (d Draft) ToExpense(userID, receiptKey string) (Expense, error) {
	amount := decimal.Zero
	if d.Amount != nil {
		amount = *d.Amount
	}
	if amount.IsNegative() {
		return Expense{}, ErrNegativeAmount
	}

	e := Expense{
		UserID:      userID,
		Vendor:      normalizeText(d.Vendor),
		Category:    normalizeText(d.Category),
		Description: normalizeText(d.Description),
		Date:        normalizeText(d.Date),
		Amount:      amount,
		ReceiptKey:  receiptKey,
	}
	if d.IsRecurring != nil {
		e.IsRecurring = *d.IsRecurring
	}
	return e, nil
}

func normalizeText(p *string) *string {
	if p == nil {
		return nil
	}
	return Optional(*p)
}

func copyText(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
