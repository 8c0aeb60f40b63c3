package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotApplicable is the placeholder rendered for a field that has no value.
const NotApplicable = "Not Applicable"

// DayLayout is the canonical calendar day format used on the wire and in storage.
const DayLayout = "2006-01-02"

// ErrNegativeAmount is returned when a draft carries an amount below zero.
var ErrNegativeAmount = errors.New("amount must not be negative")

// Categories is the fixed set of categories offered to the extraction model and the CLI.
var Categories = []string{
	"Food",
	"Transport",
	"Utilities",
	"Entertainment",
	"Groceries",
	"Shopping",
	"Health",
	"Education",
	"Travel",
	"Other",
}

// Expense is a committed expense record. Optional text fields are nil when unknown.
type Expense struct {
	ID          string          `json:"id,omitempty"`
	UserID      string          `json:"userId"`
	Vendor      *string         `json:"vendor,omitempty"`
	Category    *string         `json:"category,omitempty"`
	Description *string         `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        *string         `json:"date,omitempty"` // YYYY-MM-DD, UTC calendar day
	ReceiptKey  string          `json:"receiptKey,omitempty"`
	IsRecurring bool            `json:"isRecurring"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// UnmarshalJSON maps sentinel text fields to nil and coerces a sentinel or
// unparseable amount to zero.
func (e *Expense) UnmarshalJSON(data []byte) error {
	type plain Expense
	var raw struct {
		plain
		Vendor      json.RawMessage `json:"vendor"`
		Amount      json.RawMessage `json:"amount"`
		Category    json.RawMessage `json:"category"`
		Description json.RawMessage `json:"description"`
		Date        json.RawMessage `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshaling expense: %w", err)
	}

	*e = Expense(raw.plain)
	e.Vendor = rawText(raw.Vendor)
	e.Category = rawText(raw.Category)
	e.Description = rawText(raw.Description)
	e.Date = rawDate(raw.Date)
	e.Amount = decimal.Zero
	if amount := rawAmount(raw.Amount); amount != nil {
		e.Amount = *amount
	}
	return nil
}

// HasReceipt reports whether a stored receipt image is attached.
func (e Expense) HasReceipt() bool {
	return e.ReceiptKey != ""
}

// Day returns the expense date as a UTC calendar day.
func (e Expense) Day() (time.Time, bool) {
	if e.Date == nil {
		return time.Time{}, false
	}
	return ParseDay(*e.Date)
}

// CategoryKey returns the category used for grouping; "" means uncategorized.
func (e Expense) CategoryKey() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// IsSentinel reports whether s stands for "no value" rather than real text.
func IsSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "not applicable", "n/a", "na", "null", "none", "unknown":
		return true
	}
	return false
}

// Optional trims s and returns nil when it holds no value.
func Optional(s string) *string {
	if IsSentinel(s) {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

// Display renders an optional text field for people.
func Display(p *string) string {
	if p == nil {
		return NotApplicable
	}
	return *p
}

// DisplayAmount renders an optional amount for people.
func DisplayAmount(p *decimal.Decimal) string {
	if p == nil {
		return NotApplicable
	}
	return p.StringFixed(2)
}

// ParseAmount parses a currency string such as "$1,234.50".
// The second return value is false for sentinels and unparseable input.
func ParseAmount(s string) (decimal.Decimal, bool) {
	if IsSentinel(s) {
		return decimal.Zero, false
	}
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDay parses a YYYY-MM-DD string as a UTC calendar day.
// Timestamps with a time component keep only their date part.
func ParseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(DayLayout) && s[len(DayLayout)] == 'T' {
		s = s[:len(DayLayout)]
	}
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDay formats t's UTC calendar day.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
