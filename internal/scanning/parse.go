package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// dateLayouts are the non-ISO formats models sometimes return
var dateLayouts = []string{
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// stripFences removes markdown code fences and anything around the JSON object
func stripFences(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

// parseReceiptJSON turns a model response into a draft.
// Fields the model could not read come back absent.
func parseReceiptJSON(text string) (*expense.Draft, error) {
	text, err := stripFences(text)
	if err != nil {
		return nil, err
	}

	var draft expense.Draft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	draft.Date = normalizeDate(draft.Date)
	draft.Category = normalizeCategory(draft.Category)
	if draft.Amount != nil && draft.Amount.IsNegative() {
		abs := draft.Amount.Abs()
		draft.Amount = &abs
	}

	return &draft, nil
}

func normalizeDate(p *string) *string {
	if p == nil {
		return nil
	}
	if _, ok := expense.ParseDay(*p); ok {
		return p
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, *p); err == nil {
			s := d.Format(expense.DayLayout)
			return &s
		}
	}
	// unreadable dates are left for the user to fill in
	return nil
}

// normalizeCategory maps a category onto the known list, case-insensitively
func normalizeCategory(p *string) *string {
	if p == nil {
		return nil
	}
	for _, c := range expense.Categories {
		if strings.EqualFold(c, *p) {
			name := c
			return &name
		}
	}
	other := "Other"
	return &other
}
