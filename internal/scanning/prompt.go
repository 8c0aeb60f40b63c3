package scanning

import (
	"fmt"
	"strings"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// systemPrompt frames the model for backends that accept a system message
const systemPrompt = "You are an expert at reading receipts and invoices. Read every line of text in the image and report only what is printed on it."

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
var receiptScanPrompt = fmt.Sprintf(`You are analyzing a receipt or invoice. Extract the following fields:

1. **vendor**: the merchant or business name, usually the largest text in the header.
2. **amount**: the final total paid (grand total, amount due). Numeric value only, e.g. 42.75 for $42.75.
3. **category**: exactly one of: %s.
4. **description**: a short summary of what was purchased, at most ten words.
5. **date**: the transaction date in YYYY-MM-DD format.

Return ONLY valid JSON in this exact format:
{
  "vendor": "Store Name",
  "amount": 0.00,
  "category": "Food",
  "description": "Short summary",
  "date": "YYYY-MM-DD"
}

Important:
- If a field cannot be read, use null for that field. Never guess a date.
- The amount must be a number, not a string
- Do not include any text before or after the JSON
- Do not use markdown code blocks`, strings.Join(expense.Categories, ", "))
