package scanning

import (
	"context"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// Scanner defines the interface for receipt extraction backends
type Scanner interface {
	// ScanReceipt reads a receipt image/PDF and returns the expense fields it could find
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*expense.Draft, error)
	// Close closes the scanner and releases resources
	Close() error
}
