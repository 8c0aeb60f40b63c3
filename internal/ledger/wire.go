package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// Operation names understood by the server.
const (
	OpStoreImage        = "store-image"
	OpExtractData       = "extract-structured-data"
	OpSaveExpense       = "save-expense"
	OpListExpenses      = "list-expenses"
	OpUpdateExpense     = "update-expense"
	OpDeleteExpense     = "delete-expense"
	OpDownloadLink      = "get-download-link"
	OpDeleteImage       = "delete-image"
	OpGetPreferences    = "get-preferences"
	OpUpdatePreferences = "update-preferences"
)

type StoreImageRequest struct {
	UserID    string `json:"userId"`
	ImageData string `json:"imageData"` // base64
	FileName  string `json:"fileName"`
}

type StoreImageResponse struct {
	StorageKey string `json:"storageKey"`
}

// ImageRequest addresses one stored receipt image.
type ImageRequest struct {
	UserID     string `json:"userId"`
	StorageKey string `json:"storageKey"`
}

type ExtractResponse struct {
	ExtractedData expense.Draft `json:"extractedData"`
}

type ExpenseResponse struct {
	Expense expense.Expense `json:"expense"`
}

type UserRequest struct {
	UserID string `json:"userId"`
}

type ListResponse struct {
	Expenses []expense.Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	UserID    string `json:"userId"`
	ExpenseID string `json:"expenseId"`
}

// Link is a time-limited download URL for a receipt image.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PreferencesUpdate changes only the fields that are set.
type PreferencesUpdate struct {
	UserID               string           `json:"userId"`
	NotificationsEnabled *bool            `json:"notificationsEnabled,omitempty"`
	WeeklyBudget         *decimal.Decimal `json:"weeklyBudget,omitempty"`
}

type PreferencesResponse struct {
	Preferences expense.Preferences `json:"preferences"`
}
