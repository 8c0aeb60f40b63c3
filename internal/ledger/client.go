package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/remote"
)

// Client exposes the named remote operations with typed payloads.
type Client struct {
	invoker remote.Invoker
}

// New creates a Client on top of invoker.
func New(invoker remote.Invoker) *Client {
	return &Client{invoker: invoker}
}

func (c *Client) call(ctx context.Context, operation string, payload, out any) error {
	body, err := c.invoker.Invoke(ctx, operation, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &remote.Error{Operation: operation, Message: fmt.Sprintf("decoding result: %v", err)}
	}
	return nil
}

// StoreImage uploads a base64 image and returns its storage key.
func (c *Client) StoreImage(ctx context.Context, userID, imageData, fileName string) (string, error) {
	var resp StoreImageResponse
	err := c.call(ctx, OpStoreImage, StoreImageRequest{UserID: userID, ImageData: imageData, FileName: fileName}, &resp)
	if err != nil {
		return "", err
	}
	if resp.StorageKey == "" {
		return "", &remote.Error{Operation: OpStoreImage, Message: "empty storage key"}
	}
	return resp.StorageKey, nil
}

// ExtractData runs extraction on a stored image.
func (c *Client) ExtractData(ctx context.Context, userID, storageKey string) (*expense.Draft, error) {
	var resp ExtractResponse
	if err := c.call(ctx, OpExtractData, ImageRequest{UserID: userID, StorageKey: storageKey}, &resp); err != nil {
		return nil, err
	}
	return &resp.ExtractedData, nil
}

// SaveExpense persists a new expense; the returned record carries the assigned id.
func (c *Client) SaveExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	var resp ExpenseResponse
	if err := c.call(ctx, OpSaveExpense, e, &resp); err != nil {
		return expense.Expense{}, err
	}
	return resp.Expense, nil
}

// ListExpenses returns every expense owned by userID.
func (c *Client) ListExpenses(ctx context.Context, userID string) ([]expense.Expense, error) {
	var resp ListResponse
	if err := c.call(ctx, OpListExpenses, UserRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Expenses, nil
}

// UpdateExpense replaces a whole record.
func (c *Client) UpdateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	var resp ExpenseResponse
	if err := c.call(ctx, OpUpdateExpense, e, &resp); err != nil {
		return expense.Expense{}, err
	}
	return resp.Expense, nil
}

// DeleteExpense removes an expense and its receipt image.
func (c *Client) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	return c.call(ctx, OpDeleteExpense, DeleteExpenseRequest{UserID: userID, ExpenseID: expenseID}, nil)
}

// DownloadLink returns a time-limited URL for a stored receipt image.
func (c *Client) DownloadLink(ctx context.Context, userID, storageKey string) (Link, error) {
	var link Link
	if err := c.call(ctx, OpDownloadLink, ImageRequest{UserID: userID, StorageKey: storageKey}, &link); err != nil {
		return Link{}, err
	}
	return link, nil
}

// DeleteImage removes a stored image that never became an expense.
func (c *Client) DeleteImage(ctx context.Context, userID, storageKey string) error {
	return c.call(ctx, OpDeleteImage, ImageRequest{UserID: userID, StorageKey: storageKey}, nil)
}

// Preferences returns the reminder settings for userID.
func (c *Client) Preferences(ctx context.Context, userID string) (expense.Preferences, error) {
	var resp PreferencesResponse
	if err := c.call(ctx, OpGetPreferences, UserRequest{UserID: userID}, &resp); err != nil {
		return expense.Preferences{}, err
	}
	return resp.Preferences, nil
}

// UpdatePreferences applies update and returns the stored settings.
func (c *Client) UpdatePreferences(ctx context.Context, update PreferencesUpdate) (expense.Preferences, error) {
	var resp PreferencesResponse
	if err := c.call(ctx, OpUpdatePreferences, update, &resp); err != nil {
		return expense.Preferences{}, err
	}
	return resp.Preferences, nil
}
