package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zombor/receipt-ledger/internal/auth"
	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/ledger"
	"github.com/zombor/receipt-ledger/internal/remote"
)

type operation func(ctx context.Context, s *Service, payload json.RawMessage) (any, error)

var operations = map[string]operation{
	ledger.OpStoreImage: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.StoreImageRequest
		if err := unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if err := authorize(ctx, req.UserID); err != nil {
			return nil, err
		}
		key, err := s.StoreImage(ctx, req)
		return ledger.StoreImageResponse{StorageKey: key}, err
	},
	ledger.OpExtractData: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.ImageRequest
		if err := decodeImage(ctx, payload, &req); err != nil {
			return nil, err
		}
		draft, err := s.ExtractData(ctx, req)
		if err != nil {
			return nil, err
		}
		return ledger.ExtractResponse{ExtractedData: *draft}, nil
	},
	ledger.OpSaveExpense: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var e expense.Expense
		if err := decodeExpense(ctx, payload, &e); err != nil {
			return nil, err
		}
		saved, err := s.SaveExpense(ctx, e)
		return ledger.ExpenseResponse{Expense: saved}, err
	},
	ledger.OpListExpenses: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.UserRequest
		if err := decodeUser(ctx, payload, &req); err != nil {
			return nil, err
		}
		expenses, err := s.ListExpenses(ctx, req.UserID)
		return ledger.ListResponse{Expenses: expenses}, err
	},
	ledger.OpUpdateExpense: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var e expense.Expense
		if err := decodeExpense(ctx, payload, &e); err != nil {
			return nil, err
		}
		updated, err := s.UpdateExpense(ctx, e)
		return ledger.ExpenseResponse{Expense: updated}, err
	},
	ledger.OpDeleteExpense: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.DeleteExpenseRequest
		if err := unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if err := authorize(ctx, req.UserID); err != nil {
			return nil, err
		}
		return struct{}{}, s.DeleteExpense(ctx, req)
	},
	ledger.OpDownloadLink: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.ImageRequest
		if err := decodeImage(ctx, payload, &req); err != nil {
			return nil, err
		}
		return s.DownloadLink(ctx, req)
	},
	ledger.OpDeleteImage: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.ImageRequest
		if err := decodeImage(ctx, payload, &req); err != nil {
			return nil, err
		}
		return struct{}{}, s.DeleteImage(ctx, req)
	},
	ledger.OpGetPreferences: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.UserRequest
		if err := decodeUser(ctx, payload, &req); err != nil {
			return nil, err
		}
		p, err := s.Preferences(ctx, req.UserID)
		return ledger.PreferencesResponse{Preferences: p}, err
	},
	ledger.OpUpdatePreferences: func(ctx context.Context, s *Service, payload json.RawMessage) (any, error) {
		var req ledger.PreferencesUpdate
		if err := unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if err := authorize(ctx, req.UserID); err != nil {
			return nil, err
		}
		p, err := s.UpdatePreferences(ctx, req)
		return ledger.PreferencesResponse{Preferences: p}, err
	},
}

// Handle runs a named operation and wraps the outcome in an envelope
func (s *Service) Handle(ctx context.Context, name string, payload json.RawMessage) remote.Envelope {
	op, ok := operations[name]
	if !ok {
		return remote.Failure(http.StatusNotFound, fmt.Sprintf("unknown operation %q", name))
	}

	result, err := op(ctx, s, payload)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Operation failed", "operation", name, "error", err)
		} else {
			slog.Debug("Operation rejected", "operation", name, "status", status, "error", err)
		}
		return remote.Failure(status, err.Error())
	}
	return remote.Success(result)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, expense.ErrNegativeAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func unmarshal(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// authorize rejects payloads addressed to a user other than the caller.
// In-process calls carry no caller and are trusted.
func authorize(ctx context.Context, userID string) error {
	caller, ok := auth.UserFromContext(ctx)
	if ok && caller != userID {
		return fmt.Errorf("%w: payload user does not match token", ErrForbidden)
	}
	return nil
}

func decodeUser(ctx context.Context, payload json.RawMessage, req *ledger.UserRequest) error {
	if err := unmarshal(payload, req); err != nil {
		return err
	}
	return authorize(ctx, req.UserID)
}

func decodeImage(ctx context.Context, payload json.RawMessage, req *ledger.ImageRequest) error {
	if err := unmarshal(payload, req); err != nil {
		return err
	}
	return authorize(ctx, req.UserID)
}

func decodeExpense(ctx context.Context, payload json.RawMessage, e *expense.Expense) error {
	if err := unmarshal(payload, e); err != nil {
		return err
	}
	return authorize(ctx, e.UserID)
}
