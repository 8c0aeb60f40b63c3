package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/ledger"
	"github.com/zombor/receipt-ledger/internal/scanning"
)

// ErrInvalidInput is returned for payloads that fail validation
var ErrInvalidInput = errors.New("invalid input")

// DefaultLinkTTL is how long a download link stays valid
const DefaultLinkTTL = 300 * time.Second

// IDGenerator generates unique IDs for expenses and storage keys
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// LinkSigner signs and verifies server-hosted file links
type LinkSigner interface {
	SignKey(key string, ttl time.Duration) (string, time.Time, error)
	VerifyKey(value, key string) error
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Config holds the settings the service needs beyond its collaborators
type Config struct {
	// PublicURL prefixes file links for stores that cannot presign
	PublicURL string
	LinkTTL   time.Duration
}

// Service implements the remote operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	signer      LinkSigner
	cfg         Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with the uuid generator and wall clock
func NewService(db DB, scanner scanning.Scanner, storage Storage, signer LinkSigner, cfg Config) *Service {
	return NewServiceWithDeps(db, scanner, storage, signer, cfg, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, signer LinkSigner, cfg Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		signer:      signer,
		cfg:         cfg,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

func (s *Service) checkKey(userID, key string) error {
	if userID == "" || key == "" {
		return fmt.Errorf("%w: userId and storageKey are required", ErrInvalidInput)
	}
	if !ownsKey(userID, key) {
		return fmt.Errorf("%w: storage key does not belong to user", ErrForbidden)
	}
	return nil
}

// StoreImage decodes a base64 image and writes it under the user's prefix
func (s *Service) StoreImage(ctx context.Context, req ledger.StoreImageRequest) (string, error) {
	if req.UserID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		return "", fmt.Errorf("%w: decoding image: %v", ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrInvalidInput)
	}

	key := storageKey(req.UserID, s.idGenerator.Generate(), req.FileName)
	if err := s.storage.Put(ctx, key, data, contentTypeFor(key)); err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	slog.Info("Stored receipt image", "user", req.UserID, "key", key, "size", len(data))
	return key, nil
}

// ExtractData runs the scanner on a stored image
func (s *Service) ExtractData(ctx context.Context, req ledger.ImageRequest) (*expense.Draft, error) {
	if err := s.checkKey(req.UserID, req.StorageKey); err != nil {
		return nil, err
	}

	data, err := s.storage.Get(ctx, req.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}

	contentType := contentTypeFor(req.StorageKey)
	draft, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"key", req.StorageKey,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}
	return draft, nil
}

func validateExpense(e expense.Expense) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, expense.ErrNegativeAmount)
	}
	if e.ReceiptKey != "" && !ownsKey(e.UserID, e.ReceiptKey) {
		return fmt.Errorf("%w: receipt key does not belong to user", ErrForbidden)
	}
	return nil
}

// SaveExpense assigns an ID and timestamps and persists a new expense
func (s *Service) SaveExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	if err := validateExpense(e); err != nil {
		return expense.Expense{}, err
	}

	now := s.timeSource.Now()
	e.ID = s.idGenerator.Generate()
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.db.SaveExpense(&e); err != nil {
		return expense.Expense{}, fmt.Errorf("saving expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns the user's expenses
func (s *Service) ListExpenses(ctx context.Context, userID string) ([]expense.Expense, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

// UpdateExpense replaces a stored expense. CreatedAt and the receipt key are kept.
func (s *Service) UpdateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	if e.ID == "" {
		return expense.Expense{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := validateExpense(e); err != nil {
		return expense.Expense{}, err
	}

	existing, err := s.db.GetExpense(e.UserID, e.ID)
	if err != nil {
		return expense.Expense{}, fmt.Errorf("getting expense for update: %w", err)
	}

	e.CreatedAt = existing.CreatedAt
	e.ReceiptKey = existing.ReceiptKey
	e.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(&e); err != nil {
		return expense.Expense{}, fmt.Errorf("updating expense: %w", err)
	}
	return e, nil
}

// DeleteExpense removes an expense and its receipt image
func (s *Service) DeleteExpense(ctx context.Context, req ledger.DeleteExpenseRequest) error {
	if req.UserID == "" || req.ExpenseID == "" {
		return fmt.Errorf("%w: userId and expenseId are required", ErrInvalidInput)
	}

	e, err := s.db.GetExpense(req.UserID, req.ExpenseID)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}

	if err := s.db.DeleteExpense(req.UserID, req.ExpenseID); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}

	if e.HasReceipt() {
		if err := s.storage.Delete(ctx, e.ReceiptKey); err != nil {
			slog.Warn("Failed to delete receipt image", "key", e.ReceiptKey, "error", err)
		}
	}
	return nil
}

// DownloadLink returns a time-limited URL for a stored image
func (s *Service) DownloadLink(ctx context.Context, req ledger.ImageRequest) (ledger.Link, error) {
	if err := s.checkKey(req.UserID, req.StorageKey); err != nil {
		return ledger.Link{}, err
	}

	if p, ok := s.storage.(Presigner); ok {
		u, expires, err := p.PresignGet(ctx, req.StorageKey, s.cfg.LinkTTL)
		if err != nil {
			return ledger.Link{}, fmt.Errorf("presigning link: %w", err)
		}
		return ledger.Link{URL: u, ExpiresAt: expires}, nil
	}

	// existence check so a link is never handed out for a missing file
	if _, err := s.storage.Get(ctx, req.StorageKey); err != nil {
		return ledger.Link{}, fmt.Errorf("checking image: %w", err)
	}

	sig, expires, err := s.signer.SignKey(req.StorageKey, s.cfg.LinkTTL)
	if err != nil {
		return ledger.Link{}, fmt.Errorf("signing link: %w", err)
	}
	u := fmt.Sprintf("%s/api/files/%s?sig=%s", s.cfg.PublicURL, req.StorageKey, url.QueryEscape(sig))
	return ledger.Link{URL: u, ExpiresAt: expires}, nil
}

// OpenFile serves a file for a signed link
func (s *Service) OpenFile(ctx context.Context, key, sig string) ([]byte, string, error) {
	if err := s.signer.VerifyKey(sig, key); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, contentTypeFor(key), nil
}

// DeleteImage removes a stored image that was never attached to an expense
func (s *Service) DeleteImage(ctx context.Context, req ledger.ImageRequest) error {
	if err := s.checkKey(req.UserID, req.StorageKey); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, req.StorageKey); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// Preferences returns the user's reminder settings
func (s *Service) Preferences(ctx context.Context, userID string) (expense.Preferences, error) {
	if userID == "" {
		return expense.Preferences{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	p, err := s.db.GetPreferences(userID)
	if err != nil {
		return expense.Preferences{}, fmt.Errorf("getting preferences: %w", err)
	}
	return *p, nil
}

// UpdatePreferences applies the fields that are set
func (s *Service) UpdatePreferences(ctx context.Context, update ledger.PreferencesUpdate) (expense.Preferences, error) {
	if update.WeeklyBudget != nil && update.WeeklyBudget.IsNegative() {
		return expense.Preferences{}, fmt.Errorf("%w: weekly budget cannot be negative", ErrInvalidInput)
	}

	p, err := s.Preferences(ctx, update.UserID)
	if err != nil {
		return expense.Preferences{}, err
	}
	if update.NotificationsEnabled != nil {
		p.NotificationsEnabled = *update.NotificationsEnabled
	}
	if update.WeeklyBudget != nil {
		p.WeeklyBudget = *update.WeeklyBudget
	}

	if err := s.db.SavePreferences(&p); err != nil {
		return expense.Preferences{}, fmt.Errorf("saving preferences: %w", err)
	}
	return p, nil
}

// Users returns every known user ID
func (s *Service) Users(ctx context.Context) ([]string, error) {
	users, err := s.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}
