package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-ledger/internal/expense"
)

const (
	expensesBucket    = "expenses"
	preferencesBucket = "preferences"
)

// DB defines the interface for database operations
type DB interface {
	// SaveExpense creates or replaces an expense under its owner
	SaveExpense(e *expense.Expense) error

	// GetExpense retrieves one of the user's expenses by ID
	GetExpense(userID, id string) (*expense.Expense, error)

	// ListExpenses returns the user's expenses, oldest first
	ListExpenses(userID string) ([]expense.Expense, error)

	// DeleteExpense removes one of the user's expenses
	DeleteExpense(userID, id string) error

	// ListUsers returns every user with expenses or preferences
	ListUsers() ([]string, error)

	// SavePreferences stores a user's settings
	SavePreferences(p *expense.Preferences) error

	// GetPreferences returns a user's settings, or the defaults
	GetPreferences(userID string) (*expense.Preferences, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB.
// Expenses live in a nested bucket per user.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{expensesBucket, preferencesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveExpense saves an expense to the owner's bucket
func (b *BoltDB) SaveExpense(e *expense.Expense) error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("expense id and user id are required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling expense: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket([]byte(expensesBucket))
		bucket, err := users.CreateBucketIfNotExists([]byte(e.UserID))
		if err != nil {
			return fmt.Errorf("creating user bucket: %w", err)
		}
		return bucket.Put([]byte(e.ID), data)
	})
}

// GetExpense retrieves an expense by ID
func (b *BoltDB) GetExpense(userID, id string) (*expense.Expense, error) {
	var e *expense.Expense
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(expensesBucket)).Bucket([]byte(userID))
		if bucket == nil {
			return fmt.Errorf("expense %s: %w", id, ErrNotFound)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("expense %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpenses returns all of a user's expenses ordered by creation time
func (b *BoltDB) ListExpenses(userID string) ([]expense.Expense, error) {
	expenses := make([]expense.Expense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(expensesBucket)).Bucket([]byte(userID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var e expense.Expense
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshaling expense %s: %w", k, err)
			}
			expenses = append(expenses, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].CreatedAt.Before(expenses[j].CreatedAt)
	})
	return expenses, nil
}

// DeleteExpense removes an expense from the database
func (b *BoltDB) DeleteExpense(userID, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(expensesBucket)).Bucket([]byte(userID))
		if bucket == nil || bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("expense %s: %w", id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// ListUsers returns the sorted set of user IDs
func (b *BoltDB) ListUsers() ([]string, error) {
	seen := make(map[string]struct{})
	err := b.db.View(func(tx *bbolt.Tx) error {
		// nested user buckets have nil values
		err := tx.Bucket([]byte(expensesBucket)).ForEach(func(k, v []byte) error {
			if v == nil {
				seen[string(k)] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(preferencesBucket)).ForEach(func(k, _ []byte) error {
			seen[string(k)] = struct{}{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// SavePreferences stores a user's preferences
func (b *BoltDB) SavePreferences(p *expense.Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling preferences: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(preferencesBucket)).Put([]byte(p.UserID), data)
	})
}

// GetPreferences returns stored preferences or the defaults when none exist
func (b *BoltDB) GetPreferences(userID string) (*expense.Preferences, error) {
	prefs := expense.DefaultPreferences(userID)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(preferencesBucket)).Get([]byte(userID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &prefs)
	})
	if err != nil {
		return nil, fmt.Errorf("reading preferences: %w", err)
	}
	return &prefs, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
