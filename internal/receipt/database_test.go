package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/expense"
)

var _ = Describe("BoltDB", func() {
	var (
		db  *BoltDB
		now time.Time
	)

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newExpense := func(userID, id string, created time.Time) *expense.Expense {
		return &expense.Expense{
			ID:        id,
			UserID:    userID,
			Vendor:    expense.StringPtr("Corner Cafe"),
			Amount:    decimal.RequireFromString("12.50"),
			Date:      expense.StringPtr("2025-03-09"),
			CreatedAt: created,
			UpdatedAt: created,
		}
	}

	Describe("SaveExpense", func() {
		It("stores the expense under its owner", func() {
			Expect(db.SaveExpense(newExpense("alice", "e1", now))).To(Succeed())

			saved, err := db.GetExpense("alice", "e1")
			Expect(err).NotTo(HaveOccurred())
			Expect(*saved.Vendor).To(Equal("Corner Cafe"))
			Expect(saved.Amount.StringFixed(2)).To(Equal("12.50"))
			Expect(saved.Category).To(BeNil())
		})

		It("rejects an expense without an owner", func() {
			Expect(db.SaveExpense(newExpense("", "e1", now))).NotTo(Succeed())
		})
	})

	Describe("GetExpense", func() {
		BeforeEach(func() {
			Expect(db.SaveExpense(newExpense("alice", "e1", now))).To(Succeed())
		})

		When("the expense belongs to another user", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetExpense("bob", "e1")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the expense does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetExpense("alice", "missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListExpenses", func() {
		When("the user has no expenses", func() {
			It("should return an empty slice", func() {
				expenses, err := db.ListExpenses("nobody")
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).NotTo(BeNil())
				Expect(expenses).To(BeEmpty())
			})
		})

		When("the user has several expenses", func() {
			BeforeEach(func() {
				Expect(db.SaveExpense(newExpense("alice", "zzz", now))).To(Succeed())
				Expect(db.SaveExpense(newExpense("alice", "aaa", now.Add(time.Hour)))).To(Succeed())
				Expect(db.SaveExpense(newExpense("bob", "b1", now))).To(Succeed())
			})

			It("returns only that user's expenses, oldest first", func() {
				expenses, err := db.ListExpenses("alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(HaveLen(2))
				Expect(expenses[0].ID).To(Equal("zzz"))
				Expect(expenses[1].ID).To(Equal("aaa"))
			})
		})
	})

	Describe("DeleteExpense", func() {
		BeforeEach(func() {
			Expect(db.SaveExpense(newExpense("alice", "e1", now))).To(Succeed())
		})

		It("removes the expense", func() {
			Expect(db.DeleteExpense("alice", "e1")).To(Succeed())
			_, err := db.GetExpense("alice", "e1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("reports a missing expense", func() {
			Expect(db.DeleteExpense("alice", "missing")).To(MatchError(ErrNotFound))
		})
	})

	Describe("preferences", func() {
		It("returns defaults for a new user", func() {
			p, err := db.GetPreferences("carol")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.UserID).To(Equal("carol"))
			Expect(p.NotificationsEnabled).To(BeTrue())
			Expect(p.WeeklyBudget.IsZero()).To(BeTrue())
		})

		It("round-trips saved preferences", func() {
			Expect(db.SavePreferences(&expense.Preferences{
				UserID:               "carol",
				NotificationsEnabled: false,
				WeeklyBudget:         decimal.NewFromInt(250),
			})).To(Succeed())

			p, err := db.GetPreferences("carol")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.NotificationsEnabled).To(BeFalse())
			Expect(p.WeeklyBudget.Equal(decimal.NewFromInt(250))).To(BeTrue())
		})
	})

	Describe("ListUsers", func() {
		It("merges users with expenses and users with preferences", func() {
			Expect(db.SaveExpense(newExpense("bob", "b1", now))).To(Succeed())
			Expect(db.SaveExpense(newExpense("alice", "a1", now))).To(Succeed())
			Expect(db.SavePreferences(&expense.Preferences{UserID: "carol"})).To(Succeed())
			Expect(db.SavePreferences(&expense.Preferences{UserID: "alice"})).To(Succeed())

			users, err := db.ListUsers()
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(Equal([]string{"alice", "bob", "carol"}))
		})
	})
})
