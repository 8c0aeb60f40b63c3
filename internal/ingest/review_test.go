package ingest

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ledger/internal/expense"
)

var _ = Describe("ReviewSession", func() {
	var (
		extracted *expense.Draft
		session   *ReviewSession
	)

	BeforeEach(func() {
		extracted = &expense.Draft{
			Vendor:   expense.StringPtr("Corner Cafe"),
			Category: expense.StringPtr("Food"),
		}
		session = NewReviewSession()
		Expect(session.Sync(extracted)).To(BeTrue())
	})

	It("seeds the draft from the extraction", func() {
		Expect(*session.Draft().Vendor).To(Equal("Corner Cafe"))
		Expect(session.Dirty()).To(BeFalse())
	})

	It("renders absent fields with the placeholder", func() {
		fields := session.Fields()
		Expect(fields).To(ContainElement(Field{Label: "Amount", Value: expense.NotApplicable, Absent: true}))
		Expect(fields).To(ContainElement(Field{Label: "Description", Value: expense.NotApplicable, Absent: true}))
		Expect(fields).To(ContainElement(Field{Label: "Vendor", Value: "Corner Cafe"}))
	})

	It("does not touch the extraction when editing", func() {
		session.SetVendor("Other Cafe")
		Expect(*session.Draft().Vendor).To(Equal("Other Cafe"))
		Expect(*extracted.Vendor).To(Equal("Corner Cafe"))
		Expect(session.Dirty()).To(BeTrue())
	})

	It("keeps edits when synced with the same extraction", func() {
		session.SetVendor("Other Cafe")
		Expect(session.Sync(extracted)).To(BeFalse())
		Expect(*session.Draft().Vendor).To(Equal("Other Cafe"))
	})

	It("discards edits when a new extraction arrives", func() {
		session.SetVendor("Other Cafe")
		replacement := &expense.Draft{Vendor: expense.StringPtr("Corner Cafe")}
		Expect(session.Sync(replacement)).To(BeTrue())
		Expect(*session.Draft().Vendor).To(Equal("Corner Cafe"))
		Expect(session.Dirty()).To(BeFalse())
	})

	Describe("SetAmount", func() {
		It("parses currency text", func() {
			Expect(session.SetAmount("$12.99")).To(Succeed())
			Expect(session.Draft().Amount.StringFixed(2)).To(Equal("12.99"))
		})

		It("clears to zero on empty input", func() {
			Expect(session.SetAmount("")).To(Succeed())
			Expect(session.Draft().Amount.IsZero()).To(BeTrue())
		})

		It("rejects unparseable input", func() {
			Expect(session.SetAmount("lots")).NotTo(Succeed())
			Expect(session.Draft().Amount).To(BeNil())
		})

		It("rejects negative amounts", func() {
			Expect(session.SetAmount("-3")).To(MatchError(expense.ErrNegativeAmount))
		})
	})

	Describe("SetDate", func() {
		It("accepts a calendar day", func() {
			Expect(session.SetDate("2025-01-15")).To(Succeed())
			Expect(*session.Draft().Date).To(Equal("2025-01-15"))
		})

		It("rejects other formats", func() {
			Expect(session.SetDate("15/01/2025")).NotTo(Succeed())
		})
	})

	It("produces edits that commit cleanly through the state machine", func() {
		session.SetDescription("")
		session.SetRecurring(true)
		state := UploadState{Phase: Reviewing, ExtractedData: extracted, StorageKey: "k"}
		_, eff, err := Transition(state, CommitRequested{UserID: "alice", Edits: session.Draft()})
		Expect(err).NotTo(HaveOccurred())
		save := eff.(SaveExpense)
		Expect(save.Expense.IsRecurring).To(BeTrue())
		Expect(save.Expense.Description).To(BeNil())
		Expect(*save.Expense.Category).To(Equal("Food"))
	})
})
