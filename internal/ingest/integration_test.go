package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/auth"
	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/ingest"
	"github.com/zombor/receipt-ledger/internal/ledger"
	"github.com/zombor/receipt-ledger/internal/receipt"
	"github.com/zombor/receipt-ledger/internal/remote"
)

type fakeScanner struct {
	draft  *expense.Draft
	err    error
	cancel context.CancelFunc
}

func (f *fakeScanner) ScanReceipt(ctx context.Context, _ []byte, _ string) (*expense.Draft, error) {
	if f.cancel != nil {
		f.cancel()
		return nil, ctx.Err()
	}
	return f.draft, f.err
}

func (f *fakeScanner) Close() error { return nil }

var _ = Describe("Pipeline against the receipt service", func() {
	var (
		ctx      context.Context
		filesDir string
		scanner  *fakeScanner
		service  *receipt.Service
		pipeline *ingest.Pipeline
	)

	countFiles := func() int {
		n := 0
		err := filepath.WalkDir(filesDir, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				n++
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir := GinkgoT().TempDir()
		filesDir = filepath.Join(dir, "files")

		db, err := receipt.NewBoltDB(filepath.Join(dir, "ledger.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
		store, err := receipt.NewLocalStorage(filesDir)
		Expect(err).NotTo(HaveOccurred())

		amount := decimal.RequireFromString("18.40")
		scanner = &fakeScanner{draft: &expense.Draft{
			Vendor:   expense.StringPtr("Green Grocer"),
			Amount:   &amount,
			Category: expense.StringPtr("Groceries"),
			Date:     expense.StringPtr("2024-05-11"),
		}}
		issuer := auth.NewIssuer([]byte("integration"), time.Hour)
		service = receipt.NewService(db, scanner, store, issuer, receipt.Config{PublicURL: "http://localhost:8080"})
		pipeline = ingest.NewPipeline(ledger.New(remote.NewLocal(service)), "alice")
	})

	It("stores, extracts, reviews and saves a receipt", func() {
		extracted, err := pipeline.BeginUpload(ctx, bytes.NewReader([]byte("jpeg")), "groceries.jpg")
		Expect(err).NotTo(HaveOccurred())
		Expect(*extracted.Vendor).To(Equal("Green Grocer"))
		Expect(pipeline.State().Phase).To(Equal(ingest.Reviewing))
		Expect(countFiles()).To(Equal(1))

		review := ingest.NewReviewSession()
		Expect(review.Sync(extracted)).To(BeTrue())
		Expect(review.SetAmount("19.00")).To(Succeed())

		saved, err := pipeline.Commit(ctx, review.Draft())
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.ID).NotTo(BeEmpty())
		Expect(pipeline.State().Phase).To(Equal(ingest.Idle))

		expenses, err := service.ListExpenses(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(expenses).To(HaveLen(1))
		Expect(expenses[0].Amount.StringFixed(2)).To(Equal("19.00"))
		Expect(*expenses[0].Category).To(Equal("Groceries"))
		Expect(expenses[0].ReceiptKey).To(Equal(saved.ReceiptKey))
		Expect(expenses[0].HasReceipt()).To(BeTrue())
	})

	It("deletes the stored image when extraction fails", func() {
		scanner.err = errors.New("model unavailable")

		_, err := pipeline.BeginUpload(ctx, bytes.NewReader([]byte("jpeg")), "groceries.jpg")
		var extractionErr *ingest.ExtractionError
		Expect(errors.As(err, &extractionErr)).To(BeTrue())
		Expect(extractionErr.Stage).To(Equal(ingest.StageExtract))
		Expect(pipeline.State().Phase).To(Equal(ingest.Idle))
		Expect(countFiles()).To(BeZero())
	})

	It("deletes the stored image when the caller gives up during extraction", func() {
		cancelCtx, cancel := context.WithCancel(ctx)
		scanner.cancel = cancel

		_, err := pipeline.BeginUpload(cancelCtx, bytes.NewReader([]byte("jpeg")), "groceries.jpg")
		var extractionErr *ingest.ExtractionError
		Expect(errors.As(err, &extractionErr)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("context canceled")))
		Expect(pipeline.State().Phase).To(Equal(ingest.Idle))
		Expect(countFiles()).To(BeZero())
	})

	It("keeps the image when the review is cancelled", func() {
		_, err := pipeline.BeginUpload(ctx, bytes.NewReader([]byte("jpeg")), "groceries.jpg")
		Expect(err).NotTo(HaveOccurred())
		Expect(pipeline.Cancel()).To(Succeed())

		expenses, err := service.ListExpenses(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(expenses).To(BeEmpty())
		Expect(countFiles()).To(Equal(1))
	})

	It("saves a manual entry without a receipt", func() {
		draft := expense.Draft{Vendor: expense.StringPtr("Parking"), Description: expense.StringPtr("")}
		saved, err := ingest.SaveManual(ctx, ledger.New(remote.NewLocal(service)), "alice", draft)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.HasReceipt()).To(BeFalse())
		Expect(saved.Amount.IsZero()).To(BeTrue())
		Expect(saved.Description).To(BeNil())
	})
})
