package expense

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/sgrimes/expenselens/internal/category"
)

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sampleRecord() *Record {
	now := time.Date(2024, 4, 12, 15, 0, 0, 0, time.UTC)
	return &Record{
		ID:          uuid.New(),
		RawText:     "WALMART\nTOTAL $45.67",
		Confidence:  0.91,
		NeedsReview: false,
		ReceiptType: "grocery_store",
		Category:    category.Groceries,
		Source:      SourceStructured,
		ImageFile:   "receipt.png",
		ContentType: "image/png",
		CreatedAt:   now,
		UpdatedAt:   now,
		Vendor: VendorInfo{
			Name:      "Walmart Inc.",
			StoreName: "Walmart",
			City:      "springfield",
			State:     "IL",
		},
		Transaction: TransactionInfo{
			Date:          "2024-04-12",
			PaymentMethod: "Visa",
		},
		Items: []LineItem{
			{Description: "Milk 2% Gal", Total: decp("3.49"), ExpenseCategory: category.Groceries, IsExpense: true},
		},
		Totals: Totals{
			Subtotal: decp("42.50"),
			Tax:      decp("3.17"),
			Total:    decp("45.67"),
		},
		Notes: Notes{RawText: "WALMART\nTOTAL $45.67"},
	}
}

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveRecord and GetRecord", func() {
		It("round-trips every sub-record", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())

			got, err := db.GetRecord(rec.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(got.ID).To(Equal(rec.ID))
			Expect(got.Confidence).To(Equal(rec.Confidence))
			Expect(got.Category).To(Equal(category.Groceries))
			Expect(got.Source).To(Equal(SourceStructured))
			Expect(got.Vendor).To(Equal(rec.Vendor))
			Expect(got.Transaction).To(Equal(rec.Transaction))
			Expect(got.Notes).To(Equal(rec.Notes))
			Expect(got.Items).To(HaveLen(1))
			Expect(got.Items[0].Total.Equal(*rec.Items[0].Total)).To(BeTrue())
			Expect(got.Totals.Total.Equal(*rec.Totals.Total)).To(BeTrue())
		})

		It("preserves nil monetary fields", func() {
			rec := sampleRecord()
			rec.Totals.Tip = nil
			rec.Totals.Total = nil
			Expect(db.SaveRecord(rec)).To(Succeed())

			got, err := db.GetRecord(rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Totals.Tip).To(BeNil())
			Expect(got.Totals.Total).To(BeNil())
		})

		It("overwrites on save with the same ID", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())

			rec.Category = category.Personal
			rec.NeedsReview = true
			Expect(db.SaveRecord(rec)).To(Succeed())

			got, err := db.GetRecord(rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Category).To(Equal(category.Personal))
			Expect(got.NeedsReview).To(BeTrue())

			all, err := db.ListRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("fails for an unknown ID", func() {
			_, err := db.GetRecord(uuid.New())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ListRecords", func() {
		It("returns an empty slice when nothing is stored", func() {
			records, err := db.ListRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("returns every stored record", func() {
			first := sampleRecord()
			second := sampleRecord()
			Expect(db.SaveRecord(first)).To(Succeed())
			Expect(db.SaveRecord(second)).To(Succeed())

			records, err := db.ListRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})

	Describe("DeleteRecord", func() {
		It("removes the record", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())
			Expect(db.DeleteRecord(rec.ID)).To(Succeed())

			_, err := db.GetRecord(rec.ID)
			Expect(err).To(HaveOccurred())
		})

		It("fails for an unknown ID", func() {
			Expect(db.DeleteRecord(uuid.New())).NotTo(Succeed())
		})
	})
})
