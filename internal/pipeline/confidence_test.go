package pipeline

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/sgrimes/expenselens/internal/scanning"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func fullResult() *scanning.StructuredResult {
	return &scanning.StructuredResult{
		ReceiptType: "grocery_store",
		Vendor: scanning.VendorInfo{
			Name:      "Walmart Inc.",
			StoreName: "Walmart",
			City:      "springfield",
			State:     "IL",
		},
		Transaction: scanning.TransactionInfo{
			Date:          "2024-04-12",
			PaymentMethod: "Visa",
		},
		Items: []scanning.LineItem{
			{Description: "Milk 2% Gal", Total: dec("3.49"), ExpenseCategory: "Groceries & Food", IsExpense: true},
			{Description: "Bread Wheat", Total: dec("2.18"), ExpenseCategory: "Groceries & Food", IsExpense: true},
		},
		Totals: scanning.Totals{
			Subtotal: dec("42.50"),
			Tax:      dec("3.17"),
			Total:    dec("45.67"),
		},
	}
}

var _ = Describe("scoreResult", func() {
	It("scores a fully populated result at the top of the range", func() {
		score := scoreResult(fullResult())
		Expect(score).To(BeNumerically(">=", reviewThreshold))
		Expect(score).To(BeNumerically("<=", 1.0))
	})

	It("scores an empty result at zero", func() {
		Expect(scoreResult(&scanning.StructuredResult{})).To(BeZero())
	})

	It("drops the score when the total is missing", func() {
		full := scoreResult(fullResult())

		r := fullResult()
		r.Totals.Total = nil
		Expect(scoreResult(r)).To(BeNumerically("<", full))
	})

	It("penalizes items the extraction flagged", func() {
		clean := scoreResult(fullResult())

		r := fullResult()
		r.Items[0].NeedsReview = true
		Expect(scoreResult(r)).To(BeNumerically("<", clean))
	})

	It("awards partial item credit for incomplete items", func() {
		complete := fullResult()
		incomplete := fullResult()
		incomplete.Items[1].Total = nil
		incomplete.Items[1].UnitPrice = nil
		Expect(scoreResult(incomplete)).To(BeNumerically("<", scoreResult(complete)))
	})

	It("never leaves the unit interval", func() {
		r := fullResult()
		for i := range r.Items {
			r.Items[i].NeedsReview = true
		}
		score := scoreResult(r)
		Expect(score).To(BeNumerically(">=", 0))
		Expect(score).To(BeNumerically("<=", 1))
	})
})

var _ = Describe("needsReview", func() {
	It("passes a confident complete record", func() {
		Expect(needsReview(0.9, dec("45.67"), true, false)).To(BeFalse())
	})

	It("flags a low score", func() {
		Expect(needsReview(0.69, dec("45.67"), true, false)).To(BeTrue())
	})

	It("flags a missing or zero total regardless of score", func() {
		Expect(needsReview(0.95, nil, true, false)).To(BeTrue())
		Expect(needsReview(0.95, dec("0"), true, false)).To(BeTrue())
	})

	It("flags an unresolved vendor", func() {
		Expect(needsReview(0.95, dec("45.67"), false, false)).To(BeTrue())
	})

	It("flags when any item was flagged", func() {
		Expect(needsReview(0.95, dec("45.67"), true, true)).To(BeTrue())
	})
})

var _ = Describe("fallback confidence", func() {
	It("always lands below the review threshold", func() {
		Expect(heuristicConfidence).To(BeNumerically("<", reviewThreshold))
	})
})
