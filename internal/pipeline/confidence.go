package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/sgrimes/expenselens/internal/scanning"
)

// Rubric weights. The shape of the score (weighted presence and
// completeness, normalized to [0,1]) is the contract; the exact numbers are
// tuning constants.
const (
	weightVendor      = 15.0
	weightLocation    = 5.0
	weightDate        = 10.0
	weightPayment     = 5.0
	weightTotal       = 25.0
	weightSubtotalTax = 10.0
	weightItems       = 15.0
	weightItemDetail  = 5.0
	weightReceiptType = 10.0

	penaltyFlaggedItem = 5.0

	maxScore = weightVendor + weightLocation + weightDate + weightPayment +
		weightTotal + weightSubtotalTax + weightItems + weightItemDetail +
		weightReceiptType
)

// reviewThreshold is the score below which a record always goes to a human.
const reviewThreshold = 0.7

// heuristicConfidence is the fixed trust carried by fallback records. It is
// deliberately conservative: below the review threshold, always.
const heuristicConfidence = 0.35

// scoreResult computes the normalized [0,1] trust score for a structured
// extraction result by awarding weight for each field family that came back
// populated and deducting for items the extraction itself flagged.
func scoreResult(r *scanning.StructuredResult) float64 {
	var earned float64

	if r.VendorResolved() {
		earned += weightVendor
	}
	if r.Vendor.City != "" || r.Vendor.State != "" || r.Vendor.Address != "" {
		earned += weightLocation
	}
	if r.Transaction.Date != "" {
		earned += weightDate
	}
	if r.Transaction.PaymentMethod != "" {
		earned += weightPayment
	}
	if present(r.Totals.Total) {
		earned += weightTotal
	}
	if present(r.Totals.Subtotal) || present(r.Totals.Tax) {
		earned += weightSubtotalTax
	}
	if len(r.Items) > 0 {
		earned += weightItems
		earned += weightItemDetail * itemCompleteness(r.Items)
	}
	if r.ReceiptType != "" {
		earned += weightReceiptType
	}

	for _, it := range r.Items {
		if it.NeedsReview {
			earned -= penaltyFlaggedItem
		}
	}

	return clamp01(earned / maxScore)
}

// itemCompleteness is the fraction of items carrying both a description and
// a price.
func itemCompleteness(items []scanning.LineItem) float64 {
	complete := 0
	for _, it := range items {
		if it.Description != "" && (present(it.Total) || present(it.UnitPrice)) {
			complete++
		}
	}
	return float64(complete) / float64(len(items))
}

// needsReview applies the routing rule shared by both extraction paths:
// review when the score is low, the total is missing or zero, the vendor is
// unresolved, or any item was individually flagged.
func needsReview(score float64, total *decimal.Decimal, vendorResolved, anyItemFlagged bool) bool {
	if score < reviewThreshold {
		return true
	}
	if total == nil || total.IsZero() {
		return true
	}
	if !vendorResolved {
		return true
	}
	return anyItemFlagged
}

func present(d *decimal.Decimal) bool {
	return d != nil && !d.IsZero()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
