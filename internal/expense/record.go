package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sgrimes/expenselens/internal/category"
)

// Source records which extraction path produced a record.
type Source string

const (
	// SourceStructured means the external extraction service produced the
	// record.
	SourceStructured Source = "structured"
	// SourceHeuristic means the pattern extractor produced it after the
	// structured path failed.
	SourceHeuristic Source = "heuristic"
)

// Record is the canonical receipt representation produced regardless of
// extraction path. ID is assigned once and never changes; Confidence stays
// in [0,1]; NeedsReview is always recomputed from the review rule, never set
// independently; CreatedAt never exceeds UpdatedAt.
type Record struct {
	ID          uuid.UUID         `json:"id"`
	RawText     string            `json:"raw_text"`
	Confidence  float64           `json:"confidence"`
	NeedsReview bool              `json:"needs_review"`
	ReceiptType string            `json:"receipt_type"`
	Category    category.Category `json:"category"`
	Source      Source            `json:"source"`
	ImageFile   string            `json:"image_file"`
	ContentType string            `json:"content_type"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	Vendor      VendorInfo      `json:"vendor"`
	Transaction TransactionInfo `json:"transaction"`
	Items       []LineItem      `json:"items"`
	Totals      Totals          `json:"totals"`
	Notes       Notes           `json:"notes"`
}

// VendorInfo identifies the merchant. City is stored lowercase and State as
// an uppercase 2-letter code.
type VendorInfo struct {
	Name       string `json:"name"`
	StoreName  string `json:"store_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Website    string `json:"website"`
	TaxID      string `json:"tax_id"`
}

// DisplayName prefers the simplified store name over the full vendor string.
func (v VendorInfo) DisplayName() string {
	if v.StoreName != "" {
		return v.StoreName
	}
	return v.Name
}

// Resolved reports whether any vendor name was extracted at all.
func (v VendorInfo) Resolved() bool {
	return v.Name != "" || v.StoreName != ""
}

// Location renders "city, STATE" from whichever parts are present.
func (v VendorInfo) Location() string {
	switch {
	case v.City != "" && v.State != "":
		return v.City + ", " + v.State
	case v.City != "":
		return v.City
	default:
		return v.State
	}
}

// TransactionInfo carries purchase metadata. Date always holds the canonical
// YYYY-MM-DD format regardless of which extraction path ran.
type TransactionInfo struct {
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	TransactionID string            `json:"transaction_id"`
	PaymentMethod string            `json:"payment_method"`
	CardLastFour  string            `json:"card_last_four"`
	AuthCode      string            `json:"auth_code"`
	RegisterID    string            `json:"register_id"`
	CustomerID    string            `json:"customer_id"`
	Promotions    []string          `json:"promotions"`
	Codes         map[string]string `json:"codes"`
}

// LineItem is one purchased item on the receipt.
type LineItem struct {
	Description     string            `json:"description"`
	Quantity        *decimal.Decimal  `json:"quantity"`
	UnitPrice       *decimal.Decimal  `json:"unit_price"`
	Subtotal        *decimal.Decimal  `json:"subtotal"`
	Total           *decimal.Decimal  `json:"total"`
	TaxCategory     string            `json:"tax_category"`
	ExpenseCategory category.Category `json:"expense_category"`
	SKU             string            `json:"sku"`
	Discount        *decimal.Decimal  `json:"discount"`
	Codes           []string          `json:"codes"`
	IsExpense       bool              `json:"is_expense"`
	NeedsReview     bool              `json:"needs_review"`
}

// Totals holds the receipt's monetary summary. Nil means the field was not
// present on the receipt.
type Totals struct {
	Subtotal *decimal.Decimal `json:"subtotal"`
	Tax      *decimal.Decimal `json:"tax"`
	TaxRate  *decimal.Decimal `json:"tax_rate"`
	Tip      *decimal.Decimal `json:"tip"`
	Discount *decimal.Decimal `json:"discount"`
	Total    *decimal.Decimal `json:"total"`
	CashBack *decimal.Decimal `json:"cash_back"`
	Change   *decimal.Decimal `json:"change"`
}

// Notes carries free-form context that is not a structured field.
type Notes struct {
	Handwriting     string `json:"handwriting"`
	Description     string `json:"description"`
	VehicleID       string `json:"vehicle_id"`
	Mileage         string `json:"mileage"`
	TripLabel       string `json:"trip_label"`
	BusinessPurpose string `json:"business_purpose"`
	RawText         string `json:"raw_text"`
}

// AnyItemFlagged reports whether any line item was marked for review by the
// extraction.
func (r *Record) AnyItemFlagged() bool {
	for _, it := range r.Items {
		if it.NeedsReview {
			return true
		}
	}
	return false
}

// TotalMissing reports whether the record's total is absent or zero.
func (r *Record) TotalMissing() bool {
	return r.Totals.Total == nil || r.Totals.Total.IsZero()
}
