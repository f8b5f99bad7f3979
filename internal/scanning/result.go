package scanning

import (
	"context"

	"github.com/shopspring/decimal"
)

// StructuredResult is the six-section document every extraction backend must
// return: receipt type, vendor, transaction, items, totals, notes. It is the
// decode target for the inner JSON payload; the pipeline maps it onto the
// canonical record.
type StructuredResult struct {
	ReceiptType string          `json:"receipt_type"`
	Vendor      VendorInfo      `json:"vendor"`
	Transaction TransactionInfo `json:"transaction"`
	Items       []LineItem      `json:"items"`
	Totals      Totals          `json:"totals"`
	Notes       Notes           `json:"notes"`
}

// VendorInfo identifies the merchant. City arrives lowercase and State as an
// uppercase 2-letter code per the prompt contract; the pipeline re-normalizes
// both anyway since backends drift.
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

// TransactionInfo carries the purchase metadata.
type TransactionInfo struct {
	Date          string            `json:"date"` // YYYY-MM-DD requested
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

// LineItem is one purchased item.
type LineItem struct {
	Description     string           `json:"description"`
	Quantity        *decimal.Decimal `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	Subtotal        *decimal.Decimal `json:"subtotal"`
	Total           *decimal.Decimal `json:"total"`
	TaxCategory     string           `json:"tax_category"`
	ExpenseCategory string           `json:"expense_category"`
	SKU             string           `json:"sku"`
	Discount        *decimal.Decimal `json:"discount"`
	Codes           []string         `json:"codes"`
	IsExpense       bool             `json:"is_expense"`
	NeedsReview     bool             `json:"needs_review"`
}

// Totals holds the receipt's monetary summary. Nil means the field was not
// present on the receipt; backends are told to use null rather than guess.
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

// Notes carries everything that is not a structured field.
type Notes struct {
	Handwriting     string `json:"handwriting"`
	Description     string `json:"description"`
	VehicleID       string `json:"vehicle_id"`
	Mileage         string `json:"mileage"`
	TripLabel       string `json:"trip_label"`
	BusinessPurpose string `json:"business_purpose"`
	RawText         string `json:"raw_text"`
}

// VendorResolved reports whether any usable vendor name was extracted.
func (r *StructuredResult) VendorResolved() bool {
	return r.Vendor.Name != "" || r.Vendor.StoreName != ""
}

// DisplayName prefers the simplified store name over the full vendor string.
func (v VendorInfo) DisplayName() string {
	if v.StoreName != "" {
		return v.StoreName
	}
	return v.Name
}

// ItemCategories collects the per-item expense categories for the classifier.
func (r *StructuredResult) ItemCategories() []string {
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		if it.ExpenseCategory != "" {
			out = append(out, it.ExpenseCategory)
		}
	}
	return out
}

// Extractor is the structured-extraction contract. One attempt per call; the
// caller owns the retry policy.
type Extractor interface {
	// Extract analyzes a receipt image (PNG bytes) plus the recognized text
	// and returns the structured result, or an *ExtractionError.
	Extract(ctx context.Context, image []byte, ocrText string) (*StructuredResult, error)

	// Close releases backend resources.
	Close() error
}
