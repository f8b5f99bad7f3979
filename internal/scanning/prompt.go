package scanning

import (
	"strings"

	"github.com/sgrimes/expenselens/internal/category"
)

// PromptVersion identifies the instruction template in logs so responses can
// be correlated with the contract that produced them.
const PromptVersion = "v3"

// buildPrompt composes the fixed instruction template sent to every
// extraction backend. The recognized text is appended when available so
// text-capable models can cross-check the image.
func buildPrompt(ocrText string) string {
	var b strings.Builder
	b.WriteString(receiptPrompt)
	if t := strings.TrimSpace(ocrText); t != "" {
		b.WriteString("\n\nText recognized on the receipt (may contain errors, trust the image over it):\n")
		if len(t) > 3000 {
			b.WriteString(t[:3000])
			b.WriteString("\n...(truncated)")
		} else {
			b.WriteString(t)
		}
	}
	return b.String()
}

var receiptPrompt = `You are analyzing a photographed receipt. Read every piece of text on it and return ONLY one JSON object with exactly these six top-level sections:

{
  "receipt_type": "short description of the kind of business, e.g. grocery store, restaurant, gas station",
  "vendor": {
    "name": "full business name as printed",
    "store_name": "simplified common name, e.g. Walmart",
    "address": "street address",
    "city": "city",
    "state": "state",
    "postal_code": "ZIP or postal code",
    "phone": "phone number",
    "website": "website if printed",
    "tax_id": "tax or VAT id if printed"
  },
  "transaction": {
    "date": "YYYY-MM-DD",
    "time": "HH:MM if printed",
    "transaction_id": "receipt or transaction number",
    "payment_method": "cash, credit, debit, or card brand",
    "card_last_four": "last four digits of the card",
    "auth_code": "authorization code",
    "register_id": "register or cashier id",
    "customer_id": "customer or loyalty id",
    "promotions": ["promotion texts"],
    "codes": {"printed code": "its meaning if stated"}
  },
  "items": [
    {
      "description": "item name",
      "quantity": 1,
      "unit_price": 0.00,
      "subtotal": 0.00,
      "total": 0.00,
      "tax_category": "tax code letter or label printed next to the item",
      "expense_category": "one of the allowed categories below",
      "sku": "item code",
      "discount": 0.00,
      "codes": ["codes printed on the item line"],
      "is_expense": true,
      "needs_review": false
    }
  ],
  "totals": {
    "subtotal": 0.00,
    "tax": 0.00,
    "tax_rate": 0.00,
    "tip": 0.00,
    "discount": 0.00,
    "total": 0.00,
    "cash_back": 0.00,
    "change": 0.00
  },
  "notes": {
    "handwriting": "transcription of any handwritten text",
    "description": "one-line description of the purchase",
    "vehicle_id": "vehicle id if this is a fuel or fleet receipt",
    "mileage": "odometer reading if handwritten or printed",
    "trip_label": "trip name if noted",
    "business_purpose": "business purpose if noted",
    "raw_text": "all text on the receipt, line by line"
  }
}

Formatting rules:
- Dates must be YYYY-MM-DD. City must be lowercase. State must be an uppercase 2-letter code.
- All monetary and quantity fields must be JSON numbers, never strings.
- Booleans must be JSON booleans, never strings.
- Use null for any field you cannot read. Never guess.
- Set an item's "needs_review" to true when its text is partially unreadable.

Allowed expense categories (use exactly one of these per item): ` +
	strings.Join(category.AsStringSlice(), ", ") + `.

Return ONLY the JSON object. No explanations, no markdown code blocks.`
