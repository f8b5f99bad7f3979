package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildResultSchema returns the JSON Schema (draft 2020-12 subset) for the
// inner payload. It is compiled once at package init and used to validate
// every decoded payload before it is unmarshaled into StructuredResult.
func buildResultSchema() map[string]any {
	str := func() map[string]any {
		return map[string]any{"type": []string{"string", "null"}}
	}
	num := func() map[string]any {
		return map[string]any{"type": []string{"number", "null"}}
	}
	boolean := func() map[string]any {
		return map[string]any{"type": []string{"boolean", "null"}}
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description":      str(),
			"quantity":         num(),
			"unit_price":       num(),
			"subtotal":         num(),
			"total":            num(),
			"tax_category":     str(),
			"expense_category": str(),
			"sku":              str(),
			"discount":         num(),
			"codes":            map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
			"is_expense":       boolean(),
			"needs_review":     boolean(),
		},
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"receipt_type", "vendor", "transaction", "items", "totals", "notes"},
		"properties": map[string]any{
			"receipt_type": str(),
			"vendor": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"name": str(), "store_name": str(), "address": str(),
					"city": str(), "state": str(), "postal_code": str(),
					"phone": str(), "website": str(), "tax_id": str(),
				},
			},
			"transaction": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"date": str(), "time": str(), "transaction_id": str(),
					"payment_method": str(), "card_last_four": str(),
					"auth_code": str(), "register_id": str(), "customer_id": str(),
					"promotions": map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
					"codes":      map[string]any{"type": []string{"object", "null"}},
				},
			},
			"items": map[string]any{
				"type":  []string{"array", "null"},
				"items": item,
			},
			"totals": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"subtotal": num(), "tax": num(), "tax_rate": num(),
					"tip": num(), "discount": num(), "total": num(),
					"cash_back": num(), "change": num(),
				},
			},
			"notes": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"handwriting": str(), "description": str(), "vehicle_id": str(),
					"mileage": str(), "trip_label": str(), "business_purpose": str(),
					"raw_text": str(),
				},
			},
		},
	}
}

var resultSchema = mustCompileSchema(buildResultSchema())

func mustCompileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal result schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add result schema: %v", err))
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		panic(fmt.Sprintf("compile result schema: %v", err))
	}
	return schema
}

// validateInner checks a decoded payload against the six-section schema.
func validateInner(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := resultSchema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}
