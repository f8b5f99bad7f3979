package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// generateEnvelope is the outer response shape of the generate-style wire
// format: the structured payload arrives as a JSON string inside it.
type generateEnvelope struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// decodeEnvelope decodes the outer generate-API response and returns the
// inner payload string. Envelope failures are reported separately from inner
// payload failures so schema drift and transport drift stay distinguishable.
func decodeEnvelope(raw []byte) (string, error) {
	var env generateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decoding response envelope: %w", err)
	}
	if strings.TrimSpace(env.Response) == "" {
		return "", fmt.Errorf("response envelope has no payload")
	}
	return env.Response, nil
}

// stripFences removes a Markdown code fence around a JSON payload and cuts
// the text down to the outermost JSON object. Models wrap their output in
// fences despite being told not to.
func stripFences(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in payload")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("unterminated JSON object in payload")
	}
	return text[start : end+1], nil
}

// decodeInner turns the payload string into a StructuredResult. The payload
// is validated against the six-section schema first so a malformed document
// fails with a precise reason instead of a half-filled struct.
func decodeInner(payload string) (*StructuredResult, error) {
	text, err := stripFences(payload)
	if err != nil {
		return nil, err
	}
	doc := []byte(text)

	if err := validateInner(doc); err != nil {
		return nil, err
	}

	var result StructuredResult
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling structured result: %w", err)
	}

	normalizeResult(&result)
	return &result, nil
}

// normalizeResult trims the fields downstream code keys on. Deeper
// normalization (city casing, date format) happens in the pipeline mapping.
func normalizeResult(r *StructuredResult) {
	r.ReceiptType = strings.TrimSpace(r.ReceiptType)
	r.Vendor.Name = strings.TrimSpace(r.Vendor.Name)
	r.Vendor.StoreName = strings.TrimSpace(r.Vendor.StoreName)
	r.Transaction.Date = strings.TrimSpace(r.Transaction.Date)
	for i := range r.Items {
		r.Items[i].Description = strings.TrimSpace(r.Items[i].Description)
	}
}
