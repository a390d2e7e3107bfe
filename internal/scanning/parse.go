package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// stripCodeFence removes markdown code fences the model may wrap around JSON
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseInvoiceJSON parses a model reply into InvoiceData. Only the fifteen
// line item fields and the three header fields are accepted; a reply without
// a lineItems array is rejected.
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var data InvoiceData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if data.LineItems == nil {
		return nil, errors.New("response has no lineItems array")
	}

	return &data, nil
}
