package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value as written by a model. JSON numbers always use
// '.' as the decimal point and are kept as exact decimals. Strings such as
// "1.234,56" keep their literal text for locale aware parsing.
type Amount struct {
	Text   string              // literal as written, canonical for numbers
	Number decimal.NullDecimal // set when the model wrote a JSON number
}

// TextAmount returns an Amount written as text
func TextAmount(s string) Amount {
	return Amount{Text: s}
}

// NumberAmount returns an Amount written as a JSON number
func NumberAmount(d decimal.Decimal) Amount {
	return Amount{Text: d.String(), Number: decimal.NewNullDecimal(d)}
}

// Empty reports whether the model left the amount out
func (a Amount) Empty() bool {
	return a.Text == "" && !a.Number.Valid
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = Amount{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("unmarshaling amount: %w", err)
		}
		*a = TextAmount(strings.TrimSpace(s))
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	*a = NumberAmount(d)
	return nil
}

// dateLayouts are tried in order when a model ignores the ISO instruction
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
}

// stripCodeFence removes markdown code fences around a model reply
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseInvoiceJSON parses the JSON reply of an LLM backend
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	text = stripCodeFence(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var data InvoiceData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Normalize the date when we recognize it. Anything else is left for the
	// extractor to reject, a missing date is not replaced with today.
	data.Date = strings.TrimSpace(data.Date)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, data.Date); err == nil {
			data.Date = d.Format("2006-01-02")
			break
		}
	}

	data.Vendor = strings.TrimSpace(data.Vendor)

	items := data.Items[:0]
	for _, item := range data.Items {
		item.Description = strings.TrimSpace(item.Description)
		if item.Description == "" && item.Amount.Empty() {
			continue
		}
		items = append(items, item)
	}
	data.Items = items

	return &data, nil
}
