package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/extraction"
)

// Record is the result of processing one image
type Record struct {
	Source     string              `json:"source"`
	Backend    string              `json:"backend"`
	RawText    string              `json:"raw_text"`
	Amount     decimal.NullDecimal `json:"amount"` // stated total
	Date       *time.Time          `json:"date,omitempty"`
	Vendor     string              `json:"vendor,omitempty"`
	Confidence *float64            `json:"confidence,omitempty"` // 0..1, backend dependent

	Items      []extraction.LineItem `json:"items,omitempty"`
	ItemsTotal decimal.NullDecimal   `json:"items_total"`
	Expected   decimal.NullDecimal   `json:"expected"` // from the expectations file

	Err         string        `json:"error,omitempty"` // set when extraction failed
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// Failed reports whether the image could not be read or scanned
func (r *Record) Failed() bool {
	return r.Err != ""
}

// HasAmount reports whether the record contributes to the batch sum
func (r *Record) HasAmount() bool {
	return !r.Failed() && r.Amount.Valid
}
