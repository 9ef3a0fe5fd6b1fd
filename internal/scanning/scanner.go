package scanning

import "context"

// Image is a single input document handed to a backend
type Image struct {
	Name        string
	Data        []byte
	ContentType string // empty means detect from Data
}

// Word is a recognized word with its position on the page in pixels
type Word struct {
	Text       string
	Left       int
	Top        int
	Width      int
	Height     int
	Confidence float64 // 0..1, 1 when the backend does not report one
}

// ItemData is a line item as reported by an LLM backend
type ItemData struct {
	Description string `json:"description"`
	Quantity    Amount `json:"quantity"`
	UnitPrice   Amount `json:"unit_price"`
	Amount      Amount `json:"amount"`
}

// InvoiceData contains invoice fields already structured by the backend
type InvoiceData struct {
	Vendor string     `json:"vendor"`
	Date   string     `json:"date"` // ISO 8601 when the model complied
	Total  Amount     `json:"total"`
	Items  []ItemData `json:"items"`
}

// Result is the uniform output of every backend
type Result struct {
	Backend    string
	Text       string
	Words      []Word
	Confidence *float64

	// Invoice is set by backends that return structured fields instead of positioned words
	Invoice *InvoiceData
}

// Scanner defines the interface for OCR backends
type Scanner interface {
	// Name returns the backend identifier used in reports
	Name() string
	// Scan recognizes the text in an image or PDF
	Scan(ctx context.Context, img Image) (*Result, error)
	// Close closes the scanner and releases resources
	Close() error
}

// meanConfidence averages word confidences, nil when there are no words
func meanConfidence(words []Word) *float64 {
	if len(words) == 0 {
		return nil
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	mean := sum / float64(len(words))
	return &mean
}
