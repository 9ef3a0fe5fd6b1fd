// Package extraction maps OCR output to invoice fields.
package extraction

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/scanning"
)

// LineItem is one row of an invoice's detail table
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Fields are the structured values read from one invoice
type Fields struct {
	Vendor string
	Date   *time.Time
	Total  decimal.NullDecimal // stated total, invalid when missing or unreadable
	Items  []LineItem
}

// ItemsTotal sums the item amounts. It is invalid when there are no items.
func (f Fields) ItemsTotal() decimal.NullDecimal {
	if len(f.Items) == 0 {
		return decimal.NullDecimal{}
	}
	sum := decimal.Zero
	for _, item := range f.Items {
		sum = sum.Add(item.Amount)
	}
	return decimal.NewNullDecimal(sum)
}

// Options tune the layout reconstruction
type Options struct {
	// MinConfidence drops words recognized with a lower confidence (0..1)
	MinConfidence float64
	// LineTolerance is the vertical distance in pixels under which words share a line
	LineTolerance int
}

// DefaultOptions returns the thresholds that work for 300 DPI scans
func DefaultOptions() Options {
	return Options{
		MinConfidence: 0.6,
		LineTolerance: 20,
	}
}

// Extractor turns scan results into Fields
type Extractor struct {
	opts Options
}

// New creates an Extractor. Zero options fall back to the defaults.
func New(opts Options) *Extractor {
	defaults := DefaultOptions()
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = defaults.LineTolerance
	}
	if opts.MinConfidence < 0 {
		opts.MinConfidence = 0
	}
	return &Extractor{opts: opts}
}

// Extract reads the invoice fields from a scan result
func (e *Extractor) Extract(res *scanning.Result) Fields {
	if res == nil {
		return Fields{}
	}
	if res.Invoice != nil {
		return fromInvoiceData(res.Invoice)
	}

	var fields Fields
	lines := groupLines(res.Words, e.opts.MinConfidence, e.opts.LineTolerance)
	fields.Items, fields.Total = readLayout(lines)

	textLines := splitLines(res.Text)
	if len(textLines) == 0 {
		for _, l := range lines {
			textLines = append(textLines, l.text())
		}
	}
	if !fields.Total.Valid {
		fields.Total = totalFromText(textLines)
	}

	if d, ok := findDate(strings.Join(textLines, "\n")); ok {
		fields.Date = &d
	}
	fields.Vendor = findVendor(textLines)
	return fields
}

// fromInvoiceData maps fields an LLM backend already structured
func fromInvoiceData(data *scanning.InvoiceData) Fields {
	fields := Fields{Vendor: strings.TrimSpace(data.Vendor)}
	if d, ok := ParseDate(data.Date); ok {
		fields.Date = &d
	}
	if total, ok := modelAmount(data.Total); ok {
		fields.Total = decimal.NewNullDecimal(total)
	}
	for _, it := range data.Items {
		amount, ok := modelAmount(it.Amount)
		if !ok {
			continue
		}
		item := LineItem{
			Description: it.Description,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   amount,
			Amount:      amount,
		}
		if q, ok := modelAmount(it.Quantity); ok {
			item.Quantity = q
		}
		if p, ok := modelAmount(it.UnitPrice); ok {
			item.UnitPrice = p
		}
		fields.Items = append(fields.Items, item)
	}
	return fields
}

// modelAmount reads an amount from a model reply. JSON numbers are exact,
// only text goes through the printed notation rules.
func modelAmount(a scanning.Amount) (decimal.Decimal, bool) {
	if a.Number.Valid {
		return a.Number.Decimal, true
	}
	return ParseAmount(a.Text)
}

var documentKeyword = regexp.MustCompile(`(?i)\b(factura|invoice|receipt|recibo|ticket|boleta|albar[aá]n|fecha|date|nif|cif|rfc|ruc|tel|total)\b`)

// vendorSearchLines bounds how far down the page the vendor is looked for
const vendorSearchLines = 5

// findVendor returns the first header line that reads like a business name
func findVendor(textLines []string) string {
	for i, l := range textLines {
		if i >= vendorSearchLines {
			break
		}
		l = strings.TrimSpace(l)
		if documentKeyword.MatchString(l) || countLetters(l) < 2 {
			continue
		}
		return l
	}
	return ""
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func splitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
