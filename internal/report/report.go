// Package report renders a validated batch as CSV and plain text files.
package report

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/invoice"
	"github.com/zombor/invoice-ocr/internal/storage"
	"github.com/zombor/invoice-ocr/internal/validation"
)

// Output file names
const (
	RecordsFile       = "records.csv"
	DiscrepanciesFile = "discrepancies.csv"
	ItemsFile         = "items.csv"
	TextFile          = "report.txt"
)

// Record status values
const (
	StatusOK            = "ok"
	StatusMissingAmount = "missing_amount"
	StatusFailed        = "failed"
)

var (
	recordsHeader       = []string{"source", "backend", "status", "vendor", "date", "amount", "items_total", "item_count", "expected", "confidence", "error", "raw_text"}
	discrepanciesHeader = []string{"source", "kind", "expected", "actual", "detail"}
	itemsHeader         = []string{"source", "line", "description", "quantity", "unit_price", "amount"}
)

//go:embed report.tmpl
var textTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": formatNullDecimal,
	"orNA": func(s string) string {
		if s == "" {
			return "n/a"
		}
		return s
	},
}).Parse(textTemplate))

// Writer saves reports to a storage
type Writer struct {
	storage storage.Storage
}

// NewWriter creates a new Writer
func NewWriter(s storage.Storage) *Writer {
	return &Writer{storage: s}
}

// Write renders every report file and saves it. It returns the saved paths.
func (w *Writer) Write(records []*invoice.Record, rep *validation.Report) ([]string, error) {
	renderers := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{RecordsFile, func() ([]byte, error) { return RecordsCSV(records) }},
		{DiscrepanciesFile, func() ([]byte, error) { return DiscrepanciesCSV(rep) }},
		{ItemsFile, func() ([]byte, error) { return ItemsCSV(records) }},
		{TextFile, func() ([]byte, error) { return Text(records, rep) }},
	}

	paths := make([]string, 0, len(renderers))
	for _, r := range renderers {
		data, err := r.render()
		if err != nil {
			return paths, fmt.Errorf("rendering %s: %w", r.name, err)
		}
		path, err := w.storage.Save(r.name, data)
		if err != nil {
			return paths, fmt.Errorf("saving %s: %w", r.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Status classifies a record for the records file
func Status(r *invoice.Record) string {
	switch {
	case r.Failed():
		return StatusFailed
	case !r.Amount.Valid:
		return StatusMissingAmount
	default:
		return StatusOK
	}
}

// RecordsCSV renders one row per record. The columns are the same for every
// backend, absent values are left empty.
func RecordsCSV(records []*invoice.Record) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Source,
			r.Backend,
			Status(r),
			r.Vendor,
			formatDate(r.Date),
			formatNullDecimalCell(r.Amount),
			formatNullDecimalCell(r.ItemsTotal),
			strconv.Itoa(len(r.Items)),
			formatNullDecimalCell(r.Expected),
			formatConfidence(r.Confidence),
			r.Err,
			r.RawText,
		})
	}
	return encodeCSV(recordsHeader, rows)
}

// DiscrepanciesCSV renders one row per discrepancy
func DiscrepanciesCSV(rep *validation.Report) ([]byte, error) {
	rows := make([][]string, 0, len(rep.Discrepancies))
	for _, d := range rep.Discrepancies {
		rows = append(rows, []string{
			d.Source,
			string(d.Kind),
			formatNullDecimalCell(d.Expected),
			formatNullDecimalCell(d.Actual),
			d.Detail,
		})
	}
	return encodeCSV(discrepanciesHeader, rows)
}

// ItemsCSV renders every extracted line item, numbered from 1 per source
func ItemsCSV(records []*invoice.Record) ([]byte, error) {
	var rows [][]string
	for _, r := range records {
		for i, item := range r.Items {
			rows = append(rows, []string{
				r.Source,
				strconv.Itoa(i + 1),
				item.Description,
				item.Quantity.String(),
				item.UnitPrice.StringFixed(2),
				item.Amount.StringFixed(2),
			})
		}
	}
	return encodeCSV(itemsHeader, rows)
}

type textRecord struct {
	*invoice.Record
	Date       string
	Consistent string
}

type textData struct {
	Report     *validation.Report
	Generated  string
	Difference decimal.NullDecimal
	Records    []textRecord
}

// Text renders the human readable report
func Text(records []*invoice.Record, rep *validation.Report) ([]byte, error) {
	flagged := make(map[string]bool)
	for _, d := range rep.Discrepancies {
		if d.Source != "" {
			flagged[d.Source] = true
		}
	}

	data := textData{
		Report:     rep,
		Generated:  rep.GeneratedAt.Format(time.RFC3339),
		Difference: rep.Difference(),
		Records:    make([]textRecord, 0, len(records)),
	}
	for _, r := range records {
		consistent := "yes"
		if r.Failed() || flagged[r.Source] {
			consistent = "no"
		}
		data.Records = append(data.Records, textRecord{
			Record:     r,
			Date:       formatDate(r.Date),
			Consistent: consistent,
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return d.Decimal.StringFixed(2)
}

func formatNullDecimalCell(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatConfidence(c *float64) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(*c, 'f', 2, 64)
}
