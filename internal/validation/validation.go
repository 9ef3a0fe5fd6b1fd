// Package validation checks extracted amounts against each other and
// against expected totals.
package validation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/invoice"
)

// Kind classifies a discrepancy
type Kind string

const (
	// KindMissingAmount flags a scanned invoice whose total could not be read
	KindMissingAmount Kind = "missing_amount"
	// KindItemsMismatch flags line items that do not add up to the stated total
	KindItemsMismatch Kind = "items_mismatch"
	// KindExpectedMismatch flags an invoice whose total differs from its expected amount
	KindExpectedMismatch Kind = "expected_mismatch"
	// KindTotalMismatch flags a batch sum that differs from the expected batch total
	KindTotalMismatch Kind = "total_mismatch"
)

// Discrepancy is a flagged mismatch. Source is empty for batch level findings.
type Discrepancy struct {
	Source   string
	Kind     Kind
	Expected decimal.NullDecimal
	Actual   decimal.NullDecimal
	Detail   string
}

// Failure is a record whose extraction failed
type Failure struct {
	Source string
	Error  string
}

// Report aggregates a batch
type Report struct {
	BatchID     string
	Backend     string
	GeneratedAt time.Time

	Count   int // records in the batch
	Counted int // records contributing an amount
	Sum     decimal.Decimal
	Average decimal.NullDecimal // invalid when nothing was counted

	Expected  decimal.NullDecimal
	Tolerance decimal.Decimal

	Discrepancies []Discrepancy
	Failures      []Failure
}

// Options configure validation
type Options struct {
	// Expected is the expected batch total, if known
	Expected decimal.NullDecimal
	// Tolerance is the largest difference that is not a discrepancy
	Tolerance decimal.Decimal
}

// IDGenerator generates unique batch IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Validator builds validation reports
type Validator struct {
	opts        Options
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewValidator creates a Validator with random batch IDs
func NewValidator(opts Options) *Validator {
	return NewValidatorWithDeps(opts, &uuidGenerator{}, &defaultTimeSource{})
}

// NewValidatorWithDeps creates a Validator with custom dependencies for testing
func NewValidatorWithDeps(opts Options, idGen IDGenerator, timeSrc TimeSource) *Validator {
	opts.Tolerance = opts.Tolerance.Abs()
	return &Validator{
		opts:        opts,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Validate aggregates the records of one batch. Failed records are listed as
// failures and never contribute to the sum or the average.
func (v *Validator) Validate(records []*invoice.Record) *Report {
	report := &Report{
		BatchID:     v.idGenerator.Generate(),
		GeneratedAt: v.timeSource.Now(),
		Count:       len(records),
		Sum:         decimal.Zero,
		Expected:    v.opts.Expected,
		Tolerance:   v.opts.Tolerance,
	}

	for _, r := range records {
		if report.Backend == "" {
			report.Backend = r.Backend
		}

		if r.Failed() {
			report.Failures = append(report.Failures, Failure{Source: r.Source, Error: r.Err})
			continue
		}

		if !r.HasAmount() {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Source:   r.Source,
				Kind:     KindMissingAmount,
				Expected: r.Expected,
				Detail:   "no readable total on the invoice",
			})
			continue
		}

		report.Counted++
		report.Sum = report.Sum.Add(r.Amount.Decimal)

		if r.ItemsTotal.Valid && v.differs(r.ItemsTotal.Decimal, r.Amount.Decimal) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Source:   r.Source,
				Kind:     KindItemsMismatch,
				Expected: r.Amount,
				Actual:   r.ItemsTotal,
				Detail: fmt.Sprintf("line items add up to %s, invoice states %s",
					r.ItemsTotal.Decimal.StringFixed(2), r.Amount.Decimal.StringFixed(2)),
			})
		}

		if r.Expected.Valid && v.differs(r.Amount.Decimal, r.Expected.Decimal) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Source:   r.Source,
				Kind:     KindExpectedMismatch,
				Expected: r.Expected,
				Actual:   r.Amount,
				Detail: fmt.Sprintf("invoice states %s, expected %s",
					r.Amount.Decimal.StringFixed(2), r.Expected.Decimal.StringFixed(2)),
			})
		}
	}

	if report.Counted > 0 {
		avg := report.Sum.Div(decimal.NewFromInt(int64(report.Counted))).Round(2)
		report.Average = decimal.NewNullDecimal(avg)
	}

	if report.Expected.Valid && v.differs(report.Sum, report.Expected.Decimal) {
		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			Kind:     KindTotalMismatch,
			Expected: report.Expected,
			Actual:   decimal.NewNullDecimal(report.Sum),
			Detail: fmt.Sprintf("sum of %d invoices is %s, expected %s (difference %s)",
				report.Counted,
				report.Sum.StringFixed(2),
				report.Expected.Decimal.StringFixed(2),
				report.Sum.Sub(report.Expected.Decimal).StringFixed(2)),
		})
	}

	return report
}

func (v *Validator) differs(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(v.opts.Tolerance)
}

// Difference returns Sum minus Expected, invalid without an expected total
func (r *Report) Difference() decimal.NullDecimal {
	if !r.Expected.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(r.Sum.Sub(r.Expected.Decimal))
}
