package invoice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/scanning"
)

// FieldExtractor maps a scan result to invoice fields
type FieldExtractor interface {
	Extract(res *scanning.Result) extraction.Fields
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Options configure batch processing
type Options struct {
	// Workers bounds the number of images scanned at once
	Workers int
	// Timeout bounds a single scan, 0 means no limit
	Timeout time.Duration
	// Expectations maps source names to their expected amount
	Expectations map[string]decimal.Decimal
}

// Service runs images through a scanner and the field extractor
type Service struct {
	scanner    scanning.Scanner
	extractor  FieldExtractor
	files      Files
	opts       Options
	timeSource TimeSource
}

// NewService creates a new Service with the default time source
func NewService(scanner scanning.Scanner, extractor FieldExtractor, files Files, opts Options) *Service {
	return NewServiceWithDeps(scanner, extractor, files, opts, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(scanner scanning.Scanner, extractor FieldExtractor, files Files, opts Options, timeSrc TimeSource) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		scanner:    scanner,
		extractor:  extractor,
		files:      files,
		opts:       opts,
		timeSource: timeSrc,
	}
}

// Process reads, scans and extracts one image. Failures are recorded on the
// returned record rather than returned.
func (s *Service) Process(ctx context.Context, name string) *Record {
	start := s.timeSource.Now()
	record := &Record{
		Source:      name,
		Backend:     s.scanner.Name(),
		ProcessedAt: start,
	}
	if expected, ok := s.opts.Expectations[name]; ok {
		record.Expected = decimal.NewNullDecimal(expected)
	}

	data, err := s.files.Get(name)
	if err != nil {
		slog.Error("Failed to read invoice", "filename", name, "error", err)
		record.Err = err.Error()
		return record
	}

	scanCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	result, err := s.scanner.Scan(scanCtx, scanning.Image{Name: name, Data: data})
	record.Duration = s.timeSource.Now().Sub(start)
	if err == nil && result == nil {
		err = errors.New("scanner returned no result")
	}
	if err != nil {
		slog.Error("Failed to scan invoice",
			"filename", name,
			"backend", s.scanner.Name(),
			"file_size", len(data),
			"error", err,
		)
		record.Err = err.Error()
		return record
	}

	fields := s.extractor.Extract(result)
	record.RawText = result.Text
	record.Confidence = result.Confidence
	record.Amount = fields.Total
	record.Date = fields.Date
	record.Vendor = fields.Vendor
	record.Items = fields.Items
	record.ItemsTotal = fields.ItemsTotal()

	if !record.Amount.Valid {
		slog.Warn("No amount found", "filename", name, "backend", record.Backend)
	} else {
		slog.Info("Processed invoice",
			"filename", name,
			"amount", record.Amount.Decimal.StringFixed(2),
			"items", len(record.Items),
			"duration", record.Duration,
		)
	}
	return record
}

// ProcessBatch processes the images concurrently and returns their records
// in input order. Only cancellation of ctx fails the batch.
func (s *Service) ProcessBatch(ctx context.Context, names []string) ([]*Record, error) {
	records := make([]*Record, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = s.Process(gctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A scan interrupted by cancellation is recorded as a failure, not a result
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
