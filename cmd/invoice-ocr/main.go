package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/invoice"
	"github.com/zombor/invoice-ocr/internal/report"
	"github.com/zombor/invoice-ocr/internal/scanning"
	"github.com/zombor/invoice-ocr/internal/storage"
	"github.com/zombor/invoice-ocr/internal/validation"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	input         string
	output        string
	backend       string
	credentials   string
	lang          string
	psm           int
	tessdata      string
	azureEndpoint string
	azureKey      string
	geminiKey     string
	geminiModel   string
	ollamaURL     string
	ollamaModel   string
	expectedTotal string
	expectations  string
	tolerance     string
	workers       int
	timeout       time.Duration
	minConfidence float64
	lineTolerance int
	maxDimension  int
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Values from .env sit below real environment variables and flags
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("invoice-ocr")
	var (
		input         = fs.StringLong("input", "facturas_a_procesar", "Directory of invoice images to process")
		output        = fs.StringLong("output", "reportes", "Directory the reports are written to")
		backend       = fs.StringEnumLong("backend", "OCR backend: tesseract, google, azure, gemini or ollama", "tesseract", "google", "azure", "gemini", "ollama")
		credentials   = fs.StringLong("credentials", "", "Google service account file (defaults to application default credentials)")
		lang          = fs.StringLong("lang", "", "Recognition language, tesseract codes joined by '+' (spa+eng) or an ISO code for google and azure")
		psm           = fs.IntLong("psm", 0, "Tesseract page segmentation mode, 0 keeps the default")
		tessdata      = fs.StringLong("tessdata", "", "Tesseract tessdata directory")
		azureEndpoint = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey      = fs.StringLong("azure-key", "", "Azure Computer Vision key")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		expectedTotal = fs.StringLong("expected-total", "", "Expected sum of the batch, a plain decimal (30.00 or 30,00)")
		expectations  = fs.StringLong("expectations", "", "CSV file of source,expected amounts per invoice")
		tolerance     = fs.StringLong("tolerance", "0.00", "Largest difference that is not reported")
		workers       = fs.IntLong("workers", 4, "Images scanned concurrently")
		timeout       = fs.DurationLong("timeout", 60*time.Second, "Time limit for scanning one image")
		minConfidence = fs.Float64Long("min-confidence", 0.6, "Ignore words recognized with a lower confidence (0..1)")
		lineTolerance = fs.IntLong("line-tolerance", 20, "Vertical distance in pixels under which words share a line")
		maxDimension  = fs.IntLong("max-dimension", 2400, "Downscale images larger than this many pixels, 0 keeps the size")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_             = fs.StringLong("config", "", "Config file of flag values")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_OCR"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, config{
		input:         *input,
		output:        *output,
		backend:       *backend,
		credentials:   *credentials,
		lang:          *lang,
		psm:           *psm,
		tessdata:      *tessdata,
		azureEndpoint: *azureEndpoint,
		azureKey:      *azureKey,
		geminiKey:     *geminiKey,
		geminiModel:   *geminiModel,
		ollamaURL:     *ollamaURL,
		ollamaModel:   *ollamaModel,
		expectedTotal: *expectedTotal,
		expectations:  *expectations,
		tolerance:     *tolerance,
		workers:       *workers,
		timeout:       *timeout,
		minConfidence: *minConfidence,
		lineTolerance: *lineTolerance,
		maxDimension:  *maxDimension,
	})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg config) int {
	validationOpts, err := parseValidationOptions(cfg)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}

	var expectations map[string]decimal.Decimal
	if cfg.expectations != "" {
		expectations, err = invoice.LoadExpectations(cfg.expectations)
		if err != nil {
			slog.Error("Failed to load expectations", "path", cfg.expectations, "error", err)
			return 1
		}
		slog.Info("Loaded expectations", "count", len(expectations))
	}

	input, err := storage.OpenLocalStorage(cfg.input)
	if err != nil {
		slog.Error("Failed to open input directory", "path", cfg.input, "error", err)
		return 1
	}
	names, err := invoice.ListImages(input)
	if err != nil {
		slog.Error("Failed to list input directory", "path", cfg.input, "error", err)
		return 1
	}
	if len(names) == 0 {
		slog.Warn("No images found", "path", cfg.input)
	}

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize scanner", "backend", cfg.backend, "error", err)
		return 1
	}
	defer scanner.Close()

	extractor := extraction.New(extraction.Options{
		MinConfidence: cfg.minConfidence,
		LineTolerance: cfg.lineTolerance,
	})
	svc := invoice.NewService(scanner, extractor, input, invoice.Options{
		Workers:      cfg.workers,
		Timeout:      cfg.timeout,
		Expectations: expectations,
	})

	slog.Info("Processing batch...", "input", input.Path(), "images", len(names), "backend", scanner.Name(), "workers", cfg.workers)
	records, err := svc.ProcessBatch(ctx, names)
	if err != nil {
		slog.Error("Batch interrupted, no reports written", "error", err)
		return 1
	}

	rep := validation.NewValidator(validationOpts).Validate(records)
	if rep.Backend == "" {
		rep.Backend = scanner.Name()
	}

	output, err := storage.NewLocalStorage(cfg.output)
	if err != nil {
		slog.Error("Failed to initialize output directory", "path", cfg.output, "error", err)
		return 1
	}
	paths, err := report.NewWriter(output).Write(records, rep)
	if err != nil {
		slog.Error("Failed to write reports", "error", err)
		return 1
	}

	slog.Info("Batch complete",
		"batch", rep.BatchID,
		"invoices", rep.Count,
		"counted", rep.Counted,
		"failed", len(rep.Failures),
		"discrepancies", len(rep.Discrepancies),
		"sum", rep.Sum.StringFixed(2),
		"output", output.Path(),
		"reports", strings.Join(paths, ", "),
	)
	return 0
}

func parseValidationOptions(cfg config) (validation.Options, error) {
	var opts validation.Options
	if cfg.expectedTotal != "" {
		expected, err := parseDecimalFlag(cfg.expectedTotal)
		if err != nil {
			return opts, fmt.Errorf("invalid expected total %q: %w", cfg.expectedTotal, err)
		}
		opts.Expected = decimal.NewNullDecimal(expected)
	}
	if cfg.tolerance != "" {
		tolerance, err := parseDecimalFlag(cfg.tolerance)
		if err != nil {
			return opts, fmt.Errorf("invalid tolerance %q: %w", cfg.tolerance, err)
		}
		if tolerance.IsNegative() {
			return opts, fmt.Errorf("invalid tolerance %q: must not be negative", cfg.tolerance)
		}
		opts.Tolerance = tolerance
	}
	return opts, nil
}

// parseDecimalFlag reads a plain decimal. A single ',' is accepted as the
// decimal point, grouping separators are not.
func parseDecimalFlag(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

func newScanner(ctx context.Context, cfg config) (scanning.Scanner, error) {
	normalizer := scanning.Normalizer{MaxDimension: cfg.maxDimension}

	switch cfg.backend {
	case "tesseract":
		var languages []string
		if cfg.lang != "" {
			languages = strings.Split(cfg.lang, "+")
		}
		slog.Info("Initializing Tesseract scanner...", "languages", languages, "psm", cfg.psm)
		return scanning.NewTesseract(scanning.TesseractOptions{
			Languages:      languages,
			PageSegMode:    cfg.psm,
			TessdataPrefix: cfg.tessdata,
		}, normalizer)
	case "google":
		var hints []string
		if cfg.lang != "" {
			hints = strings.Split(cfg.lang, ",")
		}
		slog.Info("Initializing Google Vision scanner...", "credentials", cfg.credentials)
		return scanning.NewGoogleVision(ctx, cfg.credentials, hints, normalizer)
	case "azure":
		slog.Info("Initializing Azure scanner...", "endpoint", cfg.azureEndpoint)
		return scanning.NewAzure(cfg.azureEndpoint, cfg.azureKey, cfg.lang, normalizer)
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(ctx, apiKey, cfg.geminiModel, normalizer)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel, normalizer)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.backend)
	}
}
