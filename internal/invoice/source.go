package invoice

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/extraction"
)

// supportedExtensions are the input formats the scanners can normalize
var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".gif":  true,
	".bmp":  true,
	".heic": true,
	".heif": true,
	".pdf":  true,
}

// Files is the input side of a batch
type Files interface {
	Get(path string) ([]byte, error)
	List() ([]string, error)
}

// ListImages returns the supported files, sorted by name
func ListImages(files Files) ([]string, error) {
	all, err := files.List()
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var names []string
	for _, name := range all {
		ext := strings.ToLower(filepath.Ext(name))
		if !supportedExtensions[ext] {
			slog.Debug("Skipping unsupported file", "file", name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadExpectations reads a CSV of "source,expected" rows. A header row is
// allowed. Amounts use the same notation as printed invoices.
func LoadExpectations(path string) (map[string]decimal.Decimal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening expectations file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	expectations := make(map[string]decimal.Decimal)
	for row := 1; ; row++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading expectations row %d: %w", row, err)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("expectations row %d: want source and expected amount", row)
		}
		source := strings.TrimSpace(fields[0])
		amount, ok := extraction.ParseAmount(fields[1])
		if !ok {
			if row == 1 {
				// header
				continue
			}
			return nil, fmt.Errorf("expectations row %d: invalid amount %q", row, fields[1])
		}
		expectations[source] = amount
	}
	return expectations, nil
}
