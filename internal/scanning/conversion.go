package scanning

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// Normalizer turns any supported input into PNG bytes that every backend accepts
type Normalizer struct {
	// MaxDimension bounds the width and height of the output, 0 keeps the original size
	MaxDimension int
}

// DetectContentType returns the MIME type of data, ignoring parameters
func DetectContentType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.Index(mt, ";"); i != -1 {
		mt = mt[:i]
	}
	return mt
}

// Normalize converts the image to PNG. PDFs are rendered from their first page.
func (n Normalizer) Normalize(img Image) ([]byte, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	mimeType := strings.ToLower(strings.TrimSpace(img.ContentType))
	if mimeType == "" {
		mimeType = DetectContentType(img.Data)
	}

	var (
		decoded image.Image
		err     error
	)
	switch {
	case mimeType == "application/pdf":
		decoded, err = pdfToImage(img.Data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
	case isHEICFormat(img.Data) || isHEICMimeType(mimeType):
		// Go's standard image package doesn't support HEIC
		decoded, err = heic.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		decoded, err = imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported image format %q. Supported formats: JPEG, PNG, GIF, TIFF, BMP, HEIC, HEIF, PDF: %w", mimeType, err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	if n.MaxDimension > 0 {
		b := decoded.Bounds()
		if b.Dx() > n.MaxDimension || b.Dy() > n.MaxDimension {
			decoded = imaging.Fit(decoded, n.MaxDimension, n.MaxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, decoded, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfToImage renders the first page of a PDF (most invoices are single page)
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEICFormat checks the ftyp box brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
