package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOptions configures the local Tesseract backend
type TesseractOptions struct {
	Languages      []string
	PageSegMode    int    // 0 keeps the tesseract default
	TessdataPrefix string // empty uses TESSDATA_PREFIX or the compiled-in path
}

// Tesseract implements the Scanner interface using a local Tesseract install
type Tesseract struct {
	opts       TesseractOptions
	normalizer Normalizer
	recognize  func(data []byte) (string, []gosseract.BoundingBox, error)
}

// NewTesseract creates a new Tesseract Scanner instance
func NewTesseract(opts TesseractOptions, normalizer Normalizer) (*Tesseract, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"spa"}
	}
	if opts.PageSegMode < 0 || opts.PageSegMode > 13 {
		return nil, fmt.Errorf("invalid page segmentation mode %d", opts.PageSegMode)
	}
	t := &Tesseract{
		opts:       opts,
		normalizer: normalizer,
	}
	t.recognize = t.runTesseract
	return t, nil
}

// Name returns the backend identifier
func (t *Tesseract) Name() string { return "tesseract" }

type recognition struct {
	text  string
	boxes []gosseract.BoundingBox
	err   error
}

// Scan runs tesseract on the image. Recognition cannot be interrupted, so a
// cancelled scan returns right away and the client is released in the
// background once tesseract finishes.
func (t *Tesseract) Scan(ctx context.Context, img Image) (*Result, error) {
	data, err := t.normalizer.Normalize(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan recognition, 1)
	go func() {
		text, boxes, err := t.recognize(data)
		done <- recognition{text: text, boxes: boxes, err: err}
	}()

	var r recognition
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recognize text: %w", ctx.Err())
	case r = <-done:
	}
	if r.err != nil {
		return nil, r.err
	}

	words := wordsFromBoxes(r.boxes)
	return &Result{
		Backend:    t.Name(),
		Text:       strings.TrimSpace(r.text),
		Words:      words,
		Confidence: meanConfidence(words),
	}, nil
}

// runTesseract recognizes one image. A client is created per call since
// gosseract clients must not be shared between goroutines.
func (t *Tesseract) runTesseract(data []byte) (string, []gosseract.BoundingBox, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if t.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.opts.TessdataPrefix); err != nil {
			return "", nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.opts.Languages...); err != nil {
		return "", nil, fmt.Errorf("set languages: %w", err)
	}
	if t.opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(t.opts.PageSegMode)); err != nil {
			return "", nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", nil, fmt.Errorf("recognize text: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", nil, fmt.Errorf("recognize words: %w", err)
	}
	return text, boxes, nil
}

// Close is a no-op, clients are released after every scan
func (t *Tesseract) Close() error {
	return nil
}

func wordsFromBoxes(boxes []gosseract.BoundingBox) []Word {
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text:       text,
			Left:       b.Box.Min.X,
			Top:        b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Confidence: b.Confidence / 100.0,
		})
	}
	return words
}
