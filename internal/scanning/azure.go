package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Azure implements the Scanner interface using Azure Computer Vision OCR
type Azure struct {
	client     computervision.BaseClient
	language   computervision.OcrLanguages
	normalizer Normalizer
}

// NewAzure creates a new Azure Scanner instance
func NewAzure(endpoint, apiKey, language string, normalizer Normalizer) (*Azure, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("azure api key is required")
	}
	if language == "" {
		language = string(computervision.OcrLanguagesUnk)
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Azure{
		client:     client,
		language:   computervision.OcrLanguages(language),
		normalizer: normalizer,
	}, nil
}

// Name returns the backend identifier
func (a *Azure) Name() string { return "azure" }

// Scan runs printed text recognition on the image
func (a *Azure) Scan(ctx context.Context, img Image) (*Result, error) {
	data, err := a.normalizer.Normalize(img)
	if err != nil {
		return nil, err
	}

	ocrResult, err := a.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(bytes.NewReader(data)), a.language)
	if err != nil {
		return nil, fmt.Errorf("calling azure OCR: %w", err)
	}

	words, text := wordsFromOCRResult(ocrResult)
	// Azure's OCR endpoint does not report confidences
	return &Result{
		Backend: a.Name(),
		Text:    text,
		Words:   words,
	}, nil
}

// Close is a no-op for the REST client
func (a *Azure) Close() error {
	return nil
}

// wordsFromOCRResult flattens regions and lines into words and rebuilds the plain text
func wordsFromOCRResult(result computervision.OcrResult) ([]Word, string) {
	if result.Regions == nil {
		return nil, ""
	}
	var (
		words []Word
		lines []string
	)
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var lineText []string
			for _, w := range *line.Words {
				if w.Text == nil || strings.TrimSpace(*w.Text) == "" {
					continue
				}
				text := strings.TrimSpace(*w.Text)
				lineText = append(lineText, text)

				word := Word{Text: text, Confidence: 1}
				if w.BoundingBox != nil {
					if box, ok := parseBoundingBox(*w.BoundingBox); ok {
						word.Left, word.Top, word.Width, word.Height = box[0], box[1], box[2], box[3]
					}
				}
				words = append(words, word)
			}
			if len(lineText) > 0 {
				lines = append(lines, strings.Join(lineText, " "))
			}
		}
	}
	return words, strings.Join(lines, "\n")
}

// parseBoundingBox parses Azure's "x,y,width,height" notation
func parseBoundingBox(s string) ([4]int, bool) {
	var box [4]int
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return box, false
	}
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return box, false
		}
		box[i] = v
	}
	return box, true
}
