package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// GoogleVision implements the Scanner interface using the Cloud Vision API
type GoogleVision struct {
	service       *vision.Service
	normalizer    Normalizer
	languageHints []string
}

// NewGoogleVision creates a Cloud Vision scanner. When credentialsFile is
// empty, application default credentials are used unless opts override them.
func NewGoogleVision(ctx context.Context, credentialsFile string, languageHints []string, normalizer Normalizer, opts ...option.ClientOption) (*GoogleVision, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return &GoogleVision{
		service:       svc,
		normalizer:    normalizer,
		languageHints: languageHints,
	}, nil
}

// Name returns the backend identifier
func (g *GoogleVision) Name() string { return "google" }

// Scan runs document text detection on the image
func (g *GoogleVision) Scan(ctx context.Context, img Image) (*Result, error) {
	data, err := g.normalizer.Normalize(img)
	if err != nil {
		return nil, err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	if len(g.languageHints) > 0 {
		req.Requests[0].ImageContext = &vision.ImageContext{LanguageHints: g.languageHints}
	}

	resp, err := g.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calling vision API: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}
	annotated := resp.Responses[0]
	if annotated.Error != nil && annotated.Error.Message != "" {
		return nil, fmt.Errorf("vision API error (code %d): %s", annotated.Error.Code, annotated.Error.Message)
	}

	result := &Result{Backend: g.Name()}
	if annotated.FullTextAnnotation == nil {
		// Nothing recognized, the extractor reports the missing fields
		return result, nil
	}
	result.Text = strings.TrimSpace(annotated.FullTextAnnotation.Text)
	result.Words = wordsFromAnnotation(annotated.FullTextAnnotation)
	result.Confidence = meanConfidence(result.Words)
	return result, nil
}

// Close is a no-op for the REST client
func (g *GoogleVision) Close() error {
	return nil
}

func wordsFromAnnotation(ann *vision.TextAnnotation) []Word {
	var words []Word
	for _, page := range ann.Pages {
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				for _, w := range para.Words {
					var sb strings.Builder
					for _, s := range w.Symbols {
						sb.WriteString(s.Text)
					}
					text := strings.TrimSpace(sb.String())
					if text == "" {
						continue
					}
					left, top, right, bottom := polyBounds(w.BoundingBox)
					words = append(words, Word{
						Text:       text,
						Left:       left,
						Top:        top,
						Width:      right - left,
						Height:     bottom - top,
						Confidence: w.Confidence,
					})
				}
			}
		}
	}
	return words
}

// polyBounds returns the axis-aligned box around a bounding polygon
func polyBounds(poly *vision.BoundingPoly) (left, top, right, bottom int) {
	if poly == nil || len(poly.Vertices) == 0 {
		return 0, 0, 0, 0
	}
	first := true
	for _, v := range poly.Vertices {
		if v == nil {
			continue
		}
		x, y := int(v.X), int(v.Y)
		if first {
			left, right, top, bottom = x, x, y, y
			first = false
			continue
		}
		left = min(left, x)
		right = max(right, x)
		top = min(top, y)
		bottom = max(bottom, y)
	}
	return left, top, right, bottom
}
