package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	normalizer Normalizer
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(ctx context.Context, apiKey string, modelName string, normalizer Normalizer) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:     client,
		model:      client.GenerativeModel(modelName),
		normalizer: normalizer,
	}, nil
}

// Name returns the backend identifier
func (g *Gemini) Name() string { return "gemini" }

// Scan asks the model to read the invoice and return its fields as JSON
func (g *Gemini) Scan(ctx context.Context, img Image) (*Result, error) {
	data, err := g.normalizer.Normalize(img)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix, everything is PNG after normalization
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", data), genai.Text(invoiceScanPrompt))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := stripCodeFence(responseText.String())
	invoice, err := parseInvoiceJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing invoice data: %w", err)
	}

	return &Result{
		Backend: g.Name(),
		Text:    text,
		Invoice: invoice,
	}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
