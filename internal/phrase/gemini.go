package phrase

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini generateContent endpoint.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a client for the Gemini Developer API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Model returns the model name requests are sent to.
func (g *GeminiGenerator) Model() string {
	return g.model
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
