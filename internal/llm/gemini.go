package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// googleBackend calls the Gemini API for gemini-* models.
type googleBackend struct {
	client *genai.Client
}

func newGoogleBackend(ctx context.Context, apiKey string) (*googleBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &googleBackend{client: client}, nil
}

func (b *googleBackend) Generate(ctx context.Context, model string, req Request) (string, error) {
	if b == nil || b.client == nil {
		return "", fmt.Errorf("nil genai client")
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

// googleTransient reports whether a Gemini API error is worth retrying.
func googleTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}
