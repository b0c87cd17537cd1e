package annotate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini annotates through Google's Gemini API in JSON response mode
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("annotation API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Name identifies the provider in logs and metrics
func (g *Gemini) Name() string {
	return ProviderGemini
}

// Annotate generates a single JSON response for the page text
func (g *Gemini) Annotate(ctx context.Context, req Request) (Raw, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt(req.Preferences))},
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(UserPrompt(req.Text, req.Preferences)))
	if err != nil {
		return Raw{}, fmt.Errorf("gemini generate: %w", err)
	}

	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
		break
	}
	if out.Len() == 0 {
		return Raw{}, errors.New("gemini returned no text candidates")
	}

	return Raw{Text: out.String()}, nil
}

// Close releases the underlying gRPC connection
func (g *Gemini) Close() error {
	return g.client.Close()
}
