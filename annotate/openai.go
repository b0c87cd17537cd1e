package annotate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI annotates through any OpenAI-compatible chat completions API,
// including xAI's grok models.
type OpenAI struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAI creates a chat completions provider. An empty baseURL targets api.openai.com.
func NewOpenAI(baseURL, model, apiKey string, httpClient *http.Client) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("annotation API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	name := ProviderOpenAI
	if baseURL != "" {
		config.BaseURL = baseURL
		if baseURL == DefaultXAIURL {
			name = ProviderXAI
		}
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		name:   name,
	}, nil
}

// Name identifies the provider in logs and metrics
func (o *OpenAI) Name() string {
	return o.name
}

// Annotate sends the instructions as a system message and the page text as the user message
func (o *OpenAI) Annotate(ctx context.Context, req Request) (Raw, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req.Preferences)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req.Text, req.Preferences)},
		},
	})
	if err != nil {
		return Raw{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Raw{}, errors.New("chat completion returned no choices")
	}

	return Raw{Text: resp.Choices[0].Message.Content}, nil
}
