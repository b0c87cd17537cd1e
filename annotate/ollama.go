package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama annotates through a local or remote Ollama server
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates an Ollama provider for baseURL
func NewOllama(baseURL, model string, httpClient *http.Client) (*Ollama, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Ollama{
		client: api.NewClient(parsed, httpClient),
		model:  model,
	}, nil
}

// Name identifies the provider in logs and metrics
func (o *Ollama) Name() string {
	return ProviderOllama
}

// Annotate runs a non-streaming generate request in JSON mode
func (o *Ollama) Annotate(ctx context.Context, req Request) (Raw, error) {
	stream := false
	var out strings.Builder

	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:  o.model,
		System: SystemPrompt(req.Preferences),
		Prompt: UserPrompt(req.Text, req.Preferences),
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return Raw{}, fmt.Errorf("ollama generate: %w", err)
	}

	return Raw{Text: out.String()}, nil
}
