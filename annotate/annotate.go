// Package annotate asks a hosted language model for a summary, tags, grade
// and badge describing page text, and normalizes whatever comes back.
package annotate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docutag/linkbender/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Supported providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderXAI    = "xai"
	ProviderGemini = "gemini"
)

// Default endpoints and models per provider
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gpt-oss:20b"
	DefaultXAIURL      = "https://api.x.ai/v1"
	DefaultXAIModel    = "grok-beta"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// Request is one annotation call
type Request struct {
	Text        string
	Preferences *models.Preferences
}

// Client is an annotation provider
type Client interface {
	Annotate(ctx context.Context, req Request) (Raw, error)
	Name() string
}

// Config selects and configures a provider
type Config struct {
	Provider      string
	Model         string
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxInputChars int // Page text beyond this is cut before prompting (0 = unlimited)
}

// DefaultConfig returns a local Ollama configuration
func DefaultConfig() Config {
	return Config{
		Provider:      ProviderOllama,
		Model:         DefaultOllamaModel,
		BaseURL:       DefaultOllamaURL,
		Timeout:       2 * time.Minute,
		MaxInputChars: 24000,
	}
}

// New builds the provider named in cfg
func New(ctx context.Context, cfg Config) (Client, error) {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var (
		client Client
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		client, err = NewOllama(orDefault(cfg.BaseURL, DefaultOllamaURL), orDefault(cfg.Model, DefaultOllamaModel), httpClient)
	case ProviderOpenAI:
		client, err = NewOpenAI(cfg.BaseURL, orDefault(cfg.Model, DefaultOpenAIModel), cfg.APIKey, httpClient)
	case ProviderXAI:
		client, err = NewOpenAI(orDefault(cfg.BaseURL, DefaultXAIURL), orDefault(cfg.Model, DefaultXAIModel), cfg.APIKey, httpClient)
	case ProviderGemini:
		client, err = NewGemini(ctx, orDefault(cfg.Model, DefaultGeminiModel), cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown annotation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxInputChars > 0 {
		client = &truncating{Client: client, max: cfg.MaxInputChars}
	}
	return client, nil
}

// truncating caps the page text handed to the wrapped provider
type truncating struct {
	Client
	max int
}

func (t *truncating) Annotate(ctx context.Context, req Request) (Raw, error) {
	req.Text = models.Truncate(req.Text, t.max)
	return t.Client.Annotate(ctx, req)
}

// Close releases the wrapped provider if it holds resources
func (t *truncating) Close() error {
	if c, ok := t.Client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
