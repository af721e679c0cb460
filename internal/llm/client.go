package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Client is the narrow interface the engine uses to reach the external
// model. Only the ambiguous-extraction and capability-repair paths go
// through it; mechanical substitution and ranking never do.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OllamaConfig configures the ollama-backed client.
type OllamaConfig struct {
	ServerURL   string        `koanf:"server_url"`
	Model       string        `koanf:"model"`
	Temperature float64       `koanf:"temperature"`
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}

// DefaultOllamaConfig returns the local-model defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		ServerURL:   "http://localhost:11434",
		Model:       "llama3.1:8b",
		Temperature: 0.2,
		HTTPTimeout: 5 * time.Minute,
	}
}

// OllamaClient talks to a local or remote ollama server through the
// langchaingo model abstraction.
type OllamaClient struct {
	llm         llms.Model
	model       string
	temperature float64
}

// NewOllamaClient builds a client from config.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		},
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.ServerURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}

	return &OllamaClient{
		llm:         llm,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends a single prompt and returns the raw model text.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("ollama completion: %w", err)
	}
	return response, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}
