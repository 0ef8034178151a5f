package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"PaperDigest/internal/ports"
)

// Client talks to an OpenAI-compatible chat completion endpoint through
// langchaingo. DeepSeek and most self-hosted gateways expose this API.
type Client struct {
	model       llms.Model
	modelName   string
	temperature float64
}

var _ ports.Completer = (*Client)(nil)

// Config holds the connection parameters for a completion endpoint.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
}

// NewClient creates a completion client for the configured endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return &Client{
		model:       model,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.modelName
}

// Complete sends a system and user prompt and returns the raw model output.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}
