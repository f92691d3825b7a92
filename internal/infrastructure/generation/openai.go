package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/sashabaranov/go-openai"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint in JSON mode
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *logging.ChanneledLogger
}

var _ providers.TextGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates the backend. baseURL may point at any
// OpenAI-compatible server; empty keeps the public endpoint.
func NewOpenAIGenerator(apiKey, baseURL, model string, logger *logging.ChanneledLogger) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}, nil
}

// Name identifies the backend in logs and health output
func (g *OpenAIGenerator) Name() string { return "openai" }

// Generate runs one chat completion and returns the first choice's content
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	g.logger.LLM().Debug("Calling chat completions", "model", g.model, "promptChars", len(prompt))
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai chat completion failed (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai chat completion returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}
