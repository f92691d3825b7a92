// Package generation adapts generative text backends to the TextGenerator port.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
)

const (
	defaultLeMURModel    = "anthropic/claude-3-5-sonnet"
	defaultMaxOutputSize = 2000
	defaultTemperature   = 0.7
)

// LeMURGenerator sends prompts to an AssemblyAI LeMUR task. The system prompt
// becomes the task prompt and the user prompt is passed as input text.
type LeMURGenerator struct {
	client *assemblyai.Client
	model  string
	logger *logging.ChanneledLogger
}

var _ providers.TextGenerator = (*LeMURGenerator)(nil)

// NewLeMURGenerator creates the backend. An empty model selects the default.
func NewLeMURGenerator(apiKey, model string, logger *logging.ChanneledLogger) (*LeMURGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ASSEMBLYAI_API_KEY is required for the lemur backend")
	}
	if model == "" {
		model = defaultLeMURModel
	}
	return &LeMURGenerator{client: assemblyai.NewClient(apiKey), model: model, logger: logger}, nil
}

// Name identifies the backend in logs and health output
func (g *LeMURGenerator) Name() string { return "lemur" }

// Generate runs one LeMUR task and returns its raw response text
func (g *LeMURGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var params assemblyai.LeMURTaskParams
	params.Prompt = assemblyai.String(system)
	params.InputText = assemblyai.String(prompt)
	params.FinalModel = assemblyai.LeMURModel(g.model)
	params.MaxOutputSize = assemblyai.Int64(defaultMaxOutputSize)
	params.Temperature = assemblyai.Float64(defaultTemperature)

	g.logger.LLM().Debug("Calling LeMUR task", "model", g.model, "promptChars", len(prompt))
	response, err := g.client.LeMUR.Task(ctx, params)
	if err != nil {
		return "", fmt.Errorf("lemur task failed: %w", err)
	}
	if response.Response == nil || strings.TrimSpace(*response.Response) == "" {
		return "", fmt.Errorf("lemur task returned an empty response")
	}
	return *response.Response, nil
}
