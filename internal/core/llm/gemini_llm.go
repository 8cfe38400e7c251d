package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/markdave123-py/contexta-graph/internal/core"
)

const defaultGenModel = "gemini-1.5-flash"

// GeminiLLM generates with temperature 0.
type GeminiLLM struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	cl, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = defaultGenModel
	}
	return &GeminiLLM{client: cl, modelName: modelName, maxTokens: 2048}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiLLM) model(systemPrompt string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0)
	m.SetMaxOutputTokens(g.maxTokens)
	m.SystemInstruction = systemInstruction(systemPrompt)
	return m
}

// systemInstruction returns nil for an empty prompt so the model default applies.
func systemInstruction(prompt string) *genai.Content {
	if prompt == "" {
		return nil
	}
	return &genai.Content{Parts: []genai.Part{genai.Text(prompt)}}
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.model(systemPrompt).GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %w", g.modelName, err)
	}
	return responseText(resp)
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
