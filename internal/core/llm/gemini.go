package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return cl, nil
}

// responseText joins the text parts of the first candidate. A blocked prompt
// or a candidate stopped by the safety filter is an error, not an empty answer.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("gemini: prompt blocked (%s)", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	c := resp.Candidates[0]
	if c.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("gemini: candidate stopped by safety filter")
	}
	if c.Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
