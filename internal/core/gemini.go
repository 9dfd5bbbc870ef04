package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"vibecode.dev/vibe-code/internal/store"
)

const (
	defaultModelName    = "gemini-1.5-flash"
	emptyResponseText   = "No response generated"
	generateTemperature = float32(0.8)
	generateTopK        = int32(40)
	generateTopP        = float32(0.95)
	generateMaxTokens   = int32(2048)
)

// GeminiGenerator sends one GenerateContent request per prompt. Errors are
// returned as they are; there are no retries.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *zap.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, log *zap.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultModelName
	}

	model := client.GenerativeModel(modelName)
	temp := generateTemperature
	topK := generateTopK
	topP := generateTopP
	maxTokens := generateMaxTokens
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		TopK:            &topK,
		TopP:            &topP,
		MaxOutputTokens: &maxTokens,
	}

	return &GeminiGenerator{client: client, model: model, log: log}, nil
}

func (g *GeminiGenerator) Close() {
	if g.client != nil {
		if err := g.client.Close(); err != nil {
			g.log.Error("Error closing GenAI client", zap.Error(err))
		} else {
			g.log.Info("GenAI client closed")
		}
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, category store.Category) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(BuildPrompt(prompt, category)))
	if err != nil {
		return "", fmt.Errorf("gemini generate request failed: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		g.log.Warn("Gemini response was empty or had no text parts", zap.String("category", string(category)))
		return emptyResponseText, nil
	}
	return text, nil
}

// extractText joins the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
