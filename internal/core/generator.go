package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/config"
	"vibecode.dev/vibe-code/internal/store"
)

// Generator turns a prompt into creative text.
type Generator interface {
	Generate(ctx context.Context, prompt string, category store.Category) (string, error)
}

// NewGenerator picks the generator matching the resolved AI mode. The
// returned close function releases provider clients and is never nil.
func NewGenerator(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (Generator, func(), error) {
	switch mode := cfg.Mode(); mode {
	case config.AIModeGemini:
		g, err := NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.Model, log)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case config.AIModeMock:
		log.Warn("GEMINI_API_KEY not set, serving mock responses")
		return MockGenerator{}, func() {}, nil
	case config.AIModeUnavailable:
		log.Warn("GEMINI_API_KEY not set, AI generation disabled")
		return UnavailableGenerator{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI mode %q", mode)
	}
}

// MockGenerator answers without calling any provider.
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, prompt string, category store.Category) (string, error) {
	return fmt.Sprintf(
		"This is a mock AI response for category \"%s\". In production with a valid Gemini API key, this would be: \"%s\"",
		category, prompt,
	), nil
}

// UnavailableGenerator rejects every request because no provider is configured.
type UnavailableGenerator struct{}

func (UnavailableGenerator) Generate(context.Context, string, store.Category) (string, error) {
	return "", ErrNotConfigured
}
