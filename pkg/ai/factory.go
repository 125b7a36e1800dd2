package ai

import (
	"context"
	"fmt"
	"time"

	"triage-backend/pkg/gemini"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	AnthropicAPIKey  string
	AnthropicBaseURL string
	ClassifyModel    string
	BriefingModel    string

	GeminiAPIKey string
	GeminiModel  string

	// Ollama reads its settings on every call
	Ollama *OllamaSettings

	Timeout time.Duration
}

// geminiCompleter adapts the Gemini client to Completer
type geminiCompleter struct {
	svc *gemini.GeminiService
}

func (g geminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return g.svc.Generate(ctx, req.System, req.Prompt, req.MaxTokens, req.Temperature)
}

// NewCompleter picks a provider from the config. Auto prefers a hosted
// provider with a key and falls back to Ollama.
func NewCompleter(cfg Config) (Completer, error) {
	if cfg.Ollama == nil {
		cfg.Ollama = NewOllamaSettings("http://localhost:11434", "llama3")
	}
	ollama := NewOllamaServiceWithSettings(cfg.Ollama, cfg.Timeout)

	switch cfg.Provider {
	case ProviderAnthropic, "":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return newAnthropic(cfg), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return newGemini(cfg), nil

	case ProviderOllama:
		return ollama, nil

	case ProviderAuto:
		switch {
		case cfg.AnthropicAPIKey != "":
			return NewFallbackService("anthropic", newAnthropic(cfg), "ollama", ollama), nil
		case cfg.GeminiAPIKey != "":
			return NewFallbackService("gemini", newGemini(cfg), "ollama", ollama), nil
		default:
			return ollama, nil
		}

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func newAnthropic(cfg Config) *AnthropicService {
	return NewAnthropicService(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.ClassifyModel, cfg.BriefingModel, cfg.Timeout)
}

func newGemini(cfg Config) Completer {
	return geminiCompleter{svc: gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)}
}
