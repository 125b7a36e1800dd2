package ai

import (
	"context"
	"time"

	"triage-backend/internal/item/domain"
)

// Purpose tells a provider which kind of completion is being asked for so it
// can pick a suitable model.
type Purpose string

const (
	PurposeClassify Purpose = "classify"
	PurposeBriefing Purpose = "briefing"
)

// CompletionRequest is a single-turn chat completion
type CompletionRequest struct {
	Purpose     Purpose
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is the raw model call. Implement this interface to add new AI
// providers (Anthropic, Gemini, Ollama, ...).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Classifier turns free text into a classification draft. Relative dates
// are resolved against today.
type Classifier interface {
	Classify(ctx context.Context, text string, today domain.Date) (domain.ProcessedItem, error)
}

// Summarizer writes the short daily briefing for a set of active items
type Summarizer interface {
	Summarize(ctx context.Context, items []domain.Item) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGemini    ProviderType = "gemini"
	ProviderOllama    ProviderType = "ollama"
	ProviderAuto      ProviderType = "auto"
)

const defaultTimeout = 30 * time.Second
