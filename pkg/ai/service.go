package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"triage-backend/internal/item/domain"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	classifyMaxTokens = 512
	briefingMaxTokens = 300
)

// Service classifies captures and writes briefings on top of any Completer
type Service struct {
	completer Completer
	log       zerolog.Logger
}

func NewService(completer Completer) *Service {
	return &Service{completer: completer, log: logger.Component("ai")}
}

// Classify implements Classifier
func (s *Service) Classify(ctx context.Context, text string, today domain.Date) (domain.ProcessedItem, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ProcessedItem{}, &domain.ValidationError{Field: "text", Message: "no text provided"}
	}

	resp, err := s.completer.Complete(ctx, CompletionRequest{
		Purpose:   PurposeClassify,
		System:    classifySystemPrompt(today.String()),
		Prompt:    text,
		MaxTokens: classifyMaxTokens,
	})
	if err != nil {
		return domain.ProcessedItem{}, asClassificationError(err)
	}

	draft, err := ParseClassification(resp)
	if err != nil {
		s.log.Warn().Err(err).Str("response", truncate(resp, 200)).Msg("unusable classification response")
		return domain.ProcessedItem{}, err
	}
	return draft, nil
}

// Summarize implements Summarizer. An empty list returns EmptyBriefing
// without calling the model.
func (s *Service) Summarize(ctx context.Context, items []domain.Item) (string, error) {
	if len(items) == 0 {
		return domain.EmptyBriefing, nil
	}

	resp, err := s.completer.Complete(ctx, CompletionRequest{
		Purpose:   PurposeBriefing,
		System:    briefingSystemPrompt,
		Prompt:    fmt.Sprintf(briefingUserPrompt, RenderItems(items)),
		MaxTokens: briefingMaxTokens,
	})
	if err != nil {
		return "", asClassificationError(err)
	}
	return strings.TrimSpace(resp), nil
}

// RenderItems formats items one per line for the briefing prompt
func RenderItems(items []domain.Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, renderItem(item))
	}
	return strings.Join(lines, "\n")
}

func renderItem(item domain.Item) string {
	parts := []string{fmt.Sprintf("[%s] %s", strings.ToUpper(string(item.Section)), item.Title)}
	if item.Notes != nil {
		parts = append(parts, "("+*item.Notes+")")
	}
	if item.DelegatedTo != nil {
		parts = append(parts, "→ delegated to "+*item.DelegatedTo)
	}
	if item.DueDate != nil {
		parts = append(parts, "due "+item.DueDate.String())
	}
	if item.Effort != nil {
		parts = append(parts, "effort: "+string(*item.Effort))
	}
	if item.Context != domain.ContextBoth {
		parts = append(parts, "["+string(item.Context)+"]")
	}
	return strings.Join(parts, " ")
}

// asClassificationError keeps provider errors that already carry a reason
// and tags the rest as upstream failures.
func asClassificationError(err error) error {
	var ce *domain.ClassificationError
	if errors.As(err, &ce) {
		return err
	}
	return domain.NewClassificationError(domain.ReasonUpstream, "", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
