package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"triage-backend/internal/item/domain"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicService implements Completer against the Anthropic Messages API
type AnthropicService struct {
	client        anthropic.Client
	classifyModel string
	briefingModel string
}

func NewAnthropicService(apiKey, baseURL, classifyModel, briefingModel string, timeout time.Duration) *AnthropicService {
	if classifyModel == "" {
		classifyModel = "claude-haiku-4-5-20251001"
	}
	if briefingModel == "" {
		briefingModel = "claude-sonnet-4-6"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// FallbackService decides what to do on 429, so the client must not retry
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicService{
		client:        anthropic.NewClient(opts...),
		classifyModel: classifyModel,
		briefingModel: briefingModel,
	}
}

// Complete implements Completer
func (a *AnthropicService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := a.classifyModel
	if req.Purpose == PurposeBriefing {
		model = a.briefingModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic request failed: %w", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()})
		}
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	if len(msg.Content) == 0 || msg.Content[0].Type != "text" {
		return "", domain.NewClassificationError(domain.ReasonUnexpectedContent, "", fmt.Errorf("unexpected response type"))
	}
	return msg.Content[0].Text, nil
}
