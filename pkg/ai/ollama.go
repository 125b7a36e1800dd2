package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaService implements Completer using an Ollama local LLM
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	client     *http.Client
}

// NewOllamaService creates an Ollama service with fixed settings
func NewOllamaService(baseURL, model string, timeout time.Duration) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return NewOllamaServiceWithSettings(NewOllamaSettings(baseURL, model), timeout)
}

// NewOllamaServiceWithSettings reads base URL and model from settings on
// every call so runtime updates take effect immediately.
func NewOllamaServiceWithSettings(settings *OllamaSettings, timeout time.Duration) *OllamaService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaService{
		getBaseURL: settings.BaseURL,
		getModel:   settings.Model,
		client:     &http.Client{Timeout: timeout},
	}
}

// Complete implements Completer
func (o *OllamaService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	url := o.getBaseURL() + "/api/generate"

	options := map[string]interface{}{
		"temperature": 0.2,
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	payload := map[string]interface{}{
		"model":   o.getModel(),
		"system":  req.System,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options,
	}
	if req.Purpose == PurposeClassify {
		payload["format"] = "json"
	}

	body, err := postJSON(ctx, o.client, url, nil, payload)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Response, nil
}
