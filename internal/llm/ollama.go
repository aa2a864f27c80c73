package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OllamaCompleter uses the non-streaming /api/generate endpoint of a local
// Ollama server.
type OllamaCompleter struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewOllamaCompleter(cfg OllamaConfig) (*OllamaCompleter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &OllamaCompleter{
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}, nil
}

func (c *OllamaCompleter) Complete(ctx context.Context, req Request) (Completion, error) {
	options := map[string]any{"temperature": c.temperature}
	if c.maxTokens > 0 {
		options["num_predict"] = c.maxTokens
	}
	payload := map[string]any{
		"model":   c.model,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options,
	}
	if strings.TrimSpace(req.System) != "" {
		payload["system"] = req.System
	}

	var parsed struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := postJSON(ctx, c.client, c.baseURL+"/api/generate", "", payload, &parsed); err != nil {
		return Completion{}, fmt.Errorf("%w: ollama generate: %w", ErrBackend, err)
	}
	return Completion{Text: parsed.Response, Provider: "ollama", Model: c.model}, nil
}
