// Package llm holds the completion and embedding backends used by the agent,
// the checker and the example store.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/config"
)

// ErrBackend marks failures of a completion or embedding service, as
// opposed to bad input or configuration.
var ErrBackend = errors.New("model backend failed")

type Request struct {
	System string
	Prompt string
}

type Completion struct {
	Text     string
	Provider string
	Model    string
}

type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Embedder maps texts to vectors of equal length, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

func NewCompleter(cfg config.AIConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAICompleter(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case "ollama":
		return NewOllamaCompleter(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case "anthropic":
		return NewAnthropicCompleter(AnthropicConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAIEmbedder(OpenAIEmbeddingConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}

// ExtractSQL strips markdown fences, stray backticks and a leading "sql"
// language tag from model output.
func ExtractSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if start := strings.Index(trimmed, "```"); start >= 0 {
		body := trimmed[start+3:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		trimmed = body
	}
	trimmed = strings.Trim(strings.TrimSpace(trimmed), "`")
	trimmed = strings.TrimSpace(trimmed)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "sql") {
		rest := trimmed[3:]
		if rest == "" || rest[0] == '\n' || rest[0] == '\r' || rest[0] == ' ' || rest[0] == '\t' || rest[0] == ':' {
			trimmed = strings.TrimPrefix(strings.TrimSpace(rest), ":")
		}
	}
	return strings.TrimSpace(trimmed)
}
