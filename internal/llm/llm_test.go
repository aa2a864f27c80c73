package llm

import (
	"context"
	"testing"

	"github.com/ledgerlens/ledgerlens/internal/config"
)

func TestExtractSQL(t *testing.T) {
	tests := map[string]string{
		"```sql\nSELECT 1;\n```":                     "SELECT 1;",
		"```\nSELECT 2\n```":                         "SELECT 2",
		"Here you go:\n```sql\nSELECT 3\n```\nDone.": "SELECT 3",
		"`SELECT 4`":                                 "SELECT 4",
		"sql SELECT 5":                               "SELECT 5",
		"SQL: SELECT 6":                              "SELECT 6",
		"  SELECT sqlite_version()  ":                "SELECT sqlite_version()",
	}
	for input, want := range tests {
		if got := ExtractSQL(input); got != want {
			t.Fatalf("ExtractSQL(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewCompleterSelectsProvider(t *testing.T) {
	openai, err := NewCompleter(config.AIConfig{Provider: "openai", BaseURL: "http://x", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewCompleter(openai) error = %v", err)
	}
	if _, ok := openai.(*OpenAICompleter); !ok {
		t.Fatalf("openai completer type = %T", openai)
	}
	ollama, err := NewCompleter(config.AIConfig{Provider: "ollama", BaseURL: "http://x", Model: "gemma:2b"})
	if err != nil {
		t.Fatalf("NewCompleter(ollama) error = %v", err)
	}
	if _, ok := ollama.(*OllamaCompleter); !ok {
		t.Fatalf("ollama completer type = %T", ollama)
	}
	anthropicCompleter, err := NewCompleter(config.AIConfig{Provider: "anthropic", APIKey: "k", Model: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatalf("NewCompleter(anthropic) error = %v", err)
	}
	if _, ok := anthropicCompleter.(*AnthropicCompleter); !ok {
		t.Fatalf("anthropic completer type = %T", anthropicCompleter)
	}
	if _, err := NewCompleter(config.AIConfig{Provider: "hal"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
	if _, err := NewCompleter(config.AIConfig{Provider: "openai", BaseURL: "http://x"}); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestNewEmbedderSelectsProvider(t *testing.T) {
	embedder, err := NewEmbedder(config.EmbeddingConfig{Provider: "hash", Dimensions: 16})
	if err != nil {
		t.Fatalf("NewEmbedder(hash) error = %v", err)
	}
	vectors, err := embedder.Embed(context.Background(), []string{"total debit"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 16 {
		t.Fatalf("vectors shape = %d x %d", len(vectors), len(vectors[0]))
	}
	if _, err := NewEmbedder(config.EmbeddingConfig{Provider: "faiss"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}
