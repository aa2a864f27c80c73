// Package agent drives a question through example retrieval, prompt
// assembly, completion and checking until a query passes review.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/checker"
	"github.com/ledgerlens/ledgerlens/internal/examples"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/prompt"
)

const defaultMaxIterations = 3

var ErrIterationLimit = errors.New("no acceptable query within the iteration limit")

type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]examples.Example, error)
}

type QueryChecker interface {
	Check(ctx context.Context, query string) (checker.Result, error)
}

type Config struct {
	Completer     llm.Completer
	Retriever     Retriever
	Checker       QueryChecker
	Template      prompt.Template
	K             int
	MaxIterations int
	Logger        *slog.Logger
}

type Agent struct {
	completer     llm.Completer
	retriever     Retriever
	checker       QueryChecker
	template      prompt.Template
	k             int
	maxIterations int
	logger        *slog.Logger
}

func New(cfg Config) (*Agent, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Checker == nil {
		return nil, fmt.Errorf("checker is required")
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Agent{
		completer:     cfg.Completer,
		retriever:     cfg.Retriever,
		checker:       cfg.Checker,
		template:      cfg.Template,
		k:             cfg.K,
		maxIterations: maxIterations,
		logger:        logger,
	}, nil
}

type Answer struct {
	SQL         string
	Description string
	Check       checker.Result
	Iterations  int
}

// Ask returns the first candidate the checker accepts. Valid and advisory
// results are both final; a diagnostic is fed into the next attempt.
func (a *Agent) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is required")
	}

	selected, err := a.retriever.Retrieve(ctx, question, a.k)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve examples: %w", err)
	}
	built, err := prompt.Build(question, selected, a.template)
	if err != nil {
		return Answer{}, err
	}
	system := built.String()

	var feedback string
	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		completion, err := a.completer.Complete(ctx, llm.Request{
			System: system,
			Prompt: userPrompt(question, feedback),
		})
		if err != nil {
			return Answer{}, fmt.Errorf("completion attempt %d: %w", iteration, err)
		}

		query, description := SplitAnswer(completion.Text)
		if query == "" {
			feedback = "The previous answer did not contain a SQL query."
			a.logger.DebugContext(ctx, "empty candidate", slog.Int("iteration", iteration))
			continue
		}

		result, err := a.checker.Check(ctx, query)
		if err != nil {
			return Answer{}, err
		}
		if result.Kind == checker.KindDiagnostic {
			feedback = "The previous query was:\n" + query + "\n\nA reviewer reported:\n" + result.Text
			a.logger.DebugContext(ctx, "candidate rejected by checker",
				slog.Int("iteration", iteration),
				slog.String("query", query),
			)
			continue
		}

		if result.Description != "" {
			description = result.Description
		}
		return Answer{
			SQL:         query,
			Description: description,
			Check:       result,
			Iterations:  iteration,
		}, nil
	}
	return Answer{Iterations: a.maxIterations}, ErrIterationLimit
}

func userPrompt(question, feedback string) string {
	if feedback == "" {
		return question
	}
	return question + "\n\n" + feedback + "\n\nReturn a corrected SQL query."
}

// SplitAnswer separates a completion of the form
// "SQL Query: <sql> Description: <text>" into its query and description.
// Markdown fences and a leading sql tag are stripped from the query.
func SplitAnswer(text string) (string, string) {
	query, description, _ := strings.Cut(text, "Description:")
	query = strings.TrimSpace(query)
	query = strings.TrimSpace(strings.TrimPrefix(query, "SQL Query:"))
	return llm.ExtractSQL(query), strings.TrimSpace(description)
}
