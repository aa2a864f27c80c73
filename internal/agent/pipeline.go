package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

const RefusedMessage = "Error: You cannot execute this query!"

var ErrRejected = errors.New("query rejected by the mutation guard")

type Asker interface {
	Ask(ctx context.Context, question string) (Answer, error)
}

type Cleaner interface {
	Clean(ctx context.Context, sql string) (string, error)
}

type Runner interface {
	Run(ctx context.Context, query string) (warehouse.ResultSet, error)
}

type Pipeline struct {
	asker   Asker
	cleaner Cleaner
	runner  Runner
	logger  *slog.Logger
}

func NewPipeline(asker Asker, cleaner Cleaner, runner Runner, logger *slog.Logger) (*Pipeline, error) {
	if asker == nil || cleaner == nil || runner == nil {
		return nil, fmt.Errorf("asker, cleaner and runner are required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{asker: asker, cleaner: cleaner, runner: runner, logger: logger}, nil
}

type Execution struct {
	// Refused is set when the question itself was refused; Query is empty
	// and Description carries RefusedMessage.
	Refused     bool
	Query       string
	Result      warehouse.ResultSet
	Description string
	Iterations  int
	Elapsed     time.Duration
}

// Execute turns a question into rows. The generated query always passes the
// rewriter before it reaches the warehouse, whatever the checker said.
func (p *Pipeline) Execute(ctx context.Context, question string) (execution Execution, err error) {
	if IsRefusedQuestion(question) {
		observability.ObserveQuestion("refused", 0)
		return Execution{Refused: true, Description: RefusedMessage}, nil
	}

	start := time.Now()
	defer func() {
		execution.Elapsed = time.Since(start)
		observability.ObserveQuestion(questionOutcome(err), execution.Iterations)
	}()

	answer, err := p.asker.Ask(ctx, question)
	execution.Iterations = answer.Iterations
	if err != nil {
		return execution, err
	}
	execution.Description = answer.Description

	cleaned, err := p.cleaner.Clean(ctx, answer.SQL)
	if err != nil {
		return execution, err
	}
	if cleaned == "" {
		p.logger.WarnContext(ctx, "generated query rejected", slog.String("query", answer.SQL))
		return execution, ErrRejected
	}
	execution.Query = cleaned

	result, err := p.runner.Run(ctx, cleaned)
	if err != nil {
		return execution, err
	}
	execution.Result = result
	return execution, nil
}

// Ask exposes generation alone, for callers that only want the SQL.
func (p *Pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	return p.asker.Ask(ctx, question)
}

func IsRefusedQuestion(question string) bool {
	return strings.ReplaceAll(question, " ", "") == "1=1"
}

func questionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrIterationLimit):
		return "iteration_limit"
	default:
		return "error"
	}
}
