// Package checker asks the completion backend to review a candidate query
// and, when it passes, previews it against the warehouse.
package checker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/examples"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

// SuccessMarker is the literal the checker output must contain for a query
// to count as valid.
const SuccessMarker = "No Mistakes Found"

type Kind string

const (
	KindValid      Kind = "valid"
	KindAdvisory   Kind = "advisory"
	KindDiagnostic Kind = "diagnostic"
)

const systemPrompt = `You are a meticulous PostgreSQL reviewer. You receive one SQL query and the schema of the table it targets.
Double check the query for common mistakes, including:
- Using NOT IN with NULL values
- Using UNION when UNION ALL should have been used
- Using BETWEEN for exclusive ranges
- Data type mismatch in predicates
- Properly quoting identifiers
- Using the correct number of arguments for functions
- Casting to the correct data type
- Referencing columns that do not exist in the schema

If there are no mistakes, answer with exactly "` + SuccessMarker + `".
Otherwise list the mistakes and give a corrected query.`

type Warehouse interface {
	Describe(ctx context.Context, table string) (warehouse.Schema, error)
	Run(ctx context.Context, query string) (warehouse.ResultSet, error)
}

type ExampleSource interface {
	Examples() []examples.Example
}

type Config struct {
	Completer llm.Completer
	Warehouse Warehouse
	Table     string
	// Examples is optional; without it valid results carry no description.
	Examples ExampleSource
	Logger   *slog.Logger
}

type Checker struct {
	completer llm.Completer
	warehouse Warehouse
	table     string
	examples  ExampleSource
	logger    *slog.Logger
}

func New(cfg Config) (*Checker, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.Warehouse == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("table is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{
		completer: cfg.Completer,
		warehouse: cfg.Warehouse,
		table:     cfg.Table,
		examples:  cfg.Examples,
		logger:    logger,
	}, nil
}

type Result struct {
	Kind        Kind
	Query       string
	Preview     warehouse.ResultSet
	Description string
	// Text is the raw checker output for diagnostics and the failure
	// message for advisories.
	Text string
}

func (r Result) Valid() bool {
	return r.Kind == KindValid
}

func (r Result) String() string {
	switch r.Kind {
	case KindValid:
		out := "SQL Query is valid. Results: " + r.Preview.String()
		if r.Description != "" {
			out += "\nDescription: " + r.Description
		}
		return out
	default:
		return r.Text
	}
}

// Check returns an error only when the completion backend fails. A preview
// failure is reported as an advisory result.
func (c *Checker) Check(ctx context.Context, query string) (Result, error) {
	schema, err := c.warehouse.Describe(ctx, c.table)
	if err != nil {
		return Result{}, fmt.Errorf("describe %s for checker: %w", c.table, err)
	}

	completion, err := c.completer.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: reviewPrompt(schema, query),
	})
	if err != nil {
		return Result{}, fmt.Errorf("checker completion: %w", err)
	}

	result := c.evaluate(ctx, query, completion.Text)
	observability.ObserveCheckerResult(string(result.Kind))
	c.logger.DebugContext(ctx, "query checked",
		slog.String("kind", string(result.Kind)),
		slog.String("model", completion.Model),
	)
	return result, nil
}

func (c *Checker) evaluate(ctx context.Context, query, review string) Result {
	if !strings.Contains(review, SuccessMarker) {
		return Result{Kind: KindDiagnostic, Query: query, Text: review}
	}
	preview, err := c.warehouse.Run(ctx, query)
	if err != nil {
		return Result{
			Kind:  KindAdvisory,
			Query: query,
			Text:  "SQL Query validated but execution failed: " + err.Error(),
		}
	}
	return Result{
		Kind:        KindValid,
		Query:       query,
		Preview:     preview,
		Description: c.describe(query),
	}
}

// describe returns the description of the first example whose output
// contains the query, compared trimmed and lower-cased.
func (c *Checker) describe(query string) string {
	if c.examples == nil {
		return ""
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return ""
	}
	for _, example := range c.examples.Examples() {
		if example.Description == "" {
			continue
		}
		if strings.Contains(strings.ToLower(strings.TrimSpace(example.Output)), needle) {
			return example.Description
		}
	}
	return ""
}

func reviewPrompt(schema warehouse.Schema, query string) string {
	var b strings.Builder
	b.WriteString("Table ")
	b.WriteString(schema.Table)
	b.WriteString(" columns:\n")
	for _, column := range schema.Columns {
		fmt.Fprintf(&b, "- %q %s\n", column.Name, column.DataType)
	}
	b.WriteString("\nQuery:\n")
	b.WriteString(strings.TrimSpace(query))
	return b.String()
}
