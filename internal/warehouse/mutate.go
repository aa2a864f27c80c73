package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ledgerlens/ledgerlens/internal/observability"
)

const (
	OperationInsert = "insert"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

const (
	MessageExecuted    = "Execution successful"
	MessageNullRefused = "Null values cannot be added"
)

// Mutation describes a single-table write. For insert, Condition holds
// "column~value" pairs. For update and delete, Condition holds SQL
// predicates that are joined with AND and used verbatim as the WHERE clause;
// they are trusted input. Values holds the SET assignments of an update.
type Mutation struct {
	Table     string
	Operation string
	Condition []string
	Values    map[string]any
}

type MutationResult struct {
	Operation    string `json:"operation"`
	Rejected     bool   `json:"rejected"`
	Message      string `json:"message"`
	RowsAffected int64  `json:"rows_affected"`
}

func (w *Warehouse) Mutate(ctx context.Context, mutation Mutation) (result MutationResult, err error) {
	operation := strings.ToLower(strings.TrimSpace(mutation.Operation))
	result.Operation = operation
	start := time.Now()
	defer func() {
		observability.ObserveQuery("mutation", time.Since(start))
		observability.ObserveMutation(operation, err)
	}()

	schema, err := w.Describe(ctx, mutation.Table)
	if err != nil {
		return result, err
	}

	var stmt sq.Sqlizer
	switch operation {
	case OperationInsert:
		insert, rejected, err := w.insertStatement(schema, mutation.Condition)
		if err != nil {
			return result, err
		}
		if rejected {
			result.Rejected = true
			result.Message = MessageNullRefused
			return result, nil
		}
		stmt = insert
	case OperationUpdate:
		update, err := w.updateStatement(schema, mutation.Condition, mutation.Values)
		if err != nil {
			return result, err
		}
		stmt = update
	case OperationDelete:
		where, err := joinConditions(mutation.Condition)
		if err != nil {
			return result, err
		}
		stmt = w.builder.Delete(quoteIdent(schema.Table)).Where(where)
	default:
		return result, fmt.Errorf("%w: unsupported operation %q", ErrInvalidInput, mutation.Operation)
	}

	query, args, err := stmt.ToSql()
	if err != nil {
		return result, fmt.Errorf("build %s statement: %w", operation, err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("execute %s on %q: %w", operation, schema.Table, err)
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit %s: %w", operation, err)
	}
	if affected, err := res.RowsAffected(); err == nil {
		result.RowsAffected = affected
	}
	result.Message = MessageExecuted
	w.logger.InfoContext(ctx, "table mutated",
		slog.String("table", schema.Table),
		slog.String("operation", operation),
		slog.Int64("rows_affected", result.RowsAffected),
	)
	return result, nil
}

// insertStatement reports rejected when any pair has a blank column or
// value; nothing is written in that case.
func (w *Warehouse) insertStatement(schema Schema, pairs []string) (sq.InsertBuilder, bool, error) {
	if len(pairs) == 0 {
		return sq.InsertBuilder{}, false, fmt.Errorf("%w: insert needs at least one column~value pair", ErrInvalidInput)
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		column, value, found := strings.Cut(pair, "~")
		if !found {
			return sq.InsertBuilder{}, false, fmt.Errorf("%w: expected column~value, got %q", ErrInvalidInput, pair)
		}
		if strings.TrimSpace(column) == "" || strings.TrimSpace(value) == "" {
			return sq.InsertBuilder{}, true, nil
		}
		if _, ok := schema.Column(column); !ok {
			return sq.InsertBuilder{}, false, &TableError{Table: schema.Table, Column: column, Err: ErrUnknownColumn}
		}
		values[column] = value
	}
	columns := sortedKeys(values)
	quoted := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, column := range columns {
		quoted[i] = quoteIdent(column)
		args[i] = values[column]
	}
	return w.builder.Insert(quoteIdent(schema.Table)).Columns(quoted...).Values(args...), false, nil
}

func (w *Warehouse) updateStatement(schema Schema, conditions []string, values map[string]any) (sq.UpdateBuilder, error) {
	where, err := joinConditions(conditions)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	if len(values) == 0 {
		return sq.UpdateBuilder{}, fmt.Errorf("%w: update needs at least one value", ErrInvalidInput)
	}
	qb := w.builder.Update(quoteIdent(schema.Table))
	for _, column := range sortedKeys(values) {
		if _, ok := schema.Column(column); !ok {
			return sq.UpdateBuilder{}, &TableError{Table: schema.Table, Column: column, Err: ErrUnknownColumn}
		}
		qb = qb.Set(quoteIdent(column), values[column])
	}
	return qb.Where(where), nil
}

// joinConditions ANDs the caller's conditions, each parenthesized so an OR
// inside one condition stays scoped to it.
func joinConditions(conditions []string) (string, error) {
	parts := make([]string, 0, len(conditions))
	for _, condition := range conditions {
		if trimmed := strings.TrimSpace(condition); trimmed != "" {
			parts = append(parts, "("+trimmed+")")
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: a condition is required", ErrInvalidInput)
	}
	return strings.Join(parts, " AND "), nil
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
