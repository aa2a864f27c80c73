package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/tabular"
)

const (
	ImportStatusSuccess = "success"
	ImportStatusError   = "error"

	importBatchSize = 500
	sampleRows      = 5
)

type ImportResult struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	RowCount int64    `json:"row_count,omitempty"`
	Columns  []string `json:"columns,omitempty"`
}

func importFailed(err error) ImportResult {
	return ImportResult{Status: ImportStatusError, Message: err.Error()}
}

// ImportFile replaces table with the contents of a .csv or .xlsx file. It
// never returns an error; every failure is reported in the result and stops
// the import at the failing step.
func (w *Warehouse) ImportFile(ctx context.Context, path, table string) ImportResult {
	result := w.importFile(ctx, path, table)
	observability.ObserveImport(result.Status, int(result.RowCount))
	if result.Status == ImportStatusError {
		w.logger.WarnContext(ctx, "import failed",
			slog.String("table", table),
			slog.String("error", result.Message),
		)
	}
	return result
}

func (w *Warehouse) importFile(ctx context.Context, path, table string) ImportResult {
	table = strings.ToLower(strings.TrimSpace(table))
	if table == "" {
		return importFailed(fmt.Errorf("table name is required"))
	}

	data, err := tabular.ReadFile(path)
	if err != nil {
		if errors.Is(err, tabular.ErrUnsupportedFormat) {
			return ImportResult{Status: ImportStatusError, Message: "Unsupported file format. Please use .xlsx or .csv files"}
		}
		return importFailed(err)
	}
	if len(data.Headers) == 0 {
		return importFailed(fmt.Errorf("file has no columns"))
	}

	cleaned := make([]string, len(data.Headers))
	for i, header := range data.Headers {
		cleaned[i] = CleanColumnName(header)
	}
	names := dedupeNames(cleaned)

	columns := make([]importColumn, len(names))
	cells := make([]string, len(data.Rows))
	for i, name := range names {
		for r, row := range data.Rows {
			cells[r] = row[i]
		}
		columns[i] = inferColumn(name, cells)
	}
	w.logger.DebugContext(ctx, "import columns inferred",
		slog.String("table", table),
		slog.Any("columns", columns),
	)

	if err := w.replaceTable(ctx, table, columns, data.Rows); err != nil {
		return importFailed(err)
	}

	var rowCount int64
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&rowCount); err != nil {
		return importFailed(fmt.Errorf("verify row count: %w", err))
	}
	sample, err := w.Run(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRows))
	if err != nil {
		return importFailed(fmt.Errorf("verify sample: %w", err))
	}
	w.logger.InfoContext(ctx, "import verified",
		slog.String("table", table),
		slog.Int64("row_count", rowCount),
		slog.String("sample", sample.String()),
	)

	return ImportResult{
		Status:   ImportStatusSuccess,
		Message:  fmt.Sprintf("Successfully imported %d rows into table '%s'", rowCount, table),
		RowCount: rowCount,
		Columns:  names,
	}
}

func (w *Warehouse) replaceTable(ctx context.Context, table string, columns []importColumn, rows [][]string) error {
	definitions := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quoteIdent(column.Name)
		definitions[i] = quoted[i] + " " + column.SQLType
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop existing table: %w", err)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(definitions, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	for offset := 0; offset < len(rows); offset += importBatchSize {
		end := offset + importBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		insert := w.builder.Insert(quoteIdent(table)).Columns(quoted...)
		for r := offset; r < end; r++ {
			values := make([]any, len(columns))
			for i, column := range columns {
				value, err := column.convert(rows[r][i])
				if err != nil {
					return fmt.Errorf("row %d column %s: %w", r+2, column.Name, err)
				}
				values[i] = value
			}
			insert = insert.Values(values...)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", offset+1, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
