// Package warehouse executes SQL against the analytic database and owns the
// table-level operations (filtered fetch, mutations, file import).
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerlens/ledgerlens/internal/observability"
)

type Options struct {
	Driver        string
	AccountColumn string
	Logger        *slog.Logger
}

type Warehouse struct {
	db            *sql.DB
	driver        string
	accountColumn string
	logger        *slog.Logger
	builder       sq.StatementBuilderType
}

func New(db *sql.DB, opts Options) (*Warehouse, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	driver := opts.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Warehouse{
		db:            db,
		driver:        driver,
		accountColumn: opts.AccountColumn,
		logger:        logger,
		builder:       sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// ResultSet keeps the driver's column order.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Records returns one map per row keyed by column name.
func (r ResultSet) Records() []map[string]any {
	records := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

// String renders rows as a list of tuples, e.g. [(1, 'a'), (2, None)].
func (r ResultSet) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range r.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(value))
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", `\'`) + "'"
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return "'" + typed.Format("2006-01-02") + "'"
		}
		return "'" + typed.Format("2006-01-02 15:04:05") + "'"
	case bool:
		if typed {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(typed)
	}
}

func (w *Warehouse) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Run executes query on a dedicated connection that is released on every
// exit path. On PostgreSQL the statement runs inside a read-only
// transaction. On DuckDB there is no such guard: the statement runs as
// given, so callers passing untrusted SQL must screen it first.
func (w *Warehouse) Run(ctx context.Context, query string) (ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return ResultSet{}, fmt.Errorf("%w: sql is required", ErrInvalidInput)
	}
	start := time.Now()
	defer func() { observability.ObserveQuery("read", time.Since(start)) }()

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return ResultSet{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if w.driver != DriverPostgres {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return ResultSet{}, fmt.Errorf("execute query: %w", err)
		}
		return scanRows(rows)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return ResultSet{}, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return ResultSet{}, fmt.Errorf("execute query: %w", err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return ResultSet{}, err
	}
	if err := tx.Commit(); err != nil {
		return ResultSet{}, fmt.Errorf("commit read-only tx: %w", err)
	}
	return result, nil
}

func scanRows(rows *sql.Rows) (ResultSet, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}
	return ResultSet{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func (w *Warehouse) TableExists(ctx context.Context, table string) (bool, error) {
	query, args, err := w.builder.
		Select("COUNT(*)").
		From("information_schema.tables").
		Where(sq.Eq{"table_name": table}).
		Where("table_schema = current_schema()").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build table lookup: %w", err)
	}
	var count int64
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("lookup table %q: %w", table, err)
	}
	return count > 0, nil
}

// DropTable reports false without error when the table does not exist.
func (w *Warehouse) DropTable(ctx context.Context, table string) (bool, error) {
	exists, err := w.TableExists(ctx, table)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if _, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return false, fmt.Errorf("drop table %q: %w", table, err)
	}
	w.logger.InfoContext(ctx, "table dropped", slog.String("table", table))
	return true, nil
}

func quoteIdent(value string) string {
	return pgx.Identifier{value}.Sanitize()
}
