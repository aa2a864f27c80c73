package warehouse

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type ColumnKind string

const (
	KindText    ColumnKind = "text"
	KindDate    ColumnKind = "date"
	KindInteger ColumnKind = "integer"
	KindFloat   ColumnKind = "float"
	KindBoolean ColumnKind = "boolean"
	KindOther   ColumnKind = "other"
)

type Column struct {
	Name     string     `json:"name"`
	DataType string     `json:"data_type"`
	Kind     ColumnKind `json:"kind"`
}

// Schema is a point-in-time snapshot; callers must not cache it across
// requests.
type Schema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, column := range s.Columns {
		names[i] = column.Name
	}
	return names
}

func (s Schema) Column(name string) (Column, bool) {
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// DateColumn returns the first column whose name contains "date", ignoring
// case.
func (s Schema) DateColumn() (Column, bool) {
	for _, column := range s.Columns {
		if strings.Contains(strings.ToLower(column.Name), "date") {
			return column, true
		}
	}
	return Column{}, false
}

func (w *Warehouse) Describe(ctx context.Context, table string) (Schema, error) {
	if strings.TrimSpace(table) == "" {
		return Schema{}, fmt.Errorf("%w: table is required", ErrInvalidInput)
	}
	query, args, err := w.builder.
		Select("column_name", "data_type").
		From("information_schema.columns").
		Where(sq.Eq{"table_name": table}).
		Where("table_schema = current_schema()").
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return Schema{}, fmt.Errorf("build schema query: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Schema{}, fmt.Errorf("describe table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	schema := Schema{Table: table}
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.Name, &column.DataType); err != nil {
			return Schema{}, fmt.Errorf("scan column: %w", err)
		}
		column.Kind = kindOf(column.DataType)
		schema.Columns = append(schema.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("iterate columns: %w", err)
	}
	if len(schema.Columns) == 0 {
		return Schema{}, &TableError{Table: table, Err: ErrTableNotFound}
	}
	return schema, nil
}

func (w *Warehouse) ColumnNames(ctx context.Context, table string) ([]string, error) {
	schema, err := w.Describe(ctx, table)
	if err != nil {
		return nil, err
	}
	return schema.Names(), nil
}

func kindOf(dataType string) ColumnKind {
	normalized := strings.ToLower(strings.TrimSpace(dataType))
	if base, _, found := strings.Cut(normalized, "("); found {
		normalized = strings.TrimSpace(base)
	}
	switch normalized {
	case "text", "character varying", "varchar", "character", "char", "bpchar", "string", "citext", "name":
		return KindText
	case "date", "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz", "datetime":
		return KindDate
	case "smallint", "integer", "bigint", "int", "int2", "int4", "int8", "tinyint", "hugeint",
		"utinyint", "usmallint", "uinteger", "ubigint":
		return KindInteger
	case "real", "double precision", "double", "float", "float4", "float8", "numeric", "decimal":
		return KindFloat
	case "boolean", "bool":
		return KindBoolean
	default:
		return KindOther
	}
}
