// Package export renders warehouse result sets as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

func (f Format) Extension() string {
	return "." + string(f)
}

type Result struct {
	Data     []byte
	RowCount int64
}

func Encode(format Format, rows warehouse.ResultSet) (Result, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(buf, rows)
	case FormatParquet:
		err = WriteParquet(buf, rows)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Data: buf.Bytes(), RowCount: int64(len(rows.Rows))}, nil
}

// WriteCSV writes a header line followed by one record per row. NULL cells
// are written as empty fields.
func WriteCSV(w io.Writer, rows warehouse.ResultSet) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(rows.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(rows.Columns))
	for _, row := range rows.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) && row[i] != nil {
				record[i] = cellText(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteParquet stores every column as an optional UTF-8 string so that any
// result set shape can be exported without a static row type.
func WriteParquet(w io.Writer, rows warehouse.ResultSet) error {
	if len(rows.Columns) == 0 {
		return fmt.Errorf("result set has no columns")
	}
	group := make(parquet.Group, len(rows.Columns))
	for _, column := range rows.Columns {
		if _, dup := group[column]; dup {
			return fmt.Errorf("duplicate column %q", column)
		}
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("export", group)

	indexes := make([]int, len(rows.Columns))
	for i, column := range rows.Columns {
		leaf, ok := schema.Lookup(column)
		if !ok {
			return fmt.Errorf("column %q missing from parquet schema", column)
		}
		indexes[i] = leaf.ColumnIndex
	}

	out := make([]parquet.Row, 0, len(rows.Rows))
	for _, row := range rows.Rows {
		record := make(parquet.Row, len(rows.Columns))
		for i, index := range indexes {
			if i >= len(row) || row[i] == nil {
				record[index] = parquet.NullValue().Level(0, 0, index)
				continue
			}
			record[index] = parquet.ValueOf(cellText(row[i])).Level(0, 1, index)
		}
		out = append(out, record)
	}

	writer := parquet.NewWriter(w, schema)
	if _, err := writer.WriteRows(out); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func cellText(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format("2006-01-02")
		}
		return typed.Format(time.RFC3339)
	default:
		return fmt.Sprint(typed)
	}
}
