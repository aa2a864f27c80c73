// Package tabular reads spreadsheet-like files (.csv, .xlsx) into a header
// row plus string cells.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format. Please use .xlsx or .csv files")

type Table struct {
	Headers []string
	Rows    [][]string
}

// SupportedExtension reports whether ReadFile can decode the given file name.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

func ReadFile(path string) (Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return Table{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		return ReadCSV(f)
	case ".xlsx":
		return readXLSX(path)
	default:
		return Table{}, ErrUnsupportedFormat
	}
}

func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("file has no header row")
		}
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}
	headers = trimBOM(headers)

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, normalizeRow(record, len(headers)))
	}
	return Table{Headers: headers, Rows: rows}, nil
}

func readXLSX(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return Table{}, fmt.Errorf("file has no header row")
	}

	headers := all[0]
	rows := make([][]string, 0, len(all)-1)
	for _, record := range all[1:] {
		if isBlankRow(record) {
			continue
		}
		rows = append(rows, normalizeRow(record, len(headers)))
	}
	return Table{Headers: headers, Rows: rows}, nil
}

// normalizeRow pads or truncates a record to width cells.
func normalizeRow(record []string, width int) []string {
	row := make([]string, width)
	copy(row, record)
	return row
}

func isBlankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	return headers
}
