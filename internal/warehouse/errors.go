package warehouse

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalidInput  = errors.New("invalid input")
)

// TableError attaches the table (and column, when known) to a schema
// mismatch.
type TableError struct {
	Table  string
	Column string
	Err    error
}

func (e *TableError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("table %q column %q: %v", e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("table %q: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}
