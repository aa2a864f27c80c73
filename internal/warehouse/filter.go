package warehouse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	sq "github.com/Masterminds/squirrel"

	"github.com/ledgerlens/ledgerlens/internal/observability"
)

// Filter narrows a whole-table fetch. Empty fields are inactive; the date
// range applies only when both Start and End are set.
type Filter struct {
	Table         string
	Start         string
	End           string
	Search        string
	AccountNumber string
}

// searchBuilders produce the predicate a free-text term contributes for a
// column of the given kind. A nil predicate means the column does not take
// part in the search.
var searchBuilders = map[ColumnKind]func(column, term string) sq.Sqlizer{
	KindText: func(column, term string) sq.Sqlizer {
		return sq.ILike{column: "%" + term + "%"}
	},
	KindInteger: func(column, term string) sq.Sqlizer {
		n, err := strconv.ParseInt(term, 10, 64)
		if err != nil {
			return nil
		}
		return sq.Eq{column: n}
	},
}

func (w *Warehouse) FetchFiltered(ctx context.Context, filter Filter) (ResultSet, error) {
	start := time.Now()
	defer func() { observability.ObserveQuery("filter", time.Since(start)) }()

	query, args, err := w.filterQuery(ctx, filter)
	if err != nil {
		return ResultSet{}, err
	}
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ResultSet{}, fmt.Errorf("fetch table %q: %w", filter.Table, err)
	}
	return scanRows(rows)
}

func (w *Warehouse) filterQuery(ctx context.Context, filter Filter) (string, []any, error) {
	schema, err := w.Describe(ctx, filter.Table)
	if err != nil {
		return "", nil, err
	}

	columns := make([]string, len(schema.Columns))
	for i, column := range schema.Columns {
		columns[i] = quoteIdent(column.Name)
	}
	qb := w.builder.Select(columns...).From(quoteIdent(schema.Table))

	startDate, endDate := strings.TrimSpace(filter.Start), strings.TrimSpace(filter.End)
	if startDate != "" && endDate != "" {
		dateColumn, ok := schema.DateColumn()
		if !ok {
			return "", nil, &TableError{Table: schema.Table, Column: "date", Err: ErrUnknownColumn}
		}
		from, err := ParseDate(startDate)
		if err != nil {
			return "", nil, fmt.Errorf("%w: start date %q", ErrInvalidInput, startDate)
		}
		to, err := ParseDate(endDate)
		if err != nil {
			return "", nil, fmt.Errorf("%w: end date %q", ErrInvalidInput, endDate)
		}
		quoted := quoteIdent(dateColumn.Name)
		qb = qb.Where(sq.GtOrEq{quoted: from}).Where(sq.LtOrEq{quoted: to})
	}

	if raw := strings.TrimSpace(filter.AccountNumber); raw != "" {
		if _, ok := schema.Column(w.accountColumn); !ok {
			return "", nil, &TableError{Table: schema.Table, Column: w.accountColumn, Err: ErrUnknownColumn}
		}
		account, err := ParseAccountNumber(raw)
		if err != nil {
			return "", nil, err
		}
		qb = qb.Where(sq.Eq{quoteIdent(w.accountColumn): account})
	}

	if term := strings.TrimSpace(filter.Search); term != "" {
		var predicates sq.Or
		for _, column := range schema.Columns {
			build, ok := searchBuilders[column.Kind]
			if !ok {
				continue
			}
			if predicate := build(quoteIdent(column.Name), term); predicate != nil {
				predicates = append(predicates, predicate)
			}
		}
		if len(predicates) > 0 {
			qb = qb.Where(predicates)
		}
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build filter query: %w", err)
	}
	return query, args, nil
}

// ParseAccountNumber drops one leading non-digit marker (as in "A1794747109")
// and parses the rest as an integer.
func ParseAccountNumber(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" && !unicode.IsDigit(rune(trimmed[0])) {
		trimmed = trimmed[1:]
	}
	account, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: account number %q", ErrInvalidInput, raw)
	}
	return account, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-06",
	"1/2/06",
}

func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
