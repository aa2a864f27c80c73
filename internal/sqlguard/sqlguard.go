// Package sqlguard rejects mutating SQL and qualifies bare column references
// with the target table before a generated query is executed.
package sqlguard

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/observability"
)

var deniedKeywords = []string{
	"TRUNCATE", "DROP", "DELETE", "UPDATE", "ALTER", "CREATE",
	"INSERT", "REPLACE", "MERGE", "EXECUTE", "CALL",
}

var aggregates = []string{"MAX", "MIN", "SUM", "AVG", "COUNT"}

const countDistinct = "COUNT(DISTINCT"

// Denied reports whether sql contains a mutation keyword anywhere, in any
// case, including inside identifiers and string literals.
func Denied(sql string) bool {
	upper := strings.ToUpper(sql)
	for _, keyword := range deniedKeywords {
		if strings.Contains(upper, keyword) {
			return true
		}
	}
	return false
}

// Rewrite returns "" when sql is denied. Otherwise it splits sql on
// whitespace, qualifies tokens that name a column of table, and joins the
// tokens with single spaces. Rewrite is idempotent on its own output.
func Rewrite(sql, table string, columns []string) string {
	if Denied(sql) {
		return ""
	}

	rules := make(map[string]string, len(columns)*(len(aggregates)+3))
	distinct := make(map[string]string, len(columns))
	for _, column := range columns {
		qualified := qualify(table, column)
		rules[column] = qualified
		rules[column+","] = qualified + ","
		rules[column+";"] = qualified + ";"
		for _, fn := range aggregates {
			rules[fn+"("+column+")"] = strings.ToLower(fn) + "(" + qualified + ")"
		}
		distinct[column+")"] = qualified + ")"
	}

	tokens := strings.Fields(sql)
	for i := 0; i < len(tokens); i++ {
		if tokens[i] == countDistinct && i+1 < len(tokens) {
			if replacement, ok := distinct[tokens[i+1]]; ok {
				tokens[i] = "count(distinct"
				tokens[i+1] = replacement
				i++
				continue
			}
		}
		if replacement, ok := rules[tokens[i]]; ok {
			tokens[i] = replacement
		}
	}
	return strings.Join(tokens, " ")
}

func qualify(table, column string) string {
	return table + `."` + strings.ReplaceAll(column, `"`, `""`) + `"`
}

// IsReadOnly accepts statements that start with SELECT or WITH.
func IsReadOnly(sql string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sql))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

type ColumnLister interface {
	ColumnNames(ctx context.Context, table string) ([]string, error)
}

// Rewriter applies Rewrite against the live column list of one table. The
// schema is read on every call.
type Rewriter struct {
	table  string
	schema ColumnLister
}

func NewRewriter(table string, schema ColumnLister) (*Rewriter, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("table is required")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema reader is required")
	}
	return &Rewriter{table: table, schema: schema}, nil
}

func (r *Rewriter) Table() string {
	return r.table
}

// Clean returns "" for denied input; the error is reserved for schema reads.
func (r *Rewriter) Clean(ctx context.Context, sql string) (string, error) {
	columns, err := r.schema.ColumnNames(ctx, r.table)
	if err != nil {
		return "", fmt.Errorf("read columns of %s: %w", r.table, err)
	}
	cleaned := Rewrite(sql, r.table, columns)
	observability.ObserveRewrite(cleaned == "")
	return cleaned, nil
}
