package checker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/examples"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

type fakeCompleter struct {
	text     string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text, Model: "fake"}, nil
}

type fakeWarehouse struct {
	result  warehouse.ResultSet
	runErr  error
	queries []string
}

func (f *fakeWarehouse) Describe(_ context.Context, table string) (warehouse.Schema, error) {
	return warehouse.Schema{
		Table: table,
		Columns: []warehouse.Column{
			{Name: "DATE", DataType: "date", Kind: warehouse.KindDate},
			{Name: "AMOUNT", DataType: "double precision", Kind: warehouse.KindFloat},
		},
	}, nil
}

func (f *fakeWarehouse) Run(_ context.Context, query string) (warehouse.ResultSet, error) {
	f.queries = append(f.queries, query)
	if f.runErr != nil {
		return warehouse.ResultSet{}, f.runErr
	}
	return f.result, nil
}

type staticExamples []examples.Example

func (s staticExamples) Examples() []examples.Example { return s }

func newChecker(t *testing.T, completer *fakeCompleter, wh *fakeWarehouse, ex ExampleSource) *Checker {
	t.Helper()
	c, err := New(Config{Completer: completer, Warehouse: wh, Table: "account_statement", Examples: ex})
	require.NoError(t, err)
	return c
}

func TestCheckValidQueryPreviewsAndDescribes(t *testing.T) {
	completer := &fakeCompleter{text: "No Mistakes Found"}
	wh := &fakeWarehouse{result: warehouse.ResultSet{Columns: []string{"sum"}, Rows: [][]any{{1250.5}}}}
	ex := staticExamples{
		{Input: "how many rows", Output: "SELECT COUNT(*) FROM account_statement", Description: "Counts rows"},
		{Input: "total spend", Output: `SELECT SUM("AMOUNT") FROM account_statement;`, Description: "Sums all amounts"},
	}
	c := newChecker(t, completer, wh, ex)

	result, err := c.Check(context.Background(), `  select sum("AMOUNT") from account_statement`)
	require.NoError(t, err)
	assert.Equal(t, KindValid, result.Kind)
	assert.True(t, result.Valid())
	assert.Equal(t, "Sums all amounts", result.Description)
	assert.Equal(t, "SQL Query is valid. Results: [(1250.5,)]\nDescription: Sums all amounts", result.String())
	assert.Equal(t, []string{`  select sum("AMOUNT") from account_statement`}, wh.queries)

	require.Len(t, completer.requests, 1)
	assert.Contains(t, completer.requests[0].Prompt, `"AMOUNT" double precision`)
	assert.Contains(t, completer.requests[0].System, SuccessMarker)
}

func TestCheckValidWithoutMatchingExample(t *testing.T) {
	c := newChecker(t,
		&fakeCompleter{text: "Looks good. No Mistakes Found."},
		&fakeWarehouse{result: warehouse.ResultSet{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}},
		nil,
	)

	result, err := c.Check(context.Background(), "SELECT COUNT(*) FROM account_statement")
	require.NoError(t, err)
	assert.Equal(t, "SQL Query is valid. Results: [(3,)]", result.String())
}

func TestCheckPreviewFailureIsAdvisory(t *testing.T) {
	wh := &fakeWarehouse{runErr: errors.New(`relation "nope" does not exist`)}
	c := newChecker(t, &fakeCompleter{text: "No Mistakes Found"}, wh, nil)

	result, err := c.Check(context.Background(), "SELECT * FROM nope")
	require.NoError(t, err)
	assert.Equal(t, KindAdvisory, result.Kind)
	assert.False(t, result.Valid())
	assert.True(t, strings.HasPrefix(result.String(), "SQL Query validated but execution failed: "))
	assert.Contains(t, result.String(), `relation "nope" does not exist`)
}

func TestCheckDiagnosticKeepsCheckerText(t *testing.T) {
	review := "The query uses BETWEEN for an exclusive range.\nCorrected: SELECT 1"
	wh := &fakeWarehouse{}
	c := newChecker(t, &fakeCompleter{text: review}, wh, nil)

	result, err := c.Check(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, KindDiagnostic, result.Kind)
	assert.Equal(t, review, result.String())
	assert.Empty(t, wh.queries, "diagnostics must not run the query")
}

func TestCheckPropagatesCompletionFailure(t *testing.T) {
	c := newChecker(t, &fakeCompleter{err: errors.New("backend down")}, &fakeWarehouse{}, nil)

	_, err := c.Check(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Warehouse: &fakeWarehouse{}, Table: "t"})
	assert.Error(t, err)
	_, err = New(Config{Completer: &fakeCompleter{}, Table: "t"})
	assert.Error(t, err)
	_, err = New(Config{Completer: &fakeCompleter{}, Warehouse: &fakeWarehouse{}})
	assert.Error(t, err)
}
