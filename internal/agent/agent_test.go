package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/checker"
	"github.com/ledgerlens/ledgerlens/internal/examples"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/prompt"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

type scriptedCompleter struct {
	replies  []string
	err      error
	requests []llm.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return llm.Completion{Text: reply}, nil
}

type fixedRetriever struct {
	examples []examples.Example
	k        int
}

func (f *fixedRetriever) Retrieve(_ context.Context, _ string, k int) ([]examples.Example, error) {
	f.k = k
	return f.examples, nil
}

// mapChecker returns the result registered for a query, or a diagnostic.
type mapChecker struct {
	results map[string]checker.Result
	checked []string
}

func (m *mapChecker) Check(_ context.Context, query string) (checker.Result, error) {
	m.checked = append(m.checked, query)
	if result, ok := m.results[query]; ok {
		return result, nil
	}
	return checker.Result{Kind: checker.KindDiagnostic, Query: query, Text: "column does not exist"}, nil
}

func newAgent(t *testing.T, completer llm.Completer, chk QueryChecker, maxIterations int) (*Agent, *fixedRetriever) {
	t.Helper()
	retriever := &fixedRetriever{examples: []examples.Example{
		{Input: "total spend", Output: `SELECT SUM("AMOUNT") FROM account_statement`},
	}}
	a, err := New(Config{
		Completer:     completer,
		Retriever:     retriever,
		Checker:       chk,
		Template:      prompt.Template{Prefix: "You write PostgreSQL.", Suffix: "Question: {input}"},
		K:             5,
		MaxIterations: maxIterations,
	})
	require.NoError(t, err)
	return a, retriever
}

func TestAskReturnsFirstValidCandidate(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"```sql\nSELECT COUNT(*) FROM account_statement\n```"}}
	chk := &mapChecker{results: map[string]checker.Result{
		"SELECT COUNT(*) FROM account_statement": {Kind: checker.KindValid, Description: "Counts rows"},
	}}
	a, retriever := newAgent(t, completer, chk, 3)

	answer, err := a.Ask(context.Background(), "how many rows?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM account_statement", answer.SQL)
	assert.Equal(t, "Counts rows", answer.Description)
	assert.Equal(t, 1, answer.Iterations)
	assert.Equal(t, 5, retriever.k)

	require.Len(t, completer.requests, 1)
	assert.Contains(t, completer.requests[0].System, "User input: total spend")
	assert.Contains(t, completer.requests[0].System, "Question: how many rows?")
	assert.Equal(t, "how many rows?", completer.requests[0].Prompt)
}

func TestAskFeedsDiagnosticsIntoNextAttempt(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"SELECT nope FROM account_statement",
		"SQL Query: SELECT 1 Description: A constant",
	}}
	chk := &mapChecker{results: map[string]checker.Result{
		"SELECT 1": {Kind: checker.KindValid},
	}}
	a, _ := newAgent(t, completer, chk, 3)

	answer, err := a.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", answer.SQL)
	assert.Equal(t, "A constant", answer.Description)
	assert.Equal(t, 2, answer.Iterations)

	require.Len(t, completer.requests, 2)
	assert.Contains(t, completer.requests[1].Prompt, "SELECT nope FROM account_statement")
	assert.Contains(t, completer.requests[1].Prompt, "column does not exist")
}

func TestAskAcceptsAdvisoryResults(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"SELECT broken"}}
	chk := &mapChecker{results: map[string]checker.Result{
		"SELECT broken": {Kind: checker.KindAdvisory, Text: "SQL Query validated but execution failed: boom"},
	}}
	a, _ := newAgent(t, completer, chk, 3)

	answer, err := a.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, checker.KindAdvisory, answer.Check.Kind)
}

func TestAskStopsAtIterationLimit(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"SELECT nope"}}
	chk := &mapChecker{}
	a, _ := newAgent(t, completer, chk, 2)

	answer, err := a.Ask(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, 2, answer.Iterations)
	assert.Len(t, chk.checked, 2)
}

func TestAskPropagatesCompletionFailure(t *testing.T) {
	a, _ := newAgent(t, &scriptedCompleter{err: errors.New("rate limited")}, &mapChecker{}, 3)

	_, err := a.Ask(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIterationLimit)
}

func TestSplitAnswer(t *testing.T) {
	query, description := SplitAnswer("SQL Query: SELECT 1 Description: one row")
	assert.Equal(t, "SELECT 1", query)
	assert.Equal(t, "one row", description)

	query, description = SplitAnswer("```sql\nSELECT 2\n```")
	assert.Equal(t, "SELECT 2", query)
	assert.Empty(t, description)
}

type fakeAsker struct {
	answer Answer
	err    error
	calls  int
}

func (f *fakeAsker) Ask(context.Context, string) (Answer, error) {
	f.calls++
	return f.answer, f.err
}

type fakeCleaner struct{ out string }

func (f fakeCleaner) Clean(context.Context, string) (string, error) { return f.out, nil }

type fakeRunner struct {
	result warehouse.ResultSet
	ran    []string
}

func (f *fakeRunner) Run(_ context.Context, query string) (warehouse.ResultSet, error) {
	f.ran = append(f.ran, query)
	return f.result, nil
}

func TestExecuteRunsCleanedQuery(t *testing.T) {
	asker := &fakeAsker{answer: Answer{SQL: `SELECT SUM(AMOUNT) FROM account_statement`, Description: "Total", Iterations: 1}}
	runner := &fakeRunner{result: warehouse.ResultSet{Columns: []string{"sum"}, Rows: [][]any{{10.0}}}}
	cleaned := `SELECT sum(account_statement."AMOUNT") FROM account_statement`
	p, err := NewPipeline(asker, fakeCleaner{out: cleaned}, runner, nil)
	require.NoError(t, err)

	execution, err := p.Execute(context.Background(), "total spend")
	require.NoError(t, err)
	assert.Equal(t, cleaned, execution.Query)
	assert.Equal(t, "Total", execution.Description)
	assert.Equal(t, []string{cleaned}, runner.ran)
	assert.Equal(t, []string{"sum"}, execution.Result.Columns)
}

func TestExecuteRefusesTautology(t *testing.T) {
	asker := &fakeAsker{}
	p, err := NewPipeline(asker, fakeCleaner{}, &fakeRunner{}, nil)
	require.NoError(t, err)

	execution, err := p.Execute(context.Background(), " 1 = 1 ")
	require.NoError(t, err)
	assert.True(t, execution.Refused)
	assert.Equal(t, RefusedMessage, execution.Description)
	assert.Zero(t, execution.Elapsed)
	assert.Zero(t, asker.calls)
}

func TestExecuteRejectsGuardedQuery(t *testing.T) {
	runner := &fakeRunner{}
	p, err := NewPipeline(&fakeAsker{answer: Answer{SQL: "DROP TABLE account_statement"}}, fakeCleaner{out: ""}, runner, nil)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "drop everything")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, runner.ran)
}

func TestAskPutsMatchingStoredExampleInPrompt(t *testing.T) {
	collection := examples.Collection{Examples: []examples.Example{
		{Input: "total spend last month", Output: `SELECT SUM("DEBIT") FROM account_statement`},
		{Input: "largest credit this year", Output: `SELECT MAX("CREDIT") FROM account_statement`},
		{Input: "number of transactions per account", Output: `SELECT "STATEMENT_FOR_ACC", COUNT(*) FROM account_statement GROUP BY 1`},
		{Input: "show rent payments", Output: `SELECT * FROM account_statement WHERE "DESCRIPTION" ILIKE '%rent%'`},
		{Input: "closing balance for account 12", Output: `SELECT "BALANCE" FROM account_statement WHERE "STATEMENT_FOR_ACC" = 12 ORDER BY "DATE" DESC LIMIT 1`},
		{Input: "average salary credit", Output: `SELECT AVG("CREDIT") FROM account_statement WHERE "DESCRIPTION" = 'Salary'`},
		{Input: "distinct accounts", Output: `SELECT COUNT(DISTINCT "STATEMENT_FOR_ACC") FROM account_statement`},
	}}
	store, err := examples.New(context.Background(), llm.NewHashEmbedder(256), collection)
	require.NoError(t, err)

	completer := &scriptedCompleter{replies: []string{"SELECT MAX(\"CREDIT\") FROM account_statement"}}
	chk := &mapChecker{results: map[string]checker.Result{
		`SELECT MAX("CREDIT") FROM account_statement`: {Kind: checker.KindValid},
	}}
	a, err := New(Config{
		Completer:     completer,
		Retriever:     store,
		Checker:       chk,
		Template:      prompt.Template{Prefix: "You write PostgreSQL.", Suffix: "Question: {input}"},
		K:             5,
		MaxIterations: 1,
	})
	require.NoError(t, err)

	question := "largest credit this year"
	_, err = a.Ask(context.Background(), question)
	require.NoError(t, err)

	require.Len(t, completer.requests, 1)
	system := completer.requests[0].System
	assert.Equal(t, 5, strings.Count(system, "User input: "))
	match := "User input: largest credit this year\nSQL output: SELECT MAX(\"CREDIT\") FROM account_statement"
	require.Contains(t, system, match)
	assert.Equal(t, strings.Index(system, "User input: "), strings.Index(system, match),
		"the matching example should come first")
}
