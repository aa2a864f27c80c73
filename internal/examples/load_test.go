package examples

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAMLList(t *testing.T) {
	path := writeFile(t, "examples.yaml", `
- input: total debit
  output: SELECT SUM(DEBIT) FROM account_statement
  description: Sum of all debits
- input: total credit
  output: SELECT SUM(CREDIT) FROM account_statement
`)
	collection, err := Load(path)
	require.NoError(t, err)
	require.Len(t, collection.Examples, 2)
	assert.True(t, collection.HasDescriptions)
	assert.Equal(t, "Sum of all debits", collection.Examples[0].Description)
	assert.Equal(t, "", collection.Examples[1].Description)
}

func TestLoadJSONWithExamplesKey(t *testing.T) {
	path := writeFile(t, "examples.json", `{"examples":[{"input":"a","output":"SELECT 1"}]}`)
	collection, err := Load(path)
	require.NoError(t, err)
	require.Len(t, collection.Examples, 1)
	assert.False(t, collection.HasDescriptions)
	assert.Equal(t, "SELECT 1", collection.Examples[0].Output)
}

func TestLoadFailsOnMissingOutput(t *testing.T) {
	path := writeFile(t, "examples.yml", "- input: orphan\n")
	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingOutput)
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "examples.csv", "Input,Output,Description\ntotal debit,SELECT SUM(DEBIT) FROM t,sum\n")
	collection, err := Load(path)
	require.NoError(t, err)
	require.Len(t, collection.Examples, 1)
	assert.True(t, collection.HasDescriptions)
	assert.Equal(t, "sum", collection.Examples[0].Description)
}

func TestLoadCSVWithoutOutputColumn(t *testing.T) {
	path := writeFile(t, "examples.csv", "input\nquestion\n")
	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingOutput)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "examples.txt", "nothing")
	_, err := Load(path)
	require.Error(t, err)
}
