package examples

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder scores texts on a fixed vocabulary so tests can reason
// about similarity exactly.
type keywordEmbedder struct {
	vocabulary []string
	err        error
	calls      int
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(e.vocabulary))
		for j, word := range e.vocabulary {
			if strings.Contains(strings.ToLower(text), word) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

func sampleCollection() Collection {
	return Collection{Examples: []Example{
		{Input: "total debit", Output: "SELECT SUM(DEBIT) FROM account_statement"},
		{Input: "total credit", Output: "SELECT SUM(CREDIT) FROM account_statement"},
		{Input: "last transaction date", Output: "SELECT MAX(TRANSACTION_DATE) FROM account_statement"},
		{Input: "debit count", Output: "SELECT COUNT(DEBIT) FROM account_statement"},
	}}
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	embedder := &keywordEmbedder{vocabulary: []string{"total", "debit", "credit", "date"}}
	store, err := New(context.Background(), embedder, sampleCollection())
	require.NoError(t, err)

	got, err := store.Retrieve(context.Background(), "what is the total debit", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "total debit", got[0].Input)
	assert.Equal(t, "debit count", got[1].Input)
}

func TestRetrieveKeepsCollectionOrderOnTies(t *testing.T) {
	embedder := &keywordEmbedder{vocabulary: []string{"total", "debit", "credit", "date"}}
	store, err := New(context.Background(), embedder, sampleCollection())
	require.NoError(t, err)

	got, err := store.Retrieve(context.Background(), "total", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "total debit", got[0].Input)
	assert.Equal(t, "total credit", got[1].Input)
}

func TestRetrieveReturnsWholeCollectionWhenKExceedsSize(t *testing.T) {
	store, err := New(context.Background(), &keywordEmbedder{vocabulary: []string{"debit"}}, sampleCollection())
	require.NoError(t, err)

	got, err := store.Retrieve(context.Background(), "debit", 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestRetrieveWithNonPositiveKReturnsNothing(t *testing.T) {
	embedder := &keywordEmbedder{vocabulary: []string{"debit"}}
	store, err := New(context.Background(), embedder, sampleCollection())
	require.NoError(t, err)

	got, err := store.Retrieve(context.Background(), "debit", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, embedder.calls, "question should not be embedded")
}

func TestNewFailsWhenEmbeddingBackendFails(t *testing.T) {
	_, err := New(context.Background(), &keywordEmbedder{err: errors.New("offline")}, sampleCollection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestExamplesReturnsCopy(t *testing.T) {
	store, err := New(context.Background(), &keywordEmbedder{vocabulary: []string{"x"}}, sampleCollection())
	require.NoError(t, err)

	copied := store.Examples()
	copied[0].Input = "mutated"
	assert.Equal(t, "total debit", store.Examples()[0].Input)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 1}))
}
