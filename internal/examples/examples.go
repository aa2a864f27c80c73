// Package examples loads the curated question/SQL pairs and retrieves the
// ones most similar to a new question.
package examples

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Example is one curated question with the SQL that answers it.
type Example struct {
	Input       string `yaml:"input" json:"input"`
	Output      string `yaml:"output" json:"output"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type Collection struct {
	Examples []Example
	// HasDescriptions is true when the source file declares a description field.
	HasDescriptions bool
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Store is an in-memory similarity index over a Collection. It is immutable
// after New and safe for concurrent use.
type Store struct {
	embedder        Embedder
	examples        []Example
	vectors         [][]float64
	hasDescriptions bool
}

func New(ctx context.Context, embedder Embedder, collection Collection) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	inputs := make([]string, len(collection.Examples))
	for i, example := range collection.Examples {
		inputs[i] = example.Input
	}
	var vectors [][]float64
	if len(inputs) > 0 {
		var err error
		vectors, err = embedder.Embed(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("embed examples: %w", err)
		}
		if len(vectors) != len(inputs) {
			return nil, fmt.Errorf("embed examples: got %d vectors for %d examples", len(vectors), len(inputs))
		}
	}
	stored := make([]Example, len(collection.Examples))
	copy(stored, collection.Examples)
	return &Store{
		embedder:        embedder,
		examples:        stored,
		vectors:         vectors,
		hasDescriptions: collection.HasDescriptions,
	}, nil
}

// Retrieve returns up to k examples ordered by descending cosine similarity
// to question. Equal scores keep collection order.
func (s *Store) Retrieve(ctx context.Context, question string, k int) ([]Example, error) {
	if k <= 0 || len(s.examples) == 0 {
		return nil, nil
	}
	queryVectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(queryVectors) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(queryVectors))
	}

	type scored struct {
		index int
		score float64
	}
	matches := make([]scored, len(s.examples))
	for i, vector := range s.vectors {
		matches[i] = scored{index: i, score: CosineSimilarity(queryVectors[0], vector)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	out := make([]Example, len(matches))
	for i, match := range matches {
		out[i] = s.examples[match.index]
	}
	return out, nil
}

func (s *Store) Examples() []Example {
	out := make([]Example, len(s.examples))
	copy(out, s.examples)
	return out
}

func (s *Store) HasDescriptions() bool {
	return s.hasDescriptions
}

// CosineSimilarity returns 0 when either vector has zero magnitude or the
// lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
