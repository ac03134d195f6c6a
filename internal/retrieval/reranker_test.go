package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

func price(v float64) *float64 { return &v }

func TestRerankerOrdersByScore(t *testing.T) {
	scorer := &MockScorer{Scores: map[string]float64{
		"a": 0.2,
		"b": 0.9,
		"c": 0.5,
	}}
	reranker := NewReranker(scorer, observability.NopLogger())

	candidates := []catalog.Product{
		{ID: "a", Title: "Almonds"},
		{ID: "b", Title: "Brazil Nuts"},
		{ID: "c", Title: "Cashews"},
	}

	scored := reranker.Rerank(context.Background(), "nuts", candidates, 5)
	require.Len(t, scored, 3)
	assert.Equal(t, "b", scored[0].Product.ID)
	assert.Equal(t, "c", scored[1].Product.ID)
	assert.Equal(t, "a", scored[2].Product.ID)
	assert.InDelta(t, 0.9, scored[0].Score, 1e-9)
}

func TestRerankerVariantsScoredIndependently(t *testing.T) {
	scorer := &MockScorer{Scores: map[string]float64{
		"p1_250g": 0.3,
		"p1_1kg":  0.8,
	}}
	reranker := NewReranker(scorer, observability.NopLogger())

	candidates := []catalog.Product{
		{ID: "p1", Title: "Granola", Weight: "250g"},
		{ID: "p1", Title: "Granola", Weight: " 1kg "},
	}

	scored := reranker.Rerank(context.Background(), "granola", candidates, 5)
	require.Len(t, scored, 2)

	assert.Equal(t, "1kg", scored[0].Weight)
	assert.InDelta(t, 0.8, scored[0].Score, 1e-9)
	assert.Equal(t, "250g", scored[1].Weight)
	assert.InDelta(t, 0.3, scored[1].Score, 1e-9)
}

func TestRerankerFallbackOnError(t *testing.T) {
	scorer := &MockScorer{Err: errors.New("scorer down")}
	reranker := NewReranker(scorer, observability.NopLogger())

	candidates := []catalog.Product{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
		{ID: "c", Title: "Third"},
	}

	scored := reranker.Rerank(context.Background(), "anything", candidates, 2)
	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].Product.ID)
	assert.Equal(t, "b", scored[1].Product.ID)
	assert.Zero(t, scored[0].Score)
}

func TestRerankerFallbackWhenNothingMatches(t *testing.T) {
	scorer := &MockScorer{Scores: map[string]float64{"unknown": 0.9}}
	reranker := NewReranker(scorer, observability.NopLogger())

	candidates := []catalog.Product{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
	}

	scored := reranker.Rerank(context.Background(), "anything", candidates, 5)
	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].Product.ID)
	assert.Equal(t, "b", scored[1].Product.ID)
}

func TestRerankerDiscardsUnmatchedScorerOutput(t *testing.T) {
	scorer := &MockScorer{Scores: map[string]float64{
		"a":     0.9,
		"ghost": 0.99,
	}}
	reranker := NewReranker(scorer, observability.NopLogger())

	candidates := []catalog.Product{{ID: "a", Title: "Real"}}

	scored := reranker.Rerank(context.Background(), "q", candidates, 5)
	require.Len(t, scored, 1)
	assert.Equal(t, "a", scored[0].Product.ID)
}

func TestRerankerSkipsEmptyPassages(t *testing.T) {
	scorer := &MockScorer{Scores: map[string]float64{"a": 0.5}}
	reranker := NewReranker(scorer, observability.NopLogger())

	candidates := []catalog.Product{
		{ID: "a", Title: "Has text"},
		{ID: "empty"},
	}

	scored := reranker.Rerank(context.Background(), "q", candidates, 5)
	require.Len(t, scored, 1)
	assert.Equal(t, "a", scored[0].Product.ID)
}

func TestSplitCandidateKey(t *testing.T) {
	id, weight := splitCandidateKey("p1_250g")
	assert.Equal(t, "p1", id)
	assert.Equal(t, "250g", weight)

	id, weight = splitCandidateKey("p1")
	assert.Equal(t, "p1", id)
	assert.Empty(t, weight)
}
