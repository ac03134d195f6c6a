package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

func newTestClassifier() *PriceIntentClassifier {
	return NewPriceIntentClassifier(embedding.NewMockClient(32), IntentConfig{}, observability.NopLogger())
}

func TestClassifyPriceIntent(t *testing.T) {
	classifier := newTestClassifier()
	ctx := context.Background()

	tests := []struct {
		query string
		want  PriceIntent
	}{
		{"show me the cheapest gift box", IntentCheapest},
		{"what is your most affordable budget option", IntentCheapest},
		{"I want the most expensive luxury hamper!", IntentPremium},
		{"premium high end chocolates", IntentPremium},
		{"tell me about nuts", IntentNeutral},
		{"do you have gift boxes", IntentNeutral},
		{"", IntentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(ctx, tt.query))
		})
	}
}

func TestClassifyNormalizesPunctuation(t *testing.T) {
	classifier := newTestClassifier()

	got := classifier.Classify(context.Background(), "CHEAPEST?! snacks...")
	assert.Equal(t, IntentCheapest, got)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "whats the cheapest one", normalizeQuery("What's the CHEAPEST one?"))
	assert.Equal(t, "", normalizeQuery("!!!"))
}

func TestApplyPriceOrder(t *testing.T) {
	build := func() []ScoredCandidate {
		return []ScoredCandidate{
			{Product: catalog.Product{ID: "mid", Price: price(20)}, Score: 0.9},
			{Product: catalog.Product{ID: "nopriced"}, Score: 0.8},
			{Product: catalog.Product{ID: "low", Price: price(5)}, Score: 0.7},
			{Product: catalog.Product{ID: "high", Price: price(50)}, Score: 0.6},
		}
	}

	t.Run("ascending", func(t *testing.T) {
		candidates := build()
		ApplyPriceOrder(candidates, IntentCheapest)

		ids := []string{candidates[0].Product.ID, candidates[1].Product.ID, candidates[2].Product.ID, candidates[3].Product.ID}
		assert.Equal(t, []string{"low", "mid", "high", "nopriced"}, ids)
	})

	t.Run("descending", func(t *testing.T) {
		candidates := build()
		ApplyPriceOrder(candidates, IntentPremium)

		ids := []string{candidates[0].Product.ID, candidates[1].Product.ID, candidates[2].Product.ID, candidates[3].Product.ID}
		assert.Equal(t, []string{"high", "mid", "low", "nopriced"}, ids)
	})

	t.Run("neutral keeps relevance order", func(t *testing.T) {
		candidates := build()
		ApplyPriceOrder(candidates, IntentNeutral)

		assert.Equal(t, "mid", candidates[0].Product.ID)
		assert.Equal(t, "nopriced", candidates[1].Product.ID)
	})
}
