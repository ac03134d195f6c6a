package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/llm"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

func TestExtractFilters(t *testing.T) {
	provider := llm.NewMockProvider(map[string]string{
		"under 20 dollars": `{"price": {"op": "less_or_equal", "value": 20}}`,
		"highly rated":     `{"rating": {"op": "greater_or_equal", "value": 4}}`,
		"string number":    `{"price": {"op": "less_or_equal", "value": "15.5"}}`,
		"broken json":      `{"price": {"op": "less_or_equal",`,
		"weird value":      `{"price": {"op": "less_or_equal", "value": "cheap"}}`,
	})
	extractor := NewFilterExtractor(provider, observability.NopLogger())
	ctx := context.Background()

	t.Run("price ceiling", func(t *testing.T) {
		filters := extractor.Extract(ctx, "snacks under 20 dollars")
		require.NotNil(t, filters.Predicate)

		cheap := catalog.Product{Price: price(15), StockStatus: catalog.StockInStock}
		pricey := catalog.Product{Price: price(25), StockStatus: catalog.StockInStock}
		assert.True(t, filters.Predicate.Matches(cheap))
		assert.False(t, filters.Predicate.Matches(pricey))
	})

	t.Run("rating floor", func(t *testing.T) {
		filters := extractor.Extract(ctx, "highly rated snacks")
		assert.Nil(t, filters.Predicate)
		require.NotNil(t, filters.MinRating)
		assert.InDelta(t, 4.0, *filters.MinRating, 1e-9)
	})

	t.Run("numeric string value accepted", func(t *testing.T) {
		filters := extractor.Extract(ctx, "string number query")
		require.NotNil(t, filters.Predicate)
		assert.True(t, filters.Predicate.Matches(catalog.Product{Price: price(10)}))
	})

	t.Run("malformed output falls back to defaults", func(t *testing.T) {
		filters := extractor.Extract(ctx, "broken json query")
		assert.Nil(t, filters.Predicate)
		assert.Nil(t, filters.MinRating)
	})

	t.Run("non-numeric value ignored", func(t *testing.T) {
		filters := extractor.Extract(ctx, "weird value query")
		assert.Nil(t, filters.Predicate)
	})

	t.Run("no constraints", func(t *testing.T) {
		filters := extractor.Extract(ctx, "plain snack query")
		assert.Nil(t, filters.Predicate)
		assert.Nil(t, filters.MinRating)
	})
}
