package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func testProducts() []Product {
	return []Product{
		{
			ID:          "p1",
			Title:       "Salted Almonds",
			Description: "Crunchy roasted almonds with sea salt",
			Categories:  []string{"Snacks", "Nuts"},
			Price:       floatPtr(5),
			Rating:      floatPtr(4.5),
			StockStatus: StockInStock,
		},
		{
			ID:          "p2",
			Title:       "Luxury Snack Hamper",
			Description: "Assorted premium snacks in a gift box",
			Categories:  []string{"Snacks", "Gifts"},
			Price:       floatPtr(50),
			StockStatus: StockInStock,
		},
		{
			ID:          "p3",
			Title:       "Trail Mix Snack Pack",
			Description: "Dried fruit and nut snack mix",
			Categories:  []string{"Snacks"},
			Price:       floatPtr(20),
			Rating:      floatPtr(3.8),
			StockStatus: StockOutOfStock,
		},
		{
			ID:          "p4",
			Title:       "Ceramic Mug",
			Description: "Stoneware mug for hot drinks",
			Categories:  []string{"Kitchen"},
			Price:       floatPtr(12),
			StockStatus: StockInStock,
		},
	}
}

func TestMemoryStoreKeywordQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testProducts()))

	hits, err := store.KeywordQuery(ctx, "snack", 10, nil)
	require.NoError(t, err)

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Product.ID
	}
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, ids)

	hits, err = store.KeywordQuery(ctx, "quantum physics", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStorePredicateFiltering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testProducts()))

	t.Run("in stock only", func(t *testing.T) {
		hits, err := store.KeywordQuery(ctx, "snack", 10, InStock())
		require.NoError(t, err)

		for _, h := range hits {
			assert.Equal(t, StockInStock, h.Product.StockStatus)
		}
		assert.Len(t, hits, 2)
	})

	t.Run("price ceiling", func(t *testing.T) {
		pred := And{InStock(), MaxPrice(10)}
		hits, err := store.KeywordQuery(ctx, "snack", 10, pred)
		require.NoError(t, err)

		require.Len(t, hits, 1)
		assert.Equal(t, "p1", hits[0].Product.ID)
	})

	t.Run("min rating keeps unrated", func(t *testing.T) {
		hits, err := store.KeywordQuery(ctx, "snack", 10, MinRating(4))
		require.NoError(t, err)

		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.Product.ID
		}
		// p1 rated 4.5, p2 unrated; p3 rated 3.8 is excluded.
		assert.ElementsMatch(t, []string{"p1", "p2"}, ids)
	})
}

func TestMemoryStoreHybridQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	products := []Product{
		{ID: "a", Title: "wireless headphones", Vector: []float32{1, 0, 0}, StockStatus: StockInStock},
		{ID: "b", Title: "bluetooth speaker", Vector: []float32{0.9, 0.1, 0}, StockStatus: StockInStock},
		{ID: "c", Title: "garden hose", Vector: []float32{0, 0, 1}, StockStatus: StockInStock},
	}
	require.NoError(t, store.Upsert(ctx, products))

	t.Run("fully semantic", func(t *testing.T) {
		hits, err := store.HybridQuery(ctx, "", []float32{1, 0, 0}, 1.0, 2, nil)
		require.NoError(t, err)

		require.Len(t, hits, 2)
		assert.Equal(t, "a", hits[0].Product.ID)
		assert.Equal(t, "b", hits[1].Product.ID)
	})

	t.Run("fully lexical ignores vectors", func(t *testing.T) {
		hits, err := store.HybridQuery(ctx, "garden hose", []float32{1, 0, 0}, 0.0, 5, nil)
		require.NoError(t, err)

		require.NotEmpty(t, hits)
		assert.Equal(t, "c", hits[0].Product.ID)
	})

	t.Run("blend clamps out of range", func(t *testing.T) {
		hits, err := store.HybridQuery(ctx, "", []float32{1, 0, 0}, 2.5, 1, nil)
		require.NoError(t, err)

		require.Len(t, hits, 1)
		assert.Equal(t, "a", hits[0].Product.ID)
	})
}

func TestMemoryStoreUpsertVariants(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	products := []Product{
		{ID: "p1", Title: "Granola", Weight: "250g", Price: floatPtr(4), StockStatus: StockInStock},
		{ID: "p1", Title: "Granola", Weight: "1kg", Price: floatPtr(12), StockStatus: StockInStock},
	}
	require.NoError(t, store.Upsert(ctx, products))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Re-upserting the same variant replaces rather than duplicates.
	updated := Product{ID: "p1", Title: "Granola Deluxe", Weight: "250g", Price: floatPtr(5), StockStatus: StockInStock}
	require.NoError(t, store.Upsert(ctx, []Product{updated}))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestMemoryStoreGetByIDNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"plain number", "12.50", floatPtr(12.50)},
		{"currency symbol", "$12.50", floatPtr(12.50)},
		{"pound symbol with space", "£ 8", floatPtr(8)},
		{"thousands separator", "$1,299.99", floatPtr(1299.99)},
		{"empty", "", nil},
		{"garbage", "call for price", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.InDelta(t, *tt.want, *got, 1e-9)
			}
		})
	}
}
