package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

type stubRatings struct {
	ratings []storage.Rating
	err     error
}

func (s *stubRatings) ListAll(ctx context.Context) ([]storage.Rating, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ratings, nil
}

func ratedAt(hours int) time.Time {
	return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hours) * time.Hour)
}

func recommendCatalog(t *testing.T) catalog.Store {
	t.Helper()
	store := catalog.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), []catalog.Product{
		{ID: "P1", Title: "Dark Chocolate Bar", Description: "rich dark chocolate", StockStatus: catalog.StockInStock},
		{ID: "P2", Title: "Milk Chocolate Bar", Description: "creamy milk chocolate", StockStatus: catalog.StockInStock},
		{ID: "P3", Title: "Chocolate Truffles", Description: "assorted chocolate truffles", StockStatus: catalog.StockInStock},
		{ID: "P4", Title: "Garden Hose", Description: "rubber watering hose", StockStatus: catalog.StockInStock},
	}))
	return store
}

func buildEngine(t *testing.T, ratings []storage.Rating) *Engine {
	t.Helper()
	engine := NewEngine(&stubRatings{ratings: ratings}, recommendCatalog(t), Config{}, observability.NopLogger())
	require.NoError(t, engine.Build(context.Background()))
	return engine
}

func TestRecommendForUserFromSimilarUsers(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		{UserID: "U1", ProductID: "P2", Score: 1, RatedAt: ratedAt(1)},
		{UserID: "U2", ProductID: "P1", Score: 5, RatedAt: ratedAt(2)},
		{UserID: "U2", ProductID: "P3", Score: 4, RatedAt: ratedAt(3)},
	})

	recs := engine.RecommendForUser("U1", 5)
	require.Len(t, recs, 1)
	assert.Equal(t, "P3", recs[0].ProductID)
	assert.Equal(t, "Chocolate Truffles", recs[0].Product.Title)

	// Products the user already rated never come back.
	for _, r := range recs {
		assert.NotEqual(t, "P1", r.ProductID)
		assert.NotEqual(t, "P2", r.ProductID)
	}
}

func TestRecommendForUserUnknownUser(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
	})

	assert.Empty(t, engine.RecommendForUser("nobody", 5))
}

func TestLatestRatingWins(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		{UserID: "U2", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		// U2 first loves P2, then revises the rating down.
		{UserID: "U2", ProductID: "P2", Score: 5, RatedAt: ratedAt(1)},
		{UserID: "U2", ProductID: "P2", Score: 1, RatedAt: ratedAt(2)},
		{UserID: "U2", ProductID: "P3", Score: 3, RatedAt: ratedAt(3)},
	})

	recs := engine.RecommendForUser("U1", 5)
	require.Len(t, recs, 2)

	// P3 (3.0) outranks P2, whose prediction uses the revised score.
	assert.Equal(t, "P3", recs[0].ProductID)
	assert.InDelta(t, 3.0, recs[0].Score, 1e-9)
	assert.Equal(t, "P2", recs[1].ProductID)
	assert.InDelta(t, 1.0, recs[1].Score, 1e-9)
}

func TestSimilarItemsExcludesSelf(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		{UserID: "U1", ProductID: "P2", Score: 4, RatedAt: ratedAt(1)},
		{UserID: "U2", ProductID: "P1", Score: 4, RatedAt: ratedAt(2)},
		{UserID: "U2", ProductID: "P2", Score: 5, RatedAt: ratedAt(3)},
		{UserID: "U3", ProductID: "P3", Score: 2, RatedAt: ratedAt(4)},
	})

	recs := engine.SimilarItems("P1", 5)
	require.NotEmpty(t, recs)

	for _, r := range recs {
		assert.NotEqual(t, "P1", r.ProductID)
	}
	assert.Equal(t, "P2", recs[0].ProductID)
}

func TestSimilarItemsUnknownProduct(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
	})

	assert.Empty(t, engine.SimilarItems("missing", 5))
}

func TestHybridBlendsContentSimilarity(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		{UserID: "U1", ProductID: "P2", Score: 4, RatedAt: ratedAt(1)},
		{UserID: "U1", ProductID: "P4", Score: 3, RatedAt: ratedAt(2)},
	})

	// Unknown user: the collaborative term is zero, so ranking follows
	// content similarity to the anchor.
	recs := engine.Hybrid("nobody", "P1", 5, 0.7)
	require.Len(t, recs, 2)

	// Both chocolate products rank on shared terms with the anchor; the
	// garden hose scores zero and is dropped.
	assert.Equal(t, "P3", recs[0].ProductID)
	assert.Equal(t, "P2", recs[1].ProductID)
	for _, r := range recs {
		assert.NotEqual(t, "P1", r.ProductID, "anchor is excluded")
		assert.NotEqual(t, "P4", r.ProductID)
	}
}

func TestHybridCoversUnratedCatalogProducts(t *testing.T) {
	// Only P1 and P4 carry ratings; P2 and P3 exist in the catalog alone.
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		{UserID: "U2", ProductID: "P4", Score: 4, RatedAt: ratedAt(1)},
	})

	recs := engine.Hybrid("nobody", "P1", 5, 0.7)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ProductID
	}
	assert.Contains(t, ids, "P2", "unrated products compete on content similarity")
	assert.Contains(t, ids, "P3")

	// An anchor nobody has rated still anchors content similarity.
	recs = engine.Hybrid("U1", "P3", 5, 0.7)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.NotEqual(t, "P3", r.ProductID)
		assert.NotEqual(t, "P1", r.ProductID, "already rated by the user")
	}
}

func TestHybridExcludesRatedProducts(t *testing.T) {
	engine := buildEngine(t, []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
		{UserID: "U1", ProductID: "P2", Score: 4, RatedAt: ratedAt(1)},
		{UserID: "U2", ProductID: "P1", Score: 5, RatedAt: ratedAt(2)},
		{UserID: "U2", ProductID: "P3", Score: 4, RatedAt: ratedAt(3)},
	})

	recs := engine.Hybrid("U1", "P1", 5, 0.7)
	for _, r := range recs {
		assert.NotEqual(t, "P1", r.ProductID)
		assert.NotEqual(t, "P2", r.ProductID)
	}
}

func TestBuildFailureLeavesEngineQueryable(t *testing.T) {
	source := &stubRatings{err: errors.New("db down")}
	engine := NewEngine(source, recommendCatalog(t), Config{}, observability.NopLogger())

	err := engine.Build(context.Background())
	require.Error(t, err)

	assert.Empty(t, engine.RecommendForUser("U1", 5))
	assert.Empty(t, engine.SimilarItems("P1", 5))
	assert.Empty(t, engine.Hybrid("U1", "P1", 5, 0.7))
}

func TestRefreshPicksUpNewRatings(t *testing.T) {
	source := &stubRatings{ratings: []storage.Rating{
		{UserID: "U1", ProductID: "P1", Score: 5, RatedAt: ratedAt(0)},
	}}
	engine := NewEngine(source, recommendCatalog(t), Config{}, observability.NopLogger())
	require.NoError(t, engine.Build(context.Background()))

	assert.Empty(t, engine.RecommendForUser("U2", 5))

	source.ratings = append(source.ratings,
		storage.Rating{UserID: "U2", ProductID: "P1", Score: 5, RatedAt: ratedAt(1)},
		storage.Rating{UserID: "U1", ProductID: "P3", Score: 4, RatedAt: ratedAt(2)},
	)
	require.NoError(t, engine.Refresh(context.Background()))

	recs := engine.RecommendForUser("U2", 5)
	require.Len(t, recs, 1)
	assert.Equal(t, "P3", recs[0].ProductID)
}
