package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplens-ai/search-engine/internal/observability"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), Options{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Schema(context.Background(), db))
	return db
}

func TestOfferRepository(t *testing.T) {
	db := testDB(t)
	repo := NewOfferRepository(db, observability.NopLogger())
	ctx := context.Background()

	price := 19.99
	offers := []*Offer{
		{ID: "o1", Name: "Snack Bundle", Price: &price, Description: "Two snacks", ProductIDs: []string{"p1", "p2"}},
		{ID: "o2", Name: "Solo Deal", Description: "One snack", ProductIDs: []string{"p2"}},
		{ID: "o3", Name: "Empty Offer", ProductIDs: nil},
	}
	for _, o := range offers {
		require.NoError(t, repo.Insert(ctx, o))
	}

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "Snack Bundle", got.Name)
		assert.Equal(t, []string{"p1", "p2"}, got.ProductIDs)
		require.NotNil(t, got.Price)
		assert.InDelta(t, 19.99, *got.Price, 1e-9)

		_, err = repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find offers containing", func(t *testing.T) {
		matched, err := repo.FindOffersContaining(ctx, "p2")
		require.NoError(t, err)

		ids := make([]string, len(matched))
		for i, o := range matched {
			ids[i] = o.ID
		}
		assert.Equal(t, []string{"o1", "o2"}, ids)

		matched, err = repo.FindOffersContaining(ctx, "p9")
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("malformed product list is skipped", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO offers (id, name, price, description, product_ids, created_at)
			VALUES ('bad', 'Broken', NULL, '', '[p1, p2]', $1)
		`, time.Now())
		require.NoError(t, err)

		listed, err := repo.List(ctx)
		require.NoError(t, err)

		for _, o := range listed {
			assert.NotEqual(t, "bad", o.ID)
		}
		assert.Len(t, listed, 3)
	})
}

func TestRatingRepository(t *testing.T) {
	db := testDB(t)
	repo := NewRatingRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ratings := []*Rating{
		{UserID: "u1", ProductID: "p1", Score: 5, RatedAt: base},
		{UserID: "u1", ProductID: "p2", Score: 1, RatedAt: base.Add(time.Hour)},
		{UserID: "u2", ProductID: "p1", Score: 5, RatedAt: base.Add(2 * time.Hour)},
		// Same user and product again with a newer timestamp.
		{UserID: "u1", ProductID: "p1", Score: 2, RatedAt: base.Add(3 * time.Hour)},
	}
	for _, rt := range ratings {
		require.NoError(t, repo.Insert(ctx, rt))
	}

	t.Run("list all keeps duplicates in timestamp order", func(t *testing.T) {
		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)

		assert.Equal(t, "u1", all[0].UserID)
		assert.Equal(t, "p1", all[0].ProductID)
		assert.InDelta(t, 5, all[0].Score, 1e-9)

		last := all[len(all)-1]
		assert.Equal(t, "u1", last.UserID)
		assert.Equal(t, "p1", last.ProductID)
		assert.InDelta(t, 2, last.Score, 1e-9)
	})

	t.Run("list for user", func(t *testing.T) {
		mine, err := repo.ListForUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "p1", mine[0].ProductID)
	})
}

func TestIngestRunRepository(t *testing.T) {
	db := testDB(t)
	repo := NewIngestRunRepository(db)
	ctx := context.Background()

	last, err := repo.LastIngest(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordIngest(ctx, first, 100))
	require.NoError(t, repo.RecordIngest(ctx, second, 120))

	last, err = repo.LastIngest(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(second))
}
