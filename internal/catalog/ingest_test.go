package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplens-ai/search-engine/internal/embedding"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

const snapshotCSV = `id,title,description,categories,price,rating,weight,image,link,stock_status
p1,Salted Almonds,Roasted almonds,Snacks|Nuts,$5.00,4.5,250g,,,In stock
p1,Salted Almonds,Roasted almonds,Snacks|Nuts,$17.00,4.5,1kg,,,In stock
p2,Gift Hamper,Premium snack box,Snacks|Gifts,£50,,,,,"Out of stock"
,Orphan Row,no id so skipped,,,,,,,
p3,Trail Mix,Fruit and nut mix,Snacks,not a price,bad,,,,In stock
`

type memoryMarker struct {
	last  time.Time
	count int
}

func (m *memoryMarker) LastIngest(ctx context.Context) (time.Time, error) {
	return m.last, nil
}

func (m *memoryMarker) RecordIngest(ctx context.Context, at time.Time, count int) error {
	m.last = at
	m.count = count
	return nil
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(snapshotCSV), 0o644))
	return path
}

func TestCSVSnapshotReadAll(t *testing.T) {
	src := CSVSnapshot{Path: writeSnapshot(t)}

	products, err := src.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 4)

	almonds := products[0]
	assert.Equal(t, "p1", almonds.ID)
	assert.Equal(t, []string{"Snacks", "Nuts"}, almonds.Categories)
	require.NotNil(t, almonds.Price)
	assert.InDelta(t, 5.0, *almonds.Price, 1e-9)
	require.NotNil(t, almonds.Rating)
	assert.InDelta(t, 4.5, *almonds.Rating, 1e-9)
	assert.Equal(t, StockInStock, almonds.StockStatus)

	hamper := products[2]
	assert.Equal(t, StockOutOfStock, hamper.StockStatus)
	assert.Nil(t, hamper.Rating)

	mix := products[3]
	assert.Nil(t, mix.Price, "unparseable price is treated as absent")
	assert.Nil(t, mix.Rating, "unparseable rating is treated as absent")
}

func TestIngestorRun(t *testing.T) {
	store := NewMemoryStore()
	marker := &memoryMarker{}
	logger := observability.NopLogger()

	ing := NewIngestor(store, embedding.NewMockClient(16), marker, IngestorConfig{
		ChunkSize:       2,
		StalenessWindow: 24 * time.Hour,
	}, logger)

	src := CSVSnapshot{Path: writeSnapshot(t)}
	ctx := context.Background()

	var calls [][2]int
	n, err := ing.Run(ctx, src, false, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, [][2]int{{2, 4}, {4, 4}}, calls)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.Equal(t, 4, marker.count)

	t.Run("fresh catalog skips", func(t *testing.T) {
		n, err := ing.Run(ctx, src, false, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("force bypasses gate", func(t *testing.T) {
		n, err := ing.Run(ctx, src, true, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		// Idempotent: re-ingesting the same snapshot does not grow the store.
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("stale catalog re-ingests", func(t *testing.T) {
		marker.last = time.Now().Add(-48 * time.Hour)
		n, err := ing.Run(ctx, src, false, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}
