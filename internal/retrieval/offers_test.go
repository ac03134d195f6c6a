package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

type stubOfferIndex struct {
	byProduct map[string][]*storage.Offer
	err       error
	lookups   []string
}

func (s *stubOfferIndex) FindOffersContaining(ctx context.Context, productID string) ([]*storage.Offer, error) {
	s.lookups = append(s.lookups, productID)
	if s.err != nil {
		return nil, s.err
	}
	return s.byProduct[productID], nil
}

func offerCatalog(t *testing.T) catalog.Store {
	t.Helper()
	store := catalog.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), []catalog.Product{
		{ID: "p1", Title: "Almonds", Price: price(5), Image: "img/p1.jpg", StockStatus: catalog.StockInStock},
		{ID: "p2", Title: "Cashews", Price: price(7), Image: "img/p2.jpg", StockStatus: catalog.StockInStock},
		{ID: "p3", Title: "Walnuts", Price: price(6), Image: "img/p3.jpg", StockStatus: catalog.StockInStock},
	}))
	return store
}

func TestAttachOffers(t *testing.T) {
	bundle := &storage.Offer{
		ID:         "o1",
		Name:       "Nut Duo",
		Price:      price(10),
		ProductIDs: []string{"p1", "p2"},
	}
	index := &stubOfferIndex{byProduct: map[string][]*storage.Offer{
		"p1": {bundle},
		"p2": {bundle},
	}}

	xref := NewCrossReferencer(index, offerCatalog(t), observability.NopLogger())

	products := []catalog.Product{
		{ID: "p1", Title: "Almonds"},
		{ID: "p2", Title: "Cashews"},
	}

	got, offers := xref.AttachOffers(context.Background(), products)

	// Input order is untouched.
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)

	// The shared offer appears once with both bundled products resolved.
	require.Len(t, offers, 1)
	view := offers["o1"]
	assert.Equal(t, "Nut Duo", view.Name)
	require.Len(t, view.Products, 2)
	assert.Equal(t, "p1", view.Products[0].ID)
	assert.Equal(t, "img/p1.jpg", view.Products[0].Image)
	assert.Equal(t, "p2", view.Products[1].ID)
	assert.Equal(t, "img/p2.jpg", view.Products[1].Image)
}

func TestAttachOffersLooksUpVariantsOnce(t *testing.T) {
	bundle := &storage.Offer{
		ID:         "o1",
		Name:       "Nut Duo",
		ProductIDs: []string{"p1", "p2"},
	}
	index := &stubOfferIndex{byProduct: map[string][]*storage.Offer{
		"p1": {bundle},
	}}

	xref := NewCrossReferencer(index, offerCatalog(t), observability.NopLogger())

	// Two pack sizes of p1 plus p2 trigger one lookup per distinct id.
	products := []catalog.Product{
		{ID: "p1", Weight: "250g"},
		{ID: "p1", Weight: "1kg"},
		{ID: "p2"},
	}

	_, offers := xref.AttachOffers(context.Background(), products)

	assert.Equal(t, []string{"p1", "p2"}, index.lookups)
	require.Len(t, offers, 1)
}

func TestAttachOffersSkipsUnresolvableBundledProduct(t *testing.T) {
	bundle := &storage.Offer{
		ID:         "o1",
		Name:       "Mystery Bundle",
		ProductIDs: []string{"p1", "gone"},
	}
	index := &stubOfferIndex{byProduct: map[string][]*storage.Offer{"p1": {bundle}}}

	xref := NewCrossReferencer(index, offerCatalog(t), observability.NopLogger())

	_, offers := xref.AttachOffers(context.Background(), []catalog.Product{{ID: "p1"}})

	require.Len(t, offers, 1)
	view := offers["o1"]
	require.Len(t, view.Products, 1)
	assert.Equal(t, "p1", view.Products[0].ID)
}

func TestAttachOffersEmptyIndex(t *testing.T) {
	index := &stubOfferIndex{byProduct: map[string][]*storage.Offer{}}
	xref := NewCrossReferencer(index, offerCatalog(t), observability.NopLogger())

	got, offers := xref.AttachOffers(context.Background(), []catalog.Product{{ID: "p1"}})

	assert.Len(t, got, 1)
	assert.Empty(t, offers)
	assert.NotNil(t, offers)
}

func TestAttachOffersIndexFailure(t *testing.T) {
	index := &stubOfferIndex{err: errors.New("db down")}
	xref := NewCrossReferencer(index, offerCatalog(t), observability.NopLogger())

	got, offers := xref.AttachOffers(context.Background(), []catalog.Product{{ID: "p1"}})

	// Search still succeeds without offers.
	assert.Len(t, got, 1)
	assert.Empty(t, offers)
	assert.NotNil(t, offers)
}
