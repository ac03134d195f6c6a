package retrieval

import (
	"context"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

// OfferIndex looks up offers bundling a given product. Implemented by
// storage.OfferRepository.
type OfferIndex interface {
	FindOffersContaining(ctx context.Context, productID string) ([]*storage.Offer, error)
}

// BundledProduct is a display view of a product inside an offer.
type BundledProduct struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Price *float64 `json:"price,omitempty"`
	Image string   `json:"image,omitempty"`
	Link  string   `json:"link,omitempty"`
}

// OfferView is a display view of an offer and its resolved bundle.
type OfferView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Price       *float64         `json:"price,omitempty"`
	Description string           `json:"description"`
	Products    []BundledProduct `json:"products"`
}

// CrossReferencer attaches matching offers to search results.
type CrossReferencer struct {
	offers OfferIndex
	store  catalog.Store
	logger *observability.Logger
}

// NewCrossReferencer creates a cross-referencer.
func NewCrossReferencer(offers OfferIndex, store catalog.Store, logger *observability.Logger) *CrossReferencer {
	return &CrossReferencer{offers: offers, store: store, logger: logger}
}

// AttachOffers finds offers bundling any of the given products. The
// input order is preserved in the returned slice. Offers seen more than
// once keep the details of their first occurrence and only gain newly
// resolved bundled products. An unavailable or empty offer index yields
// an empty map without error so search still succeeds.
func (c *CrossReferencer) AttachOffers(ctx context.Context, products []catalog.Product) ([]catalog.Product, map[string]OfferView) {
	views := make(map[string]OfferView)

	// Pack-size variants share an id; each distinct id is looked up once.
	seenIDs := make(map[string]struct{}, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if _, dup := seenIDs[p.ID]; dup {
			continue
		}
		seenIDs[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}

	for _, id := range ids {
		offers, err := c.offers.FindOffersContaining(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Str("product_id", id).Msg("Offer lookup failed, continuing without offers")
			return products, map[string]OfferView{}
		}

		for _, offer := range offers {
			view, seen := views[offer.ID]
			if !seen {
				view = OfferView{
					ID:          offer.ID,
					Name:        offer.Name,
					Price:       offer.Price,
					Description: offer.Description,
				}
			}

			for _, bundledID := range offer.ProductIDs {
				if containsBundled(view.Products, bundledID) {
					continue
				}

				bundled, err := c.store.GetByID(ctx, bundledID)
				if err != nil {
					c.logger.Warn().
						Str("offer_id", offer.ID).
						Str("product_id", bundledID).
						Err(err).
						Msg("Skipping unresolvable bundled product")
					continue
				}

				view.Products = append(view.Products, BundledProduct{
					ID:    bundled.ID,
					Title: bundled.Title,
					Price: bundled.Price,
					Image: bundled.Image,
					Link:  bundled.Link,
				})
			}

			views[offer.ID] = view
		}
	}

	return products, views
}

func containsBundled(products []BundledProduct, id string) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}
