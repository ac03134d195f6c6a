package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

// OffersHandler serves offer lookups.
type OffersHandler struct {
	logger *observability.Logger
	offers *storage.OfferRepository
}

// NewOffersHandler creates an offers handler.
func NewOffersHandler(logger *observability.Logger, offers *storage.OfferRepository) *OffersHandler {
	return &OffersHandler{logger: logger, offers: offers}
}

// OffersResponseDTO is the offers response body.
type OffersResponseDTO struct {
	Offers  []*storage.Offer `json:"offers"`
	Message string           `json:"message,omitempty"`
}

// ForProduct handles GET /offers/{productID}.
func (h *OffersHandler) ForProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "productID is required", "")
		return
	}

	offers, err := h.offers.FindOffersContaining(r.Context(), productID)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "offers are temporarily unavailable", "")
			return
		}
		h.logger.Error().Err(err).Str("product_id", productID).Msg("Offer lookup failed")
		writeError(w, http.StatusInternalServerError, "offer lookup failed", "")
		return
	}

	resp := OffersResponseDTO{Offers: offers}
	if len(offers) == 0 {
		resp.Offers = []*storage.Offer{}
		resp.Message = "no offers for this product"
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /offers.
func (h *OffersHandler) List(w http.ResponseWriter, r *http.Request) {
	offers, err := h.offers.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Offer listing failed")
		writeError(w, http.StatusInternalServerError, "offer listing failed", "")
		return
	}

	resp := OffersResponseDTO{Offers: offers}
	if len(offers) == 0 {
		resp.Offers = []*storage.Offer{}
		resp.Message = "no offers available"
	}
	writeJSON(w, http.StatusOK, resp)
}
