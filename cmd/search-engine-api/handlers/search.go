package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/retrieval"
)

// SearchHandler handles product search requests.
type SearchHandler struct {
	logger  *observability.Logger
	service *retrieval.Service

	mu       sync.Mutex
	sessions map[string]retrieval.Session
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(logger *observability.Logger, service *retrieval.Service) *SearchHandler {
	return &SearchHandler{
		logger:   logger,
		service:  service,
		sessions: make(map[string]retrieval.Session),
	}
}

// SearchRequestDTO is the search request body.
type SearchRequestDTO struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// SearchResponseDTO is the search response body.
type SearchResponseDTO struct {
	SessionID     string                          `json:"sessionId"`
	Query         string                          `json:"query"`
	Products      []retrieval.ResultProduct       `json:"products"`
	Offers        map[string]retrieval.OfferView  `json:"offers"`
	PriceIntent   string                          `json:"priceIntent"`
	SuggestOffers bool                            `json:"suggestOffers"`
	Message       string                          `json:"message,omitempty"`
}

// Search handles POST /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SearchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required", "")
		return
	}

	session := h.loadSession(req.SessionID)

	resp, session, err := h.service.Search(ctx, session, req.Query)
	h.storeSession(session)
	if err != nil {
		if errors.Is(err, retrieval.ErrRetrievalUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "search is temporarily unavailable", "")
			return
		}
		h.logger.Error().Err(err).Msg("Search failed")
		writeError(w, http.StatusInternalServerError, "search failed", "")
		return
	}

	if resp.Products == nil {
		resp.Products = []retrieval.ResultProduct{}
	}

	writeJSON(w, http.StatusOK, SearchResponseDTO{
		SessionID:     session.ID,
		Query:         resp.Query,
		Products:      resp.Products,
		Offers:        resp.Offers,
		PriceIntent:   string(resp.PriceIntent),
		SuggestOffers: resp.SuggestOffers,
		Message:       resp.Message,
	})
}

func (h *SearchHandler) loadSession(id string) retrieval.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == "" {
		return retrieval.Session{ID: uuid.NewString()}
	}
	if session, ok := h.sessions[id]; ok {
		return session
	}
	return retrieval.Session{ID: id}
}

func (h *SearchHandler) storeSession(session retrieval.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session.ID] = session
}
