package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shoplens-ai/search-engine/internal/observability"
	"github.com/shoplens-ai/search-engine/internal/recommend"
)

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	logger *observability.Logger
	engine *recommend.Engine
}

// NewRecommendHandler creates a recommendation handler.
func NewRecommendHandler(logger *observability.Logger, engine *recommend.Engine) *RecommendHandler {
	return &RecommendHandler{logger: logger, engine: engine}
}

// UserRecommendRequestDTO asks for user-based recommendations.
type UserRecommendRequestDTO struct {
	UserID string `json:"userId"`
	TopK   int    `json:"topK,omitempty"`
}

// SimilarRequestDTO asks for item-based recommendations.
type SimilarRequestDTO struct {
	ProductID string `json:"productId"`
	TopK      int    `json:"topK,omitempty"`
}

// HybridRequestDTO asks for blended recommendations.
type HybridRequestDTO struct {
	UserID    string  `json:"userId"`
	ProductID string  `json:"productId"`
	TopK      int     `json:"topK,omitempty"`
	Alpha     float64 `json:"alpha,omitempty"`
}

// RecommendResponseDTO is the recommendation response body.
type RecommendResponseDTO struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Message         string                     `json:"message,omitempty"`
}

// ForUser handles POST /recommendations/user.
func (h *RecommendHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	var req UserRecommendRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", "")
		return
	}

	h.respond(w, h.engine.RecommendForUser(req.UserID, req.TopK))
}

// Similar handles POST /recommendations/similar.
func (h *RecommendHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required", "")
		return
	}

	h.respond(w, h.engine.SimilarItems(req.ProductID, req.TopK))
}

// Hybrid handles POST /recommendations/hybrid.
func (h *RecommendHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	var req HybridRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "userId and productId are required", "")
		return
	}

	h.respond(w, h.engine.Hybrid(req.UserID, req.ProductID, req.TopK, req.Alpha))
}

// Refresh handles POST /recommendations/refresh.
func (h *RecommendHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "recommendation model rebuild failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (h *RecommendHandler) respond(w http.ResponseWriter, recs []recommend.Recommendation) {
	resp := RecommendResponseDTO{Recommendations: recs}
	if len(recs) == 0 {
		resp.Recommendations = []recommend.Recommendation{}
		resp.Message = "no recommendations available"
	}
	writeJSON(w, http.StatusOK, resp)
}
