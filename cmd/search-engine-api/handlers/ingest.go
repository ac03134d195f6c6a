package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

// IngestHandler triggers catalog ingestion.
type IngestHandler struct {
	logger      *observability.Logger
	ingestor    *catalog.Ingestor
	defaultPath string
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(logger *observability.Logger, ingestor *catalog.Ingestor, defaultPath string) *IngestHandler {
	return &IngestHandler{logger: logger, ingestor: ingestor, defaultPath: defaultPath}
}

// IngestRequestDTO is the ingest request body.
type IngestRequestDTO struct {
	Path  string `json:"path,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// IngestResponseDTO is the ingest response body.
type IngestResponseDTO struct {
	Ingested int    `json:"ingested"`
	Skipped  bool   `json:"skipped"`
	Message  string `json:"message,omitempty"`
}

// Ingest handles POST /ingest.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequestDTO
	if r.Body != nil {
		// An empty body means "use the configured snapshot".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	path := req.Path
	if path == "" {
		path = h.defaultPath
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "no snapshot path configured", "")
		return
	}

	n, err := h.ingestor.Run(r.Context(), catalog.CSVSnapshot{Path: path}, req.Force, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("path", path).Msg("Ingest failed")
		writeError(w, http.StatusInternalServerError, "ingest failed", "")
		return
	}

	resp := IngestResponseDTO{Ingested: n, Skipped: n == 0}
	if resp.Skipped {
		resp.Message = "catalog is fresh"
	}
	writeJSON(w, http.StatusOK, resp)
}
