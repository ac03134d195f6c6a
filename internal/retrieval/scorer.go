package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Passage is a candidate text sent to the relevance scorer.
type Passage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ScoredPassage is the scorer's verdict for one passage.
type ScoredPassage struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// RelevanceScorer scores passages against a query. Implementations may
// return results in any order and may omit passages entirely.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, passages []Passage) ([]ScoredPassage, error)
}

// HTTPScorer calls a cross-encoder reranking service.
type HTTPScorer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// ScorerConfig holds HTTP scorer settings.
type ScorerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewHTTPScorer creates a scorer client.
func NewHTTPScorer(cfg ScorerConfig) (*HTTPScorer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPScorer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

type scoreRequest struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
	Model    string    `json:"model,omitempty"`
}

type scoreResponse struct {
	Results []ScoredPassage `json:"results"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Score sends the query and passages to the scoring service.
func (s *HTTPScorer) Score(ctx context.Context, query string, passages []Passage) ([]ScoredPassage, error) {
	reqBody := scoreRequest{
		Query:    query,
		Passages: passages,
		Model:    s.model,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/rerank", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp scoreResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("scorer error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("scorer error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var scoreResp scoreResponse
	if err := json.Unmarshal(body, &scoreResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return scoreResp.Results, nil
}

// MockScorer returns preset scores for testing.
type MockScorer struct {
	// Scores maps passage ids to scores. Passages without an entry are
	// omitted from the output, mirroring a scorer that drops them.
	Scores map[string]float64

	// Err, when set, is returned by every Score call.
	Err error
}

// Score returns the preset scores.
func (s *MockScorer) Score(ctx context.Context, query string, passages []Passage) ([]ScoredPassage, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	var out []ScoredPassage
	for _, p := range passages {
		if score, ok := s.Scores[p.ID]; ok {
			out = append(out, ScoredPassage{ID: p.ID, Score: score})
		}
	}
	return out, nil
}

var (
	_ RelevanceScorer = (*HTTPScorer)(nil)
	_ RelevanceScorer = (*MockScorer)(nil)
)
