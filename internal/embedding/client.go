// Package embedding provides embedding generation for product search.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Embedder defines the interface for embedding generation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Client generates embeddings via an OpenAI-compatible embeddings API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimension  int
}

// Config holds embedding client configuration.
type Config struct {
	APIKey    string
	Model     string // e.g., "all-MiniLM-L6-v2"
	BaseURL   string
	Dimension int // Default: 384
	Timeout   time.Duration
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.Model == "" {
		cfg.Model = "all-MiniLM-L6-v2"
	}

	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
	}, nil
}

// EmbeddingRequest represents a request to generate embeddings.
type EmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// EmbeddingResponse represents the API response.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Error  *EmbeddingError `json:"error,omitempty"`
}

// EmbeddingData contains the embedding vector.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingError represents an API error.
type EmbeddingError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Embed generates embeddings for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := EmbeddingRequest{
		Input: texts,
		Model: c.model,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp EmbeddingResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("API error: %s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
			if len(data.Embedding) > 0 && c.dimension != len(data.Embedding) {
				c.dimension = len(data.Embedding)
			}
		}
	}

	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for texts in batches.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	embeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]
		batchEmbeddings, err := c.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}

		embeddings = append(embeddings, batchEmbeddings...)
	}

	return embeddings, nil
}

// Model returns the model being used.
func (c *Client) Model() string {
	return c.model
}

// Dimension returns the embedding dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// MockClient provides a deterministic embedding client for testing.
type MockClient struct {
	dimension int
}

// NewMockClient creates a mock client that generates hash-based embeddings.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = 384
	}
	return &MockClient{dimension: dimension}
}

// Embed generates deterministic embeddings derived from the input text.
func (c *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, c.dimension)
		for j, char := range texts[i] {
			embeddings[i][j%c.dimension] += float32(char) / 1000.0
		}
		embeddings[i] = normalize(embeddings[i])
	}
	return embeddings, nil
}

// EmbedSingle generates a deterministic embedding for a single text.
func (c *MockClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-embedding-model"
}

// Dimension returns the embedding dimension.
func (c *MockClient) Dimension() int {
	return c.dimension
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}

var (
	_ Embedder = (*Client)(nil)
	_ Embedder = (*MockClient)(nil)
)
