// Package llm provides a minimal language-model provider abstraction.
// The provider is selected once at startup; callers only see the
// Provider interface.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider is the closed capability set the search engine needs from a
// language model.
type Provider interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// Config holds provider settings.
type Config struct {
	Provider    string // openai or mock
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// New selects and constructs a provider from config.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "mock", "":
		return NewMockProvider(nil), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// OpenAIProvider talks to an OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIProvider{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Invoke sends the prompt and returns the full completion.
func (p *OpenAIProvider) Invoke(ctx context.Context, prompt string) (string, error) {
	body, err := p.send(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s (type: %s)", resp.Error.Message, resp.Error.Type)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream sends the prompt and returns completion chunks as they arrive.
// The channel is closed when the stream ends or the context is canceled.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	body, err := p.send(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 16)

	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}

			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var resp chatResponse
			if err := json.Unmarshal([]byte(payload), &resp); err != nil {
				continue
			}
			if len(resp.Choices) == 0 {
				continue
			}

			chunk := resp.Choices[0].Delta.Content
			if chunk == "" {
				continue
			}

			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (p *OpenAIProvider) send(ctx context.Context, prompt string, stream bool) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: p.temperature,
		Stream:      stream,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	return resp.Body, nil
}

// MockProvider returns canned completions for testing and development.
type MockProvider struct {
	// Responses maps a prompt substring to its canned completion. The
	// first matching entry wins; unmatched prompts get Default.
	Responses map[string]string
	Default   string
}

// NewMockProvider creates a mock provider with the given canned
// responses. A nil map yields the default response for every prompt.
func NewMockProvider(responses map[string]string) *MockProvider {
	return &MockProvider{
		Responses: responses,
		Default:   "{}",
	}
}

// Invoke returns the canned completion for the prompt.
func (p *MockProvider) Invoke(ctx context.Context, prompt string) (string, error) {
	for needle, response := range p.Responses {
		if strings.Contains(prompt, needle) {
			return response, nil
		}
	}
	return p.Default, nil
}

// Stream returns the canned completion as a single chunk.
func (p *MockProvider) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	response, err := p.Invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 1)
	ch <- response
	close(ch)
	return ch, nil
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*MockProvider)(nil)
)
