// Package correct is the boundary to an optional text-correction service.
// The pipeline treats correction as best effort: any failure here means the
// job completes with the uncorrected recognition text.
package correct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Corrector cleans up recognized text. Available is a cheap liveness probe
// so callers can skip Generate when the backing service is down.
type Corrector interface {
	Available(ctx context.Context) bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultSystemPrompt instructs the model to behave as a correction pass,
// not a rewriting one.
const DefaultSystemPrompt = "You fix OCR recognition errors in the text you are given. " +
	"Correct misrecognized characters, broken words and spacing. " +
	"Do not rephrase, translate, or add content. Reply with the corrected text only."

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Config for the HTTP corrector.
type Config struct {
	// BaseURL of an OpenAI-compatible service. A bare host gets an http
	// scheme and a /v1 suffix.
	BaseURL string
	Model   string
	APIKey  string
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
	// Timeout bounds one Generate call. Zero selects 120s.
	Timeout time.Duration
}

// HTTPCorrector talks to an OpenAI-style /chat/completions endpoint.
type HTTPCorrector struct {
	baseURL string
	model   string
	apiKey  string
	system  string
	http    *http.Client
}

// NewHTTPCorrector builds a corrector from cfg.
func NewHTTPCorrector(cfg Config) *HTTPCorrector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &HTTPCorrector{
		baseURL: normalizeBaseURL(cfg.BaseURL),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		system:  system,
		http:    &http.Client{Timeout: timeout},
	}
}

// Available probes the service's model listing endpoint.
func (c *HTTPCorrector) Available(ctx context.Context) bool {
	if c == nil || c.baseURL == "" {
		return false
	}
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probe, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Generate sends the prompt as a chat completion and returns the reply text.
func (c *HTTPCorrector) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("corrector is not configured")
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: c.system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("correction service status %s", resp.Status)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("response missing choices")
	}
	content := decoded.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("response empty")
	}
	return content, nil
}

func (c *HTTPCorrector) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// normalizeBaseURL adds a scheme to bare hosts, strips trailing slashes and
// ensures the OpenAI-style /v1 prefix.
func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}
