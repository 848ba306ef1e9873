package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPEngine talks to a recognition service over HTTP. The service owns the
// models; this client only ships the image and sniffs whatever JSON shape
// comes back (see DecodeOutput).
type HTTPEngine struct {
	baseURL    string
	name       string
	httpClient *http.Client
}

// NewHTTPEngine creates a client for a remote recognition service. The base
// URL may omit the scheme; http is assumed.
func NewHTTPEngine(baseURL string) *HTTPEngine {
	return &HTTPEngine{
		baseURL: normalizeBaseURL(baseURL),
		name:    "remote",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (e *HTTPEngine) Name() string { return e.name }

type recognizeRequest struct {
	ID        string            `json:"id,omitempty"`
	Image     string            `json:"image"`
	Mode      string            `json:"mode"`
	Languages []string          `json:"languages,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Recognize posts the input to the service's /recognize endpoint and decodes
// the engine-defined response payload.
func (e *HTTPEngine) Recognize(ctx context.Context, in Input) (Output, error) {
	body, err := json.Marshal(recognizeRequest{
		ID:        in.ID,
		Image:     base64.StdEncoding.EncodeToString(in.Image),
		Mode:      in.Mode,
		Languages: in.Languages,
		Metadata:  in.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal recognize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognize call failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recognize response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognize failed with status %d: %s", resp.StatusCode, truncate(payload, 256))
	}

	return DecodeOutput(payload), nil
}

func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
