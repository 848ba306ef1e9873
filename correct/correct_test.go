package correct

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateSendsChatCompletion(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "corrected text"}},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPCorrector(Config{BaseURL: srv.URL, Model: "corrector-1", APIKey: "sk-test"})
	out, err := c.Generate(context.Background(), "raw ocr text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "corrected text" {
		t.Fatalf("out = %q", out)
	}

	if got.Model != "corrector-1" {
		t.Fatalf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "raw ocr text" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPCorrector(Config{BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), "text"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPCorrector(Config{BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), "text"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPCorrector(Config{BaseURL: srv.URL})
	if !c.Available(context.Background()) {
		t.Fatal("expected available")
	}

	srv.Close()
	if c.Available(context.Background()) {
		t.Fatal("expected unavailable after server shutdown")
	}
}

func TestAvailableUnconfigured(t *testing.T) {
	c := NewHTTPCorrector(Config{})
	if c.Available(context.Background()) {
		t.Fatal("empty base URL must report unavailable")
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"localhost:1234", "http://localhost:1234/v1"},
		{"http://host/v1", "http://host/v1"},
		{"https://host/", "https://host/v1"},
		{" https://host/v1/ ", "https://host/v1"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeBaseURL(tc.in); got != tc.want {
			t.Fatalf("normalizeBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
