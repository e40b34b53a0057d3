package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewClaudeClient_RequiresKey(t *testing.T) {
	if _, err := NewClaudeClient(ClaudeConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClaudeClient_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("X-Api-Key"))
		}
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "```json\n{}"},
				{"type": "text", "text": "\n```"},
			},
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	c, err := NewClaudeClient(ClaudeConfig{APIKey: "test-key", Model: "claude-test", Temperature: 0.3, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.Complete(context.Background(), "extract please")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "```json\n{}\n```" {
		t.Errorf("expected joined text blocks, got %q", got)
	}
	if body["model"] != "claude-test" || body["temperature"] != 0.3 {
		t.Errorf("unexpected request body %v", body)
	}
	if c.Model() != "claude-test" {
		t.Errorf("unexpected model %q", c.Model())
	}
}

func TestClaudeClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{529, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`)) //nolint:errcheck
			}))
			defer srv.Close()

			c, _ := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: srv.URL})
			_, err := c.Complete(context.Background(), "x")
			var svcErr *ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if svcErr.StatusCode != tc.status || svcErr.Retryable() != tc.retryable {
				t.Errorf("expected status=%d retryable=%v, got %d %v", tc.status, tc.retryable, svcErr.StatusCode, svcErr.Retryable())
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"Rs. ₹ 1,000", 5, "Rs. ..."},
		{"₹₹", 4, "₹..."},
	}
	for _, tc := range tests {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tc.in, tc.n)
		}
	}
}
