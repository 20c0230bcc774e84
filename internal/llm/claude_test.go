package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func claudeMessageResponse(id, model, stopReason string, text string, inTok, outTok int) map[string]any {
	return map[string]any{
		"id":            id,
		"type":          "message",
		"role":          "assistant",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"model":         model,
		"stop_reason":   stopReason,
		"stop_sequence": "",
		"usage": map[string]any{
			"input_tokens":                inTok,
			"output_tokens":               outTok,
			"cache_creation":              map[string]any{"ephemeral_1h_input_tokens": 0, "ephemeral_5m_input_tokens": 0},
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     0,
			"server_tool_use":             map[string]any{"web_search_requests": 0},
			"service_tier":                "standard",
		},
	}
}

func TestClaudeProvider_Complete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		_ = r.Body.Close()

		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(claudeMessageResponse("msg_1", "test-model", "end_turn", "42", 3, 1))
	}))
	t.Cleanup(srv.Close)

	p := NewClaudeProvider("k", srv.URL+"/v1", "m")
	resp, err := p.Complete(context.Background(), &Request{
		System:    "You are a health-data assistant.",
		Messages:  []Message{{Role: "user", Content: "PROBLEM: steps=9000"}},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "42" {
		t.Fatalf("Text: got %q want %q", resp.Text, "42")
	}
	if resp.StopReason != "end_turn" {
		t.Fatalf("StopReason: got %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 3 || resp.Usage.OutputTokens != 1 {
		t.Fatalf("Usage: %#v", resp.Usage)
	}
}

func TestClaudeProvider_RetriesOn5xx(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.Body.Close()
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, `{"type":"error","error":{"type":"overloaded_error","message":"try later"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(claudeMessageResponse("msg_2", "test-model", "end_turn", "ok", 1, 1))
	}))
	t.Cleanup(srv.Close)

	p := NewClaudeProvider("k", srv.URL+"/v1", "m")
	p.retryBase = 0
	resp, err := p.Complete(context.Background(), &Request{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 8,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("Text: got %q", resp.Text)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls: got %d want 2", got)
	}
}

func TestClaudeProvider_ErrorBranches(t *testing.T) {
	t.Parallel()

	p := NewClaudeProvider("k", " ", " ")
	if _, err := p.Complete(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "nil request") {
		t.Fatalf("Complete(nil req): %v", err)
	}

	var pnil *ClaudeProvider
	if _, err := pnil.Complete(context.Background(), &Request{}); err == nil {
		t.Fatalf("Complete(nil provider): expected error")
	}
}
