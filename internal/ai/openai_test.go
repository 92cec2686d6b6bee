package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
)

// mockChatServer records chat completion requests and answers with reply.
type mockChatServer struct {
	mu       sync.Mutex
	requests []map[string]any
	headers  []http.Header
	status   int
	reply    string
}

func (m *mockChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload map[string]any
	_ = json.Unmarshal(body, &payload)

	m.mu.Lock()
	m.requests = append(m.requests, payload)
	m.headers = append(m.headers, r.Header.Clone())
	status := m.status
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error": {"message": "Invalid API key", "type": "invalid_request_error"}}`)
		return
	}
	content, _ := json.Marshal(m.reply)
	fmt.Fprintf(w, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %s}}]
	}`, content)
}

func newTestOpenAIClient(t *testing.T, srv *httptest.Server, config *ClientConfig) *OpenAIClient {
	t.Helper()
	return NewOpenAIClient(config,
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithHTTPClient(srv.Client()),
		option.WithMaxRetries(0),
	)
}

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name          string
		config        *ClientConfig
		expectedModel string
		expectedTemp  float64
	}{
		{"defaults", &ClientConfig{APIKey: "k"}, "gpt-4o-mini", 0.2},
		{"custom", &ClientConfig{APIKey: "k", SummaryModel: "gpt-4.1", Temperature: 0.7}, "gpt-4.1", 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOpenAIClient(tt.config)
			if c.config.SummaryModel != tt.expectedModel {
				t.Errorf("Expected model %s, got %s", tt.expectedModel, c.config.SummaryModel)
			}
			if c.config.Temperature != tt.expectedTemp {
				t.Errorf("Expected temperature %v, got %v", tt.expectedTemp, c.config.Temperature)
			}
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	mock := &mockChatServer{reply: "  A concise summary.  "}
	srv := httptest.NewServer(mock)
	defer srv.Close()

	c := newTestOpenAIClient(t, srv, &ClientConfig{APIKey: "test-key", SummaryModel: "gpt-4o-mini"})
	got, err := c.Complete(context.Background(), "Summarize this: package main")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "A concise summary." {
		t.Errorf("Expected trimmed completion, got %q", got)
	}

	if len(mock.requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(mock.requests))
	}
	req := mock.requests[0]
	if req["model"] != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %v", req["model"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("Expected one message, got %v", req["messages"])
	}
	msg, _ := msgs[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "Summarize this: package main" {
		t.Errorf("Unexpected message: %v", msg)
	}
	if auth := mock.headers[0].Get("Authorization"); auth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", auth)
	}
}

func TestOpenAIClient_ProjectHeader(t *testing.T) {
	mock := &mockChatServer{reply: "ok"}
	srv := httptest.NewServer(mock)
	defer srv.Close()

	c := newTestOpenAIClient(t, srv, &ClientConfig{APIKey: "sk-proj-abc", ProjectID: "proj_1"})
	if _, err := c.Complete(context.Background(), "x"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got := mock.headers[0].Get("OpenAI-Project"); got != "proj_1" {
		t.Errorf("Expected project header, got %q", got)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c := NewOpenAIClient(&ClientConfig{})
		_, err := c.Complete(context.Background(), "x")
		if err == nil || !strings.Contains(err.Error(), "PROVIDER_API_KEY unset") {
			t.Errorf("Expected missing key error, got %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(&mockChatServer{status: http.StatusUnauthorized})
		defer srv.Close()

		c := newTestOpenAIClient(t, srv, &ClientConfig{APIKey: "bad"})
		_, err := c.Complete(context.Background(), "x")
		if err == nil || !strings.Contains(err.Error(), "completion failed") {
			t.Errorf("Expected completion error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		c := newTestOpenAIClient(t, srv, &ClientConfig{APIKey: "k"})
		if _, err := c.Complete(ctx, "x"); err == nil {
			t.Error("Expected error for expired context")
		}
	})
}

func TestOpenAIClient_ConcurrentRequests(t *testing.T) {
	mock := &mockChatServer{reply: "ok"}
	srv := httptest.NewServer(mock)
	defer srv.Close()
	c := newTestOpenAIClient(t, srv, &ClientConfig{APIKey: "k"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Complete(context.Background(), "x"); err != nil {
				t.Errorf("Complete failed: %v", err)
			}
		}()
	}
	wg.Wait()

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.requests) != 8 {
		t.Errorf("Expected 8 requests, got %d", len(mock.requests))
	}
}
