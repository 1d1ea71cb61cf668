package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider_UnknownBackend(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Provider: "cohere"}, nil, nil); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestNewProvider_MockIsBare(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*MockProvider); !ok {
		t.Fatalf("expected *MockProvider, got %T", p)
	}
}

func TestNewProvider_MissingKey(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "openai"}, nil, nil)
	if err == nil {
		t.Fatal("expected an error without an API key")
	}
}

// Each retry attempt is recorded separately under the backend's name.
func TestNewProvider_MiddlewareOrder(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"O(log n)"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`))
	}))
	defer server.Close()

	var (
		mu     sync.Mutex
		events []RequestEvent
	)
	rec := recorderFunc(func(_ context.Context, ev RequestEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	})

	cfg := Config{
		Provider: "openai",
		OpenAI:   OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1", Model: "gpt-4o-mini"},
		Retry:    RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2},
		Timeout:  5 * time.Second,
	}
	p, err := NewProvider(context.Background(), cfg, rec, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	resp, err := p.Generate(WithPurpose(context.Background(), PurposeAnswer), Request{
		Messages: []Message{UserMessage("Binary search complexity?")},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text() != "O(log n)" {
		t.Errorf("text = %q", resp.Text())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want one per attempt", len(events))
	}
	if events[0].Success || !events[1].Success {
		t.Errorf("success flags = %v, %v", events[0].Success, events[1].Success)
	}
	for i, ev := range events {
		if ev.Provider != "openai" || ev.Purpose != "answer" {
			t.Errorf("event %d = %s/%s", i, ev.Provider, ev.Purpose)
		}
	}
}
