package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestAnthropicProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-sonnet",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

// anthropicMessage is a Messages API reply with one text block.
func anthropicMessage(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-sonnet-4-20250514",
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
	}
}

func anthropicError(kind, message string) map[string]any {
	return map[string]any{
		"type":  "error",
		"error": map[string]any{"type": kind, "message": message},
	}
}

func TestAnthropicProvider_Replies(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		schema   *Schema
		wantText string
		wantStop string
		check    func(error) bool
	}{
		{
			name:     "fenced schema reply is unwrapped",
			body:     anthropicMessage("```json\n{\"verdict\":\"correct\"}\n```", "end_turn"),
			schema:   verdictSchema,
			wantText: `{"verdict":"correct"}`,
			wantStop: "end",
		},
		{
			name:     "prose",
			body:     anthropicMessage("A trie stores strings by prefix.", "end_turn"),
			wantText: "A trie stores strings by prefix.",
			wantStop: "end",
		},
		{
			name:   "truncated schema reply",
			body:   anthropicMessage(`{"topics":{"graphs":["bfs"`, "max_tokens"),
			schema: verdictSchema,
			check:  isMaxTokens,
		},
		{
			name:   "refused schema reply",
			body:   anthropicMessage("I can't grade that.", "refusal"),
			schema: verdictSchema,
			check:  func(err error) bool { return isRejected(err) && !IsInvalid(err) },
		},
		{
			name:     "refused prose",
			body:     anthropicMessage("I can't help with that.", "refusal"),
			wantText: "I can't help with that.",
			wantStop: "refusal",
		},
		{
			name:  "empty reply",
			body:  anthropicMessage("", "end_turn"),
			check: IsInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropicProvider(t, replyWith(http.StatusOK, tt.body))
			resp, err := p.Generate(context.Background(), Request{
				System:    "Grade the answer.",
				Messages:  []Message{UserMessage("Is a heap a BST?")},
				Schema:    tt.schema,
				MaxTokens: 256,
			})
			if tt.check != nil {
				if !tt.check(err) {
					t.Fatalf("unexpected error %T (%v)", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Text() != tt.wantText {
				t.Errorf("text = %q, want %q", resp.Text(), tt.wantText)
			}
			if resp.StopReason != tt.wantStop {
				t.Errorf("stop = %q, want %q", resp.StopReason, tt.wantStop)
			}
			if resp.Usage.InputTokens != 50 || resp.Model != "claude-sonnet-4-20250514" {
				t.Errorf("usage/model = %d/%q", resp.Usage.InputTokens, resp.Model)
			}
		})
	}
}

func TestAnthropicProvider_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
		check  func(error) bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, kind: "rate_limit_error", check: isRateLimited},
		{name: "bad request", status: http.StatusBadRequest, kind: "invalid_request_error", check: func(err error) bool {
			var r *ErrRejected
			return errors.As(err, &r) && r.Status == http.StatusBadRequest
		}},
		{name: "server error", status: http.StatusInternalServerError, kind: "api_error", check: func(err error) bool {
			var u *ErrProviderUnavailable
			return errors.As(err, &u)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropicProvider(t, replyWith(tt.status, anthropicError(tt.kind, http.StatusText(tt.status))))
			_, err := p.Generate(context.Background(), Request{Messages: []Message{UserMessage("test")}, MaxTokens: 100})
			if !tt.check(err) {
				t.Fatalf("unexpected error %T (%v)", err, err)
			}
		})
	}
}

func TestAnthropicProvider_RetryAfterHeader(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		replyWith(http.StatusTooManyRequests, anthropicError("rate_limit_error", "slow down"))(w, r)
	})

	_, err := p.Generate(context.Background(), Request{Messages: []Message{UserMessage("test")}, MaxTokens: 100})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T (%v)", err, err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Errorf("retry after = %v, want 7s", rl.RetryAfter)
	}
}

func TestBuildAnthropicMessages_ImageBlocksFirst(t *testing.T) {
	msgs := buildAnthropicMessages([]Message{{
		Role:    RoleUser,
		Content: "what is shown?",
		Images:  []Image{{MIMEType: "image/jpeg", Base64: "AAAA"}},
	}})
	if len(msgs) != 1 || len(msgs[0].Content) != 2 {
		t.Fatalf("expected one message with two blocks, got %+v", msgs)
	}
	if msgs[0].Content[0].OfImage == nil {
		t.Fatal("expected first block to be the image")
	}
	if msgs[0].Content[1].OfText == nil || msgs[0].Content[1].OfText.Text != "what is shown?" {
		t.Fatal("expected second block to be the question text")
	}
}

func TestAnthropicModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"claude-sonnet", "claude-sonnet-4-20250514"},
		{"claude-haiku", "claude-haiku-4-5-20251001"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4-20250514"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, anthropicModels); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
	p := &AnthropicProvider{model: "claude-sonnet-4-20250514"}
	if p.ModelID() != "claude-sonnet-4-20250514" {
		t.Errorf("ModelID = %q", p.ModelID())
	}
}
