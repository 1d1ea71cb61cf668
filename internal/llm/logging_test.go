package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorderFunc func(ctx context.Context, ev RequestEvent) error

func (f recorderFunc) RecordLLMRequest(ctx context.Context, ev RequestEvent) error {
	return f(ctx, ev)
}

func TestLoggingProvider_RecordsStructuredCall(t *testing.T) {
	var got []RequestEvent
	rec := recorderFunc(func(_ context.Context, ev RequestEvent) error {
		got = append(got, ev)
		return nil
	})
	mock := NewMockProvider(MockResponse{
		Content:    json.RawMessage(`{"verdict":"correct"}`),
		Usage:      Usage{InputTokens: 120, OutputTokens: 8},
		Model:      "gpt-4o-mini",
		StopReason: "end",
	})
	p := WithLogging(mock, rec, zap.NewNop())

	ctx := WithLearner(WithPurpose(context.Background(), PurposeGrade), "u42")
	req := Request{
		System: "Grade the answer.",
		Messages: []Message{{
			Role:    RoleUser,
			Content: "A queue is FIFO.",
			Images:  []Image{{MIMEType: "image/png", Base64: "aGVsbG8="}},
		}},
		Schema: &Schema{Name: "grade", Definition: map[string]any{"type": "object"}},
	}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("recorded %d events, want 1", len(got))
	}
	ev := got[0]
	if ev.UserID != "u42" || ev.Purpose != "grade" || ev.SchemaName != "grade" {
		t.Errorf("attribution = %q/%q/%q", ev.UserID, ev.Purpose, ev.SchemaName)
	}
	if ev.Model != "gpt-4o-mini" || ev.StopReason != "end" || !ev.Success {
		t.Errorf("outcome = %+v", ev)
	}
	if ev.InputTokens != 120 || ev.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d", ev.InputTokens, ev.OutputTokens)
	}
	if ev.ResponseBody != `{"verdict":"correct"}` {
		t.Errorf("response body = %q", ev.ResponseBody)
	}
	for _, want := range []string{"[system]\nGrade the answer.", "A queue is FIFO.", "<image image/png, 8 bytes base64>", "[schema: grade]"} {
		if !strings.Contains(ev.RequestBody, want) {
			t.Errorf("request body missing %q:\n%s", want, ev.RequestBody)
		}
	}
	if strings.Contains(ev.RequestBody, "aGVsbG8=") {
		t.Error("image payload must not be inlined")
	}
}

func TestLoggingProvider_FailureIsLoggedAndRecorded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var got RequestEvent
	rec := recorderFunc(func(_ context.Context, ev RequestEvent) error {
		got = ev
		return errors.New("disk full")
	})
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("503")}})
	p := WithLogging(mock, rec, zap.New(core))

	_, err := p.Generate(WithPurpose(context.Background(), PurposeAnswer), Request{})
	if !IsUnavailable(err) {
		t.Fatalf("expected the provider error back, got %v", err)
	}
	if got.Success || got.ErrorMessage == "" {
		t.Errorf("failed call recorded as %+v", got)
	}

	if n := logs.FilterMessage("llm request failed").Len(); n != 1 {
		t.Errorf("failure logged %d times", n)
	}
	if n := logs.FilterMessage("failed to record llm request event").Len(); n != 1 {
		t.Errorf("recorder error logged %d times", n)
	}
}

func TestLoggingProvider_NilRecorder(t *testing.T) {
	p := WithLogging(NewMockProvider(MockText("ok")), nil, nil)
	resp, err := p.Generate(context.Background(), Request{})
	if err != nil || resp.Text() != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	if p.ModelID() != "mock" {
		t.Errorf("ModelID = %q", p.ModelID())
	}
}
