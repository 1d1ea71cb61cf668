package assessment

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

func envelope(msg string, level any) llm.MockResponse {
	return llm.MockJSON(map[string]any{
		"message": msg,
		"data":    map[string]any{"user_level": level},
	})
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"3", 3, true},
		{"I'd say 4", 4, true},
		{"five!", 5, true},
		{"hi", 0, false},
		{"7", 0, false},
		{"10", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRating(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRating(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRatings_EarlyTermination(t *testing.T) {
	tests := []struct {
		given []int
		want  []int
	}{
		{[]int{1}, []int{1, 1, 1}},
		{[]int{3, 1}, []int{3, 1, 1}},
		{[]int{3, 4}, []int{3, 4}},
		{[]int{3, 4, 2, 5}, []int{3, 4, 2}},
	}
	for _, tt := range tests {
		got := Ratings(tt.given)
		if len(got) != len(tt.want) {
			t.Errorf("Ratings(%v) = %v, want %v", tt.given, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Ratings(%v) = %v, want %v", tt.given, got, tt.want)
				break
			}
		}
	}
}

func TestLevelFromRatings(t *testing.T) {
	tests := []struct {
		ratings []int
		want    learner.Level
		ok      bool
	}{
		{[]int{3, 4, 2}, learner.LevelIntermediate, true},
		{[]int{1, 1, 1}, learner.LevelBeginner, true},
		{[]int{5, 5, 3}, learner.LevelAdvanced, true},
		{[]int{2, 3, 5}, learner.LevelIntermediate, true},
		{[]int{2, 2, 5}, learner.LevelBeginner, true},
		{[]int{4, 4}, learner.LevelUnknown, false},
	}
	for _, tt := range tests {
		got, ok := LevelFromRatings(tt.ratings)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LevelFromRatings(%v) = %s, %v; want %s, %v", tt.ratings, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStep_InProgress(t *testing.T) {
	mock := llm.NewMockProvider(envelope("Hi! How confident are you with basic data structures, from 1 to 5?", nil))
	svc := NewService(mock, DefaultConfig(), nil)

	res, err := svc.Step(context.Background(), nil, "hi")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Complete || res.Envelope.Data.UserLevel != nil {
		t.Fatalf("questionnaire should still be running: %+v", res)
	}
	if mock.LastCall().Schema != EnvelopeSchema {
		t.Error("assessment must request the envelope schema")
	}
}

func TestStep_CompletesScenario(t *testing.T) {
	mock := llm.NewMockProvider(envelope("You're at the intermediate level. What DSA topic would you like to explore first?", "intermediate"))
	svc := NewService(mock, DefaultConfig(), nil)

	transcript := []llm.Message{
		llm.UserMessage("hi"),
		{Role: llm.RoleAssistant, Content: "Rate basic data structures 1-5."},
		llm.UserMessage("3"),
		{Role: llm.RoleAssistant, Content: "Rate sorting 1-5."},
		llm.UserMessage("4"),
		{Role: llm.RoleAssistant, Content: "Rate trees, graphs and DP 1-5."},
	}
	res, err := svc.Step(context.Background(), transcript, "2")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !res.Complete || res.Level != learner.LevelIntermediate {
		t.Fatalf("got %+v, want complete intermediate", res)
	}

	var wire map[string]any
	if err := json.Unmarshal([]byte(res.Envelope.JSON()), &wire); err != nil {
		t.Fatalf("envelope JSON: %v", err)
	}
	data := wire["data"].(map[string]any)
	if data["user_level"] != "intermediate" {
		t.Errorf("user_level = %v, want intermediate", data["user_level"])
	}

	sys := mock.LastCall().System
	if !strings.Contains(sys, "sorting algorithms = 4") {
		t.Errorf("system prompt should carry recorded ratings, got %q", sys[len(sys)-200:])
	}
}

func TestStep_RatingsOverrideModel(t *testing.T) {
	mock := llm.NewMockProvider(envelope("Great, you're advanced! Ask me anything.", "advanced"))
	svc := NewService(mock, DefaultConfig(), nil)

	transcript := []llm.Message{
		llm.UserMessage("2"),
		{Role: llm.RoleAssistant, Content: "Sorting?"},
		llm.UserMessage("2"),
		{Role: llm.RoleAssistant, Content: "Advanced?"},
	}
	res, err := svc.Step(context.Background(), transcript, "5")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Level != learner.LevelBeginner {
		t.Errorf("Level = %s, want beginner", res.Level)
	}
	if *res.Envelope.Data.UserLevel != "beginner" {
		t.Errorf("envelope level = %s", *res.Envelope.Data.UserLevel)
	}
	if strings.Contains(res.Envelope.Message, "advanced") {
		t.Errorf("message still names the overridden level: %q", res.Envelope.Message)
	}
}

func TestStep_MalformedTwiceDowngrades(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockText("Sure! How confident are you with sorting?"),
		llm.MockText("How confident are you with sorting, 1 to 5?"),
	)
	svc := NewService(mock, DefaultConfig(), nil)

	res, err := svc.Step(context.Background(), nil, "3")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !res.Downgraded || res.Complete {
		t.Fatalf("got %+v, want downgraded and incomplete", res)
	}
	if res.Envelope.Message != "How confident are you with sorting, 1 to 5?" {
		t.Errorf("Message = %q, want the raw second reply", res.Envelope.Message)
	}
	if !strings.Contains(res.Envelope.JSON(), `"user_level":null`) {
		t.Errorf("downgraded envelope must stay well-formed: %s", res.Envelope.JSON())
	}

	retry := mock.LastCall()
	last := retry.Messages[len(retry.Messages)-1]
	if last.Role != llm.RoleUser || !strings.Contains(last.Content, "JSON") {
		t.Errorf("re-prompt should append a JSON reminder, got %+v", last)
	}
}

func TestStep_UnavailableIsError(t *testing.T) {
	svc := NewService(llm.NewMockProvider(), DefaultConfig(), nil)
	_, err := svc.Step(context.Background(), nil, "hi")
	if !llm.IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}
