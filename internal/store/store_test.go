package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// frozenClock returns a clock that stays put until advanced.
func frozenClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func createTestUser(t *testing.T, s *Store) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), "Ada@Example.com", "ada", []string{RoleTester})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	if u.Level != learner.LevelUnknown {
		t.Fatalf("new user level = %q, want unknown", u.Level)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}

	got, err := s.GetUserByEmail(ctx, "ADA@example.com ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.UserID != u.UserID || !got.HasRole(RoleTester) {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := s.CreateUser(ctx, "ada@example.com", "other", nil); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetLevel(ctx, "missing", learner.LevelBeginner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from SetLevel, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("list users = %v, %v", users, err)
	}
}

func TestAppendTurn_StrictlyIncreasingTimestamps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now, _ := frozenClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.SetClock(now)
	u := createTestUser(t, s)

	for i := range 3 {
		q := &Message{UserID: u.UserID, Role: RoleUser, Content: "q"}
		a := &Message{UserID: u.UserID, Role: RoleAssistant, Content: "a"}
		if err := s.AppendTurn(ctx, q, a); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
		if q.ChatID != u.UserID+"_1" {
			t.Fatalf("chat id = %q, want default chat", q.ChatID)
		}
	}

	hist, err := s.LoadHistory(ctx, u.UserID, "")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(hist) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if !hist[i].Timestamp.After(hist[i-1].Timestamp) {
			t.Fatalf("timestamps not strictly increasing at %d: %v <= %v", i, hist[i].Timestamp, hist[i-1].Timestamp)
		}
		if hist[i].Role == hist[i-1].Role {
			t.Fatalf("roles must alternate, got %s twice at %d", hist[i].Role, i)
		}
	}
}

func TestLoadHistory_PartsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	in := &Message{
		UserID:  u.UserID,
		Role:    RoleUser,
		Content: "explain this diagram",
		Parts: []Part{
			{Type: PartText, Text: "explain this diagram"},
			{Type: PartImage, MIMEType: "image/png", Data: "AAAA"},
		},
	}
	if err := s.AppendMessage(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	hist, err := s.LoadHistory(ctx, u.UserID, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	imgs := hist[0].Images()
	if len(imgs) != 1 || imgs[0].MIMEType != "image/png" || imgs[0].Data != "AAAA" {
		t.Fatalf("unexpected image parts: %+v", hist[0].Parts)
	}
}

func TestClearHistory_PreservesLevelAndTopics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	if err := s.SetLevel(ctx, u.UserID, learner.LevelIntermediate); err != nil {
		t.Fatalf("set level: %v", err)
	}
	topics := learner.Topics{"sorting_algorithms": {"quicksort"}}
	if err := s.SetTopics(ctx, u.UserID, topics); err != nil {
		t.Fatalf("set topics: %v", err)
	}
	if err := s.AppendTurn(ctx,
		&Message{UserID: u.UserID, Role: RoleUser, Content: "q"},
		&Message{UserID: u.UserID, Role: RoleAssistant, Content: "a"},
	); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.ClearHistory(ctx, u.UserID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	hist, _ := s.LoadHistory(ctx, u.UserID, "")
	if len(hist) != 0 {
		t.Fatalf("expected empty history, got %d", len(hist))
	}
	lvl, _ := s.GetLevel(ctx, u.UserID)
	if lvl != learner.LevelIntermediate {
		t.Fatalf("level lost: %q", lvl)
	}
	got, _ := s.GetTopics(ctx, u.UserID)
	if !got.Equal(topics) {
		t.Fatalf("topics lost: %v", got)
	}
}

func TestClearHistoryExcept(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	keep := &Message{UserID: u.UserID, Role: RoleAssistant, Content: "keep"}
	for _, m := range []*Message{
		{UserID: u.UserID, Role: RoleUser, Content: "one"},
		keep,
		{UserID: u.UserID, Role: RoleUser, Content: "two"},
	} {
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := s.ClearHistoryExcept(ctx, u.UserID, keep.ID); err != nil {
		t.Fatalf("clear except: %v", err)
	}
	hist, _ := s.LoadHistory(ctx, u.UserID, "")
	if len(hist) != 1 || hist[0].Content != "keep" {
		t.Fatalf("expected only the kept message, got %+v", hist)
	}
}

func TestCompleteAssessment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	for _, c := range []string{"hi", "3", "4"} {
		if err := s.AppendTurn(ctx,
			&Message{UserID: u.UserID, Role: RoleUser, Content: c},
			&Message{UserID: u.UserID, Role: RoleAssistant, Content: "next question"},
		); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	ack := &Message{Role: RoleAssistant, Content: "You're intermediate. Ask me anything!"}
	if err := s.CompleteAssessment(ctx, u.UserID, learner.LevelIntermediate, ack); err != nil {
		t.Fatalf("complete: %v", err)
	}

	hist, _ := s.LoadHistory(ctx, u.UserID, "")
	if len(hist) != 1 || hist[0].Role != RoleAssistant || hist[0].ID != ack.ID {
		t.Fatalf("expected only the acknowledgement, got %+v", hist)
	}
	lvl, _ := s.GetLevel(ctx, u.UserID)
	if lvl != learner.LevelIntermediate {
		t.Fatalf("level = %q", lvl)
	}
	last, _ := s.GetLastAnalysisAt(ctx, u.UserID)
	if last == nil {
		t.Fatal("expected analysis window to start")
	}
}

func TestLastAnalysisAt_NeverMovesBackwards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now, advance := frozenClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.SetClock(now)
	u := createTestUser(t, s)

	if last, _ := s.GetLastAnalysisAt(ctx, u.UserID); last != nil {
		t.Fatalf("expected nil for a new user, got %v", last)
	}

	first, err := s.TouchLastAnalysisAt(ctx, u.UserID)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}

	advance(-time.Hour)
	second, err := s.TouchLastAnalysisAt(ctx, u.UserID)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !second.Equal(first) {
		t.Fatalf("touch moved backwards: %v -> %v", first, second)
	}
	if err := s.ResetLastAnalysisAt(ctx, u.UserID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if last, _ := s.GetLastAnalysisAt(ctx, u.UserID); !last.Equal(first) {
		t.Fatalf("reset moved backwards: %v", last)
	}

	advance(2 * time.Hour)
	third, _ := s.TouchLastAnalysisAt(ctx, u.UserID)
	if !third.After(first) {
		t.Fatalf("touch did not advance: %v", third)
	}
}

func TestCountUserTurnsSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now, advance := frozenClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.SetClock(now)
	u := createTestUser(t, s)

	mark := now()
	advance(time.Second)
	for range 2 {
		if err := s.AppendTurn(ctx,
			&Message{UserID: u.UserID, Role: RoleUser, Content: "q"},
			&Message{UserID: u.UserID, Role: RoleAssistant, Content: "a"},
		); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := s.CountUserTurnsSince(ctx, u.UserID, mark)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 user turns, got %d", n)
	}
	n, _ = s.CountUserTurnsSince(ctx, u.UserID, now().Add(time.Hour))
	if n != 0 {
		t.Fatalf("expected 0 turns after the future mark, got %d", n)
	}
}

func TestSaveAnalysis(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)
	if err := s.SetLevel(ctx, u.UserID, learner.LevelBeginner); err != nil {
		t.Fatalf("set level: %v", err)
	}

	a := &Analysis{
		UserID:         u.UserID,
		CurrentLevel:   learner.LevelIntermediate,
		PreviousLevel:  learner.LevelBeginner,
		Recommendation: "Promote",
		Confidence:     0.7,
		Topics:         learner.Topics{"arrays": {"two_pointers"}},
	}
	if err := s.SaveAnalysis(ctx, a, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	lvl, _ := s.GetLevel(ctx, u.UserID)
	if lvl != learner.LevelBeginner {
		t.Fatalf("level must not change without applyLevel, got %q", lvl)
	}

	got, err := s.GetAnalysis(ctx, u.UserID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.LastAnalysisAt == nil || got.Confidence != 0.7 || !got.Topics.Equal(a.Topics) {
		t.Fatalf("unexpected analysis row: %+v", got)
	}

	if err := s.SaveAnalysis(ctx, a, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	lvl, _ = s.GetLevel(ctx, u.UserID)
	if lvl != learner.LevelIntermediate {
		t.Fatalf("expected applied level, got %q", lvl)
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, ev := range []llm.RequestEvent{
		{Provider: "gpt-4o-mini", Model: "gpt-4o-mini", Purpose: "route", InputTokens: 10, OutputTokens: 1, LatencyMs: 20, Success: true},
		{UserID: "u1", Provider: "gpt-4o-mini", Model: "gpt-4o-mini", Purpose: "answer", SchemaName: "answer", InputTokens: 100, OutputTokens: 50, LatencyMs: 40, Success: true, StopReason: "end", RequestBody: "[user]\nwhat is a heap?"},
		{Provider: "gpt-4o-mini", Model: "gpt-4o-mini", Purpose: "answer", LatencyMs: 60, ErrorMessage: "down"},
	} {
		if err := s.RecordLLMRequest(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := s.QueryLLMEvents(ctx, QueryOpts{Limit: 10, Purpose: "answer"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 answer events, got %d", len(events))
	}
	if events[0].Success || events[0].ErrorMessage != "down" {
		t.Fatalf("expected newest (failed) event first, got %+v", events[0])
	}

	e, err := s.GetLLMEvent(ctx, events[1].ID)
	if err != nil || e == nil || e.RequestBody != "[user]\nwhat is a heap?" {
		t.Fatalf("get event = %+v, %v", e, err)
	}
	if e.UserID != "u1" || e.SchemaName != "answer" || e.StopReason != "end" {
		t.Fatalf("attribution = %q/%q/%q", e.UserID, e.SchemaName, e.StopReason)
	}
	mine, err := s.QueryLLMEvents(ctx, QueryOpts{UserID: "u1"})
	if err != nil || len(mine) != 1 || mine[0].ID != e.ID {
		t.Fatalf("user filter = %+v, %v", mine, err)
	}
	if missing, err := s.GetLLMEvent(ctx, 9999); err != nil || missing != nil {
		t.Fatalf("expected nil for missing event, got %+v, %v", missing, err)
	}

	usage, err := s.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 2 || usage[0].Purpose != "answer" || usage[0].Calls != 2 || usage[0].InputTokens != 100 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage[0].AvgLatencyMs != 50 {
		t.Fatalf("expected avg latency 50, got %d", usage[0].AvgLatencyMs)
	}

	byModel, err := s.LLMUsageByModel(ctx)
	if err != nil || len(byModel) != 1 || byModel[0].Calls != 3 {
		t.Fatalf("unexpected model usage: %+v, %v", byModel, err)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	s.Close()

	_, err := s.LoadHistory(context.Background(), "u", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	err = s.AppendTurn(context.Background(),
		&Message{UserID: "u", Role: RoleUser, Content: "q"},
		&Message{UserID: "u", Role: RoleAssistant, Content: "a"},
	)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from AppendTurn, got %v", err)
	}
}
