package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/recommend"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
)

type mockSource struct {
	profile  *tutor.Profile
	recs     []recommend.Recommendation
	recsErr  error
	recCalls int
}

func (m *mockSource) Profile(_ context.Context, _ string) (*tutor.Profile, error) {
	if m.profile == nil {
		return nil, errors.New("user not found")
	}
	return m.profile, nil
}

func (m *mockSource) Recommendations(_ context.Context, _ string) ([]recommend.Recommendation, error) {
	m.recCalls++
	return m.recs, m.recsErr
}

func assessedProfile() *tutor.Profile {
	at := time.Now().Add(-2 * time.Hour)
	return &tutor.Profile{
		User:           &store.User{UserID: "u1", Email: "ada@example.com", Username: "ada"},
		Level:          learner.LevelIntermediate,
		Topics:         learner.Topics{"graphs": {"bfs", "dfs"}, "sorting": nil},
		LastAnalysisAt: &at,
		Recommendation: "Practice shortest paths next.",
		Confidence:     0.8,
	}
}

func TestProfileScreen_LoadsRecommendationsWhenAssessed(t *testing.T) {
	src := &mockSource{
		profile: assessedProfile(),
		recs:    []recommend.Recommendation{{Topic: "Dijkstra", Description: "Weighted shortest paths.", Difficulty: "intermediate"}},
	}
	s := New(src, "u1")

	_, cmd := s.Update(s.Init()())
	if cmd == nil {
		t.Fatal("expected recommendations command")
	}
	s.Update(cmd())
	if src.recCalls != 1 {
		t.Errorf("recommendation calls = %d, want 1", src.recCalls)
	}

	view := s.View(100, 40)
	for _, want := range []string{"ada", "Intermediate", "graphs", "bfs, dfs", "Dijkstra", "Practice shortest paths"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestProfileScreen_UnassessedSkipsRecommendations(t *testing.T) {
	p := assessedProfile()
	p.Level = learner.LevelUnknown
	p.LastAnalysisAt = nil
	s := New(&mockSource{profile: p}, "u1")

	_, cmd := s.Update(s.Init()())
	if cmd != nil {
		t.Error("expected no recommendations command before assessment")
	}
	if view := s.View(100, 40); !strings.Contains(view, "haven't been assessed") {
		t.Errorf("view = %q", view)
	}
}

func TestProfileScreen_RecommendationError(t *testing.T) {
	src := &mockSource{profile: assessedProfile(), recsErr: errors.New("provider unavailable")}
	s := New(src, "u1")
	_, cmd := s.Update(s.Init()())
	s.Update(cmd())
	if view := s.View(100, 40); !strings.Contains(view, "provider unavailable") {
		t.Error("expected recommendation error in view")
	}
}

func TestProfileScreen_LoadError(t *testing.T) {
	s := New(&mockSource{}, "u1")
	s.Update(s.Init()())
	if view := s.View(80, 24); !strings.Contains(view, "user not found") {
		t.Errorf("view = %q", view)
	}
}
