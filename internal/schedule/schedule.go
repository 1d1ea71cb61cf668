// Package schedule decides when to re-assess a learner and applies the
// result.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/proficiency"
	"github.com/abhisek/dsatutor/internal/store"
)

// Store is the subset of the session store the scheduler needs.
type Store interface {
	GetAnalysis(ctx context.Context, userID string) (*store.Analysis, error)
	TouchLastAnalysisAt(ctx context.Context, userID string) (time.Time, error)
	CountUserTurnsSince(ctx context.Context, userID string, since time.Time) (int, error)
	LoadHistory(ctx context.Context, userID, chatID string) ([]store.Message, error)
	SaveAnalysis(ctx context.Context, a *store.Analysis, applyLevel bool) error
}

// Analyser produces a proficiency assessment.
type Analyser interface {
	Analyse(ctx context.Context, history []llm.Message, level learner.Level, prior learner.Topics) (*proficiency.Assessment, error)
}

// Config holds the trigger and threshold settings.
type Config struct {
	Days             int
	Turns            int
	PromoteThreshold float64
	DemoteThreshold  float64
}

// DefaultConfig returns the development cadence: weekly, or every two
// learner turns.
func DefaultConfig() Config {
	return Config{
		Days:             7,
		Turns:            2,
		PromoteThreshold: proficiency.DefaultPromoteThreshold,
		DemoteThreshold:  proficiency.DefaultDemoteThreshold,
	}
}

// Scheduler runs the proficiency analyser on its cadence.
type Scheduler struct {
	store    Store
	analyser Analyser
	cfg      Config
	log      *zap.Logger
}

// New creates a Scheduler.
func New(st Store, analyser Analyser, cfg Config, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{store: st, analyser: analyser, cfg: cfg, log: log.Named("schedule")}
}

// Due reports whether the learner should be analysed now. A learner with
// no analysis timestamp has it initialised and is not due.
func (s *Scheduler) Due(ctx context.Context, userID string, now time.Time) (bool, error) {
	a, err := s.store.GetAnalysis(ctx, userID)
	if err != nil {
		return false, err
	}
	if a.LastAnalysisAt == nil {
		if _, err := s.store.TouchLastAnalysisAt(ctx, userID); err != nil {
			return false, err
		}
		return false, nil
	}

	last := *a.LastAnalysisAt
	if s.cfg.Days > 0 && now.Sub(last) >= time.Duration(s.cfg.Days)*24*time.Hour {
		return true, nil
	}
	if s.cfg.Turns <= 0 {
		return false, nil
	}
	n, err := s.store.CountUserTurnsSince(ctx, userID, last)
	if err != nil {
		return false, err
	}
	return n >= s.cfg.Turns, nil
}

// Run analyses the learner and persists the result. Topics and the
// analysis row are always saved; the level only when the recommendation
// clears its threshold. The returned change is nil when the level stays.
// An unavailable model aborts without touching the analysis timestamp.
func (s *Scheduler) Run(ctx context.Context, userID string, level learner.Level) (*learner.LevelChange, error) {
	msgs, err := s.store.LoadHistory(ctx, userID, store.ChatID(userID))
	if err != nil {
		return nil, err
	}
	prev, err := s.store.GetAnalysis(ctx, userID)
	if err != nil {
		return nil, err
	}

	history := store.LLMMessages(msgs)
	for i := range history {
		history[i].Images = nil
	}
	a, err := s.analyser.Analyse(ctx, history, level, prev.Topics)
	if err != nil {
		return nil, fmt.Errorf("run analysis: %w", err)
	}

	next, changed := proficiency.Decide(a, level, s.cfg.PromoteThreshold, s.cfg.DemoteThreshold)
	row := &store.Analysis{
		UserID:         userID,
		CurrentLevel:   next,
		PreviousLevel:  level,
		Recommendation: string(a.Recommendation),
		Confidence:     a.Confidence,
		Topics:         a.Topics,
	}
	if err := s.store.SaveAnalysis(ctx, row, changed); err != nil {
		return nil, err
	}

	s.log.Info("proficiency analysed",
		zap.String("user_id", userID),
		zap.String("recommendation", string(a.Recommendation)),
		zap.Float64("confidence", a.Confidence),
		zap.String("level", string(next)),
		zap.Bool("changed", changed),
	)
	if !changed {
		return nil, nil
	}
	return &learner.LevelChange{From: level, To: next, Reason: "analysis"}, nil
}

// MaybeRun runs the analysis when it is due.
func (s *Scheduler) MaybeRun(ctx context.Context, userID string, level learner.Level, now time.Time) (*learner.LevelChange, error) {
	due, err := s.Due(ctx, userID, now)
	if err != nil || !due {
		return nil, err
	}
	return s.Run(ctx, userID, level)
}
