package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/dsatutor/internal/learner"
)

var analysisColumns = []string{
	"user_id", "last_analysis_at", "current_level", "previous_level",
	"recommendation", "confidence", "topics",
}

// GetAnalysis returns the analysis row for a user. A user that has never
// been analysed gets a zero row with a nil LastAnalysisAt and empty topics.
func (s *Store) GetAnalysis(ctx context.Context, userID string) (*Analysis, error) {
	return s.getAnalysis(ctx, s.db, userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getAnalysis(ctx context.Context, db queryRower, userID string) (*Analysis, error) {
	query, args := s.qb.Select(analysisColumns...).
		From(entsql.Table("user_analysis")).
		Where(entsql.EQ("user_id", userID)).
		Query()

	a := &Analysis{
		UserID:        userID,
		CurrentLevel:  learner.LevelUnknown,
		PreviousLevel: learner.LevelUnknown,
		Topics:        learner.Topics{},
	}
	var last sql.NullInt64
	var cur, prev, topics string
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&a.UserID, &last, &cur, &prev, &a.Recommendation, &a.Confidence, &topics)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return nil, unavailable("get analysis", err)
	}
	if last.Valid {
		t := time.UnixMicro(last.Int64).UTC()
		a.LastAnalysisAt = &t
	}
	a.CurrentLevel, _ = learner.ParseLevel(cur)
	a.PreviousLevel, _ = learner.ParseLevel(prev)
	if err := json.Unmarshal([]byte(topics), &a.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	return a, nil
}

// GetTopics returns the user's topic map.
func (s *Store) GetTopics(ctx context.Context, userID string) (learner.Topics, error) {
	a, err := s.GetAnalysis(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.Topics, nil
}

// SetTopics replaces the user's topic map.
func (s *Store) SetTopics(ctx context.Context, userID string, topics learner.Topics) error {
	return s.withTx(ctx, "set topics", func(tx *sql.Tx) error {
		a, err := s.getAnalysis(ctx, tx, userID)
		if err != nil {
			return err
		}
		a.Topics = topics
		return s.upsertAnalysis(ctx, tx, a)
	})
}

// GetLastAnalysisAt returns when the user was last analysed, or nil.
func (s *Store) GetLastAnalysisAt(ctx context.Context, userID string) (*time.Time, error) {
	a, err := s.GetAnalysis(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.LastAnalysisAt, nil
}

// TouchLastAnalysisAt advances last_analysis_at to now. The stored value
// never moves backwards.
func (s *Store) TouchLastAnalysisAt(ctx context.Context, userID string) (time.Time, error) {
	var at time.Time
	err := s.withTx(ctx, "touch last analysis", func(tx *sql.Tx) error {
		a, err := s.touch(ctx, tx, userID)
		if err != nil {
			return err
		}
		at = *a.LastAnalysisAt
		return nil
	})
	return at, err
}

// ResetLastAnalysisAt restarts the analysis window at now. It is used when
// the level is assigned and obeys the same never-backwards rule as Touch.
func (s *Store) ResetLastAnalysisAt(ctx context.Context, userID string) error {
	return s.withTx(ctx, "reset last analysis", func(tx *sql.Tx) error {
		return s.resetLastAnalysisAt(ctx, tx, userID)
	})
}

func (s *Store) resetLastAnalysisAt(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := s.touch(ctx, tx, userID)
	return err
}

func (s *Store) touch(ctx context.Context, tx *sql.Tx, userID string) (*Analysis, error) {
	a, err := s.getAnalysis(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	if a.LastAnalysisAt == nil || now.After(*a.LastAnalysisAt) {
		a.LastAnalysisAt = &now
	}
	return a, s.upsertAnalysis(ctx, tx, a)
}

// SaveAnalysis stores the result of a proficiency analysis and advances
// last_analysis_at in one transaction. When applyLevel is set the user's
// level is updated to a.CurrentLevel as well.
func (s *Store) SaveAnalysis(ctx context.Context, a *Analysis, applyLevel bool) error {
	return s.withTx(ctx, "save analysis", func(tx *sql.Tx) error {
		cur, err := s.getAnalysis(ctx, tx, a.UserID)
		if err != nil {
			return err
		}
		now := s.now().UTC().Truncate(time.Microsecond)
		a.LastAnalysisAt = &now
		if cur.LastAnalysisAt != nil && cur.LastAnalysisAt.After(now) {
			a.LastAnalysisAt = cur.LastAnalysisAt
		}
		if err := s.upsertAnalysis(ctx, tx, a); err != nil {
			return err
		}
		if applyLevel {
			return s.setLevel(ctx, tx, a.UserID, a.CurrentLevel)
		}
		return nil
	})
}

func (s *Store) upsertAnalysis(ctx context.Context, tx *sql.Tx, a *Analysis) error {
	topics := a.Topics
	if topics == nil {
		topics = learner.Topics{}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}

	var last any
	if a.LastAnalysisAt != nil {
		last = a.LastAnalysisAt.UnixMicro()
	}
	cur, prev := a.CurrentLevel, a.PreviousLevel
	if cur == "" {
		cur = learner.LevelUnknown
	}
	if prev == "" {
		prev = learner.LevelUnknown
	}

	query, args := s.qb.Insert("user_analysis").
		Columns(analysisColumns...).
		Values(a.UserID, last, string(cur), string(prev), a.Recommendation, a.Confidence, string(topicsJSON)).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return unavailable("save analysis", err)
	}
	return nil
}
