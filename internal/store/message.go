package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/dsatutor/internal/learner"
)

var messageColumns = []string{"id", "user_id", "chat_id", "role", "content", "parts", "timestamp"}

// AppendMessage appends one message to its session. ChatID defaults to the
// user's default chat; ID and Timestamp are assigned by the store.
func (s *Store) AppendMessage(ctx context.Context, m *Message) error {
	return s.withTx(ctx, "append message", func(tx *sql.Tx) error {
		return s.appendMessage(ctx, tx, m)
	})
}

// AppendTurn appends a user message and the assistant reply to it in one
// transaction, so a session never holds a reply without its question.
func (s *Store) AppendTurn(ctx context.Context, user, assistant *Message) error {
	return s.withTx(ctx, "append turn", func(tx *sql.Tx) error {
		if err := s.appendMessage(ctx, tx, user); err != nil {
			return err
		}
		return s.appendMessage(ctx, tx, assistant)
	})
}

// CompleteAssessment finishes the initial assessment atomically: it stores
// the level, replaces the questionnaire transcript with the single
// acknowledgement message and restarts the analysis window at now.
func (s *Store) CompleteAssessment(ctx context.Context, userID string, level learner.Level, ack *Message) error {
	return s.withTx(ctx, "complete assessment", func(tx *sql.Tx) error {
		if err := s.setLevel(ctx, tx, userID, level); err != nil {
			return err
		}
		if err := s.deleteMessages(ctx, tx, userID, 0); err != nil {
			return err
		}
		ack.UserID = userID
		if err := s.appendMessage(ctx, tx, ack); err != nil {
			return err
		}
		return s.resetLastAnalysisAt(ctx, tx, userID)
	})
}

func (s *Store) appendMessage(ctx context.Context, tx *sql.Tx, m *Message) error {
	if m.ChatID == "" {
		m.ChatID = ChatID(m.UserID)
	}

	last, err := s.lastTimestamp(ctx, tx, m.UserID, m.ChatID)
	if err != nil {
		return unavailable("append message", err)
	}
	ts := s.now().UnixMicro()
	if ts <= last {
		ts = last + 1
	}

	var parts any
	if len(m.Parts) > 0 {
		b, err := json.Marshal(m.Parts)
		if err != nil {
			return fmt.Errorf("encode parts: %w", err)
		}
		parts = string(b)
	}

	query, args := s.qb.Insert("messages").
		Columns(messageColumns[1:]...).
		Values(m.UserID, m.ChatID, string(m.Role), m.Content, parts, ts).
		Query()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable("append message", err)
	}
	m.ID, _ = res.LastInsertId()
	m.Timestamp = time.UnixMicro(ts).UTC()
	return nil
}

func (s *Store) lastTimestamp(ctx context.Context, tx *sql.Tx, userID, chatID string) (int64, error) {
	query, args := s.qb.Select("COALESCE(MAX(timestamp), 0)").
		From(entsql.Table("messages")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("chat_id", chatID))).
		Query()
	var last int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&last)
	return last, err
}

// LoadHistory returns a session's messages in timestamp order.
func (s *Store) LoadHistory(ctx context.Context, userID, chatID string) ([]Message, error) {
	if chatID == "" {
		chatID = ChatID(userID)
	}
	query, args := s.qb.Select(messageColumns...).
		From(entsql.Table("messages")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("chat_id", chatID))).
		OrderBy("timestamp", "id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("load history", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		var parts sql.NullString
		var ts int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.ChatID, &role, &m.Content, &parts, &ts); err != nil {
			return nil, unavailable("scan message", err)
		}
		m.Role = Role(role)
		m.Timestamp = time.UnixMicro(ts).UTC()
		if parts.Valid && parts.String != "" {
			if err := json.Unmarshal([]byte(parts.String), &m.Parts); err != nil {
				return nil, fmt.Errorf("decode message %d parts: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load history", err)
	}
	return out, nil
}

// ClearHistory removes every message of the user atomically. User, level
// and topics are untouched.
func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	return s.withTx(ctx, "clear history", func(tx *sql.Tx) error {
		return s.deleteMessages(ctx, tx, userID, 0)
	})
}

// ClearHistoryExcept removes every message of the user except keepID.
func (s *Store) ClearHistoryExcept(ctx context.Context, userID string, keepID int64) error {
	return s.withTx(ctx, "clear history", func(tx *sql.Tx) error {
		return s.deleteMessages(ctx, tx, userID, keepID)
	})
}

func (s *Store) deleteMessages(ctx context.Context, tx *sql.Tx, userID string, keepID int64) error {
	pred := entsql.EQ("user_id", userID)
	if keepID > 0 {
		pred = entsql.And(pred, entsql.NEQ("id", keepID))
	}
	query, args := s.qb.Delete("messages").Where(pred).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return unavailable("clear history", err)
	}
	return nil
}

// CountUserTurnsSince counts the user's own messages strictly after since.
func (s *Store) CountUserTurnsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query, args := s.qb.Select(entsql.Count("*")).
		From(entsql.Table("messages")).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("role", string(RoleUser)),
			entsql.GT("timestamp", since.UnixMicro()),
		)).
		Query()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, unavailable("count user turns", err)
	}
	return n, nil
}
