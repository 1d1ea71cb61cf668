package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/dsatutor/internal/learner"
)

var userColumns = []string{"user_id", "username", "roles", "email", "user_level", "created_at"}

// CreateUser registers a learner. The level starts unknown; the email is
// normalized to lower case and must be unique.
func (s *Store) CreateUser(ctx context.Context, email, username string, roles []string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("create user: email is required")
	}
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	u := &User{
		UserID:    uuid.NewString(),
		Email:     email,
		Username:  username,
		Roles:     roles,
		Level:     learner.LevelUnknown,
		CreatedAt: s.now().UTC(),
	}

	query, args := s.qb.Insert("users").
		Columns(userColumns...).
		Values(u.UserID, u.Username, string(rolesJSON), u.Email, string(u.Level), u.CreatedAt.UnixMicro()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("create user %s: %w", email, ErrEmailTaken)
		}
		return nil, unavailable("create user", err)
	}
	return u, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.getUserBy(ctx, "user_id", userID)
}

// GetUserByEmail loads a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	query, args := s.qb.Select(userColumns...).
		From(entsql.Table("users")).
		OrderBy("created_at").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, unavailable("scan user", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) getUserBy(ctx context.Context, column, value string) (*User, error) {
	query, args := s.qb.Select(userColumns...).
		From(entsql.Table("users")).
		Where(entsql.EQ(column, value)).
		Query()

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return u, nil
}

func scanUser(row scanner) (*User, error) {
	var u User
	var roles, level string
	var created int64
	if err := row.Scan(&u.UserID, &u.Username, &roles, &u.Email, &level, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	u.Level, _ = learner.ParseLevel(level)
	u.CreatedAt = time.UnixMicro(created).UTC()
	return &u, nil
}

// GetLevel returns the user's level.
func (s *Store) GetLevel(ctx context.Context, userID string) (learner.Level, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return learner.LevelUnknown, err
	}
	return u.Level, nil
}

// SetLevel stores the user's level.
func (s *Store) SetLevel(ctx context.Context, userID string, level learner.Level) error {
	return s.setLevel(ctx, s.db, userID, level)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) setLevel(ctx context.Context, db execer, userID string, level learner.Level) error {
	query, args := s.qb.Update("users").
		Set("user_level", string(level)).
		Where(entsql.EQ("user_id", userID)).
		Query()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable("set level", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}
