package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/dsatutor/internal/llm"
)

// sequenceCounter hands out a global monotonic sequence for audit events.
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

var llmEventColumns = []string{
	"id", "sequence", "timestamp", "user_id", "provider", "model", "purpose",
	"schema_name", "input_tokens", "output_tokens", "latency_ms", "success",
	"stop_reason", "error_message", "request_body", "response_body",
}

// RecordLLMRequest stores one LLM call. It satisfies llm.EventRecorder.
func (s *Store) RecordLLMRequest(ctx context.Context, ev llm.RequestEvent) error {
	seqNum, err := s.seq.Next(ctx)
	if err != nil {
		return unavailable("record llm request", err)
	}

	query, args := s.qb.Insert("llm_request_events").
		Columns(llmEventColumns[1:]...).
		Values(seqNum, s.now().UnixMicro(), ev.UserID, ev.Provider, ev.Model, ev.Purpose,
			ev.SchemaName, ev.InputTokens, ev.OutputTokens, ev.LatencyMs, ev.Success,
			ev.StopReason, ev.ErrorMessage, ev.RequestBody, ev.ResponseBody).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("record llm request", err)
	}
	return nil
}

// QueryLLMEvents returns the most recent events, newest first.
func (s *Store) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	sel := s.qb.Select(llmEventColumns...).
		From(entsql.Table("llm_request_events")).
		OrderBy(entsql.Desc("sequence"))
	if opts.Purpose != "" {
		sel = sel.Where(entsql.EQ("purpose", opts.Purpose))
	}
	if opts.UserID != "" {
		sel = sel.Where(entsql.EQ("user_id", opts.UserID))
	}
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query llm events", err)
	}
	defer rows.Close()

	var out []LLMEvent
	for rows.Next() {
		e, err := scanLLMEvent(rows)
		if err != nil {
			return nil, unavailable("scan llm event", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// GetLLMEvent returns one event by ID, or nil if it does not exist.
func (s *Store) GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error) {
	query, args := s.qb.Select(llmEventColumns...).
		From(entsql.Table("llm_request_events")).
		Where(entsql.EQ("id", id)).
		Query()

	e, err := scanLLMEvent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get llm event", err)
	}
	return e, nil
}

// LLMUsageByPurpose aggregates token usage per purpose.
func (s *Store) LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error) {
	return s.llmUsage(ctx, "purpose")
}

// LLMUsageByModel aggregates token usage per model.
func (s *Store) LLMUsageByModel(ctx context.Context) ([]LLMUsage, error) {
	return s.llmUsage(ctx, "model")
}

func (s *Store) llmUsage(ctx context.Context, groupBy string) ([]LLMUsage, error) {
	query, args := s.qb.Select(
		groupBy,
		entsql.Count("*"),
		entsql.Sum("input_tokens"),
		entsql.Sum("output_tokens"),
		"CAST(AVG(latency_ms) AS INTEGER)",
	).
		From(entsql.Table("llm_request_events")).
		GroupBy(groupBy).
		OrderBy(groupBy).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("llm usage", err)
	}
	defer rows.Close()

	var out []LLMUsage
	for rows.Next() {
		var u LLMUsage
		var key string
		if err := rows.Scan(&key, &u.Calls, &u.InputTokens, &u.OutputTokens, &u.AvgLatencyMs); err != nil {
			return nil, unavailable("scan llm usage", err)
		}
		if groupBy == "model" {
			u.Model = key
		} else {
			u.Purpose = key
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLLMEvent(row scanner) (*LLMEvent, error) {
	var e LLMEvent
	var ts int64
	if err := row.Scan(&e.ID, &e.Sequence, &ts, &e.UserID, &e.Provider, &e.Model, &e.Purpose,
		&e.SchemaName, &e.InputTokens, &e.OutputTokens, &e.LatencyMs, &e.Success,
		&e.StopReason, &e.ErrorMessage, &e.RequestBody, &e.ResponseBody); err != nil {
		return nil, err
	}
	e.Timestamp = time.UnixMicro(ts)
	return &e, nil
}
