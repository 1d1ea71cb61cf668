package store

import (
	"database/sql"
	"fmt"
)

// schema is applied on every Open. Timestamps are unix microseconds so
// that per-session ordering survives sub-millisecond turns.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id    TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		roles      TEXT NOT NULL DEFAULT '[]',
		email      TEXT NOT NULL UNIQUE,
		user_level TEXT NOT NULL DEFAULT 'unknown',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id   TEXT NOT NULL REFERENCES users(user_id),
		chat_id   TEXT NOT NULL,
		role      TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content   TEXT NOT NULL,
		parts     TEXT,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_session_ts ON messages (user_id, chat_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS user_analysis (
		user_id          TEXT PRIMARY KEY REFERENCES users(user_id),
		last_analysis_at INTEGER,
		current_level    TEXT NOT NULL DEFAULT 'unknown',
		previous_level   TEXT NOT NULL DEFAULT 'unknown',
		recommendation   TEXT NOT NULL DEFAULT '',
		confidence       REAL NOT NULL DEFAULT 0,
		topics           TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL,
		timestamp     INTEGER NOT NULL,
		user_id       TEXT NOT NULL DEFAULT '',
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		schema_name   TEXT NOT NULL DEFAULT '',
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL,
		stop_reason   TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_user_ts ON llm_request_events (user_id, timestamp)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
