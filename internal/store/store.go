// Package store is the sqlite-backed persistence boundary: chat messages,
// users, long-term user facts, and rolling chat summaries.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the bot database. Safe for concurrent use; database/sql
// serializes access and sqlite runs in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; WAL keeps readers unblocked during writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           INTEGER PRIMARY KEY,
			username     TEXT,
			full_name    TEXT NOT NULL DEFAULT '',
			pronouns     TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chats (
			id           INTEGER PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			chat_type    TEXT NOT NULL DEFAULT 'private',
			member_count INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			tg_message_id  INTEGER NOT NULL,
			chat_id        INTEGER NOT NULL,
			user_id        INTEGER,
			content        TEXT NOT NULL,
			content_type   TEXT NOT NULL DEFAULT 'text',
			is_bot         INTEGER NOT NULL DEFAULT 0,
			reply_to_id    INTEGER,
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat_created
			ON messages (chat_id, created_at);

		CREATE TABLE IF NOT EXISTS user_facts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL,
			fact       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_user_facts_user ON user_facts (user_id);

		CREATE TABLE IF NOT EXISTS summaries (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id      INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			content      TEXT NOT NULL,
			period_start TEXT NOT NULL,
			period_end   TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_summaries_chat_kind
			ON summaries (chat_id, kind, created_at);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
