package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// User is a known chat participant.
type User struct {
	ID       int64
	Username string
	FullName string
	Pronouns string
}

// UpsertUser creates or refreshes a user record. Pronouns are preserved on
// update (they are set explicitly, not harvested from Telegram).
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, full_name, pronouns, created_at)
		VALUES (?, ?, ?, '', ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, full_name = excluded.full_name`,
		u.ID, u.Username, u.FullName, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetUser returns a user by id, or nil when unknown.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	var username sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, pronouns FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &username, &u.FullName, &u.Pronouns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	return &u, nil
}

// Chat is a known chat (private or group).
type Chat struct {
	ID          int64
	Title       string
	Type        string // "private", "group", "supergroup"
	MemberCount int
}

// UpsertChat creates or refreshes a chat record.
func (s *Store) UpsertChat(ctx context.Context, c Chat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, chat_type, member_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, chat_type = excluded.chat_type, member_count = excluded.member_count`,
		c.ID, c.Title, c.Type, c.MemberCount, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListChatIDs returns all known chat ids. Used by the summary scheduler.
func (s *Store) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
