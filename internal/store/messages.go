package store

import (
	"context"
	"database/sql"
	"time"
)

// Message is one stored chat message. UserID is 0 for bot-authored messages.
type Message struct {
	ID          int64
	TGMessageID int64
	ChatID      int64
	UserID      int64
	Content     string
	ContentType string // "text" or "photo"
	IsBot       bool
	ReplyToID   int64 // tg_message_id of the replied-to message, 0 if none
	CreatedAt   time.Time
}

// AddMessage persists one message.
func (s *Store) AddMessage(ctx context.Context, m Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var userID, replyTo any
	if m.UserID != 0 {
		userID = m.UserID
	}
	if m.ReplyToID != 0 {
		replyTo = m.ReplyToID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (tg_message_id, chat_id, user_id, content, content_type, is_bot, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TGMessageID, m.ChatID, userID, m.Content, m.ContentType, boolToInt(m.IsBot), replyTo,
		m.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// RecentMessages returns up to limit most recent messages for a chat,
// ordered oldest first (ready to feed the context builder).
func (s *Store) RecentMessages(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tg_message_id, chat_id, user_id, content, content_type, is_bot, reply_to_id, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessagesSince returns chat messages created after the given time,
// oldest first. Used by the summarizer.
func (s *Store) MessagesSince(ctx context.Context, chatID int64, since time.Time) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tg_message_id, chat_id, user_id, content, content_type, is_bot, reply_to_id, created_at
		FROM messages
		WHERE chat_id = ? AND created_at > ?
		ORDER BY created_at ASC, id ASC`,
		chatID, since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			userID    sql.NullInt64
			replyTo   sql.NullInt64
			isBot     int
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.TGMessageID, &m.ChatID, &userID, &m.Content, &m.ContentType, &isBot, &replyTo, &createdAt); err != nil {
			return nil, err
		}
		m.UserID = userID.Int64
		m.ReplyToID = replyTo.Int64
		m.IsBot = isBot != 0
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
