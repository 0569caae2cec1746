package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Summary kinds.
const (
	SummaryWeekly  = "weekly"
	SummaryMonthly = "monthly"
)

// Summary is a rolling digest of a chat over a period.
type Summary struct {
	ID          int64
	ChatID      int64
	Kind        string
	Content     string
	PeriodStart time.Time
	PeriodEnd   time.Time
	CreatedAt   time.Time
}

// PutSummary stores a generated summary.
func (s *Store) PutSummary(ctx context.Context, sum Summary) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (chat_id, kind, content, period_start, period_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sum.ChatID, sum.Kind, sum.Content,
		sum.PeriodStart.UTC().Format(time.RFC3339Nano),
		sum.PeriodEnd.UTC().Format(time.RFC3339Nano),
		sum.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// LatestSummary returns the most recent summary of the given kind for a
// chat, or nil when none exists yet.
func (s *Store) LatestSummary(ctx context.Context, chatID int64, kind string) (*Summary, error) {
	var (
		sum                 Summary
		start, end, created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, kind, content, period_start, period_end, created_at
		FROM summaries
		WHERE chat_id = ? AND kind = ?
		ORDER BY id DESC LIMIT 1`,
		chatID, kind,
	).Scan(&sum.ID, &sum.ChatID, &sum.Kind, &sum.Content, &start, &end, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sum.PeriodStart, _ = time.Parse(time.RFC3339Nano, start)
	sum.PeriodEnd, _ = time.Parse(time.RFC3339Nano, end)
	sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &sum, nil
}
