package store

import (
	"context"
	"time"
)

// maxFactsPerUser caps long-term memory per user; the oldest facts are
// evicted once the cap is reached.
const maxFactsPerUser = 50

// Fact is one remembered statement about a user.
type Fact struct {
	ID        int64
	UserID    int64
	Fact      string
	CreatedAt time.Time
}

// AddFact stores a fact for a user, evicting the oldest facts beyond the
// per-user cap.
func (s *Store) AddFact(ctx context.Context, userID int64, fact string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_facts (user_id, fact, created_at) VALUES (?, ?, ?)`,
		userID, fact, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM user_facts
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM user_facts WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`,
		userID, userID, maxFactsPerUser,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ListFacts returns up to limit most recent facts for a user, oldest first.
// A limit of 0 returns everything.
func (s *Store) ListFacts(ctx context.Context, userID int64, limit int) ([]Fact, error) {
	query := `SELECT id, user_id, fact, created_at FROM user_facts WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var createdAt string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Fact, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query runs newest-first for the LIMIT; callers want chronological.
	for i, j := 0, len(facts)-1; i < j; i, j = i+1, j-1 {
		facts[i], facts[j] = facts[j], facts[i]
	}
	return facts, nil
}

// DeleteFact removes one fact by id, scoped to the user, and reports
// whether it existed.
func (s *Store) DeleteFact(ctx context.Context, userID, factID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_facts WHERE id = ? AND user_id = ?`, factID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteAllFacts removes every fact for a user and reports how many there were.
func (s *Store) DeleteAllFacts(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_facts WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetPronouns records a user's stated pronouns.
func (s *Store) SetPronouns(ctx context.Context, userID int64, pronouns string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET pronouns = ? WHERE id = ?`, pronouns, userID)
	return err
}
