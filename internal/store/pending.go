package store

import (
	"context"

	"github.com/playperu/questhunt/internal/quest"
)

func (s *SQLiteStore) AddPendingCredit(ctx context.Context, c quest.PendingCredit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_credits (kind, player_id, team_id, quest_id, amount, event_key, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(c.Kind), c.PlayerID, c.TeamID, c.QuestID, c.Amount, c.EventKey, c.LastError, nowUTC())
	return mapErr(err)
}

// ListPendingCredits returns unparked credits, least attempted first so a
// credit that keeps failing cannot hold back newer ones.
func (s *SQLiteStore) ListPendingCredits(ctx context.Context, limit int) ([]quest.PendingCredit, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, player_id, team_id, quest_id, amount, event_key, attempts, last_error, created_at
		FROM pending_credits
		WHERE parked_at IS NULL
		ORDER BY attempts, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []quest.PendingCredit
	for rows.Next() {
		var (
			c       quest.PendingCredit
			kind    string
			created string
		)
		if err := rows.Scan(&c.ID, &kind, &c.PlayerID, &c.TeamID, &c.QuestID, &c.Amount,
			&c.EventKey, &c.Attempts, &c.LastError, &created); err != nil {
			return nil, err
		}
		c.Kind = quest.CreditKind(kind)
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (s *SQLiteStore) ResolvePendingCredit(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_credits WHERE id = ?`, id)
	return mapErr(err)
}

func (s *SQLiteStore) MarkPendingAttempt(ctx context.Context, id int64, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_credits SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, lastErr, id)
	return mapErr(err)
}

// ParkPendingCredit takes a credit out of the retry queue. The row is kept
// for operators.
func (s *SQLiteStore) ParkPendingCredit(ctx context.Context, id int64, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_credits SET attempts = attempts + 1, last_error = ?, parked_at = ? WHERE id = ?
	`, lastErr, nowUTC(), id)
	return mapErr(err)
}
