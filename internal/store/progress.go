package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/quest"
)

func (s *SQLiteStore) GetClueProgress(ctx context.Context, clueID int64, teamID string) (quest.ClueProgress, bool, error) {
	cp, err := scanClueProgress(s.db.QueryRowContext(ctx, `
		SELECT clue_id, team_id, discovered, discovered_by, discovered_at
		FROM clue_progress WHERE clue_id = ? AND team_id = ?
	`, clueID, teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return quest.ClueProgress{}, false, nil
	}
	if err != nil {
		return quest.ClueProgress{}, false, mapErr(err)
	}
	return cp, true, nil
}

// CASSetClueDiscovered inserts the progress row or flips an undiscovered
// one in a single statement. The row count tells whether this call did it.
func (s *SQLiteStore) CASSetClueDiscovered(ctx context.Context, clueID int64, teamID, playerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clue_progress (clue_id, team_id, discovered, discovered_by, discovered_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (clue_id, team_id) DO UPDATE
			SET discovered = 1,
			    discovered_by = excluded.discovered_by,
			    discovered_at = excluded.discovered_at
			WHERE clue_progress.discovered = 0
	`, clueID, teamID, playerID, nowUTC())
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListClueProgress(ctx context.Context, questID int64, teamID string) ([]quest.ClueProgress, error) {
	return listClueProgress(ctx, s.db, questID, teamID)
}

func listClueProgress(ctx context.Context, q queryer, questID int64, teamID string) ([]quest.ClueProgress, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cp.clue_id, cp.team_id, cp.discovered, cp.discovered_by, cp.discovered_at
		FROM clue_progress cp
		JOIN clues c ON c.id = cp.clue_id
		WHERE c.quest_id = ? AND cp.team_id = ?
		ORDER BY c.sequence_number
	`, questID, teamID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []quest.ClueProgress
	for rows.Next() {
		cp, err := scanClueProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, mapErr(rows.Err())
}

func (s *SQLiteStore) GetQuestProgress(ctx context.Context, questID int64, teamID string) (quest.QuestProgress, bool, error) {
	return getQuestProgress(ctx, s.db, questID, teamID)
}

func getQuestProgress(ctx context.Context, q queryer, questID int64, teamID string) (quest.QuestProgress, bool, error) {
	qp, err := scanQuestProgress(q.QueryRowContext(ctx, `
		SELECT quest_id, team_id, status, last_completed_by, updated_at
		FROM quest_progress WHERE quest_id = ? AND team_id = ?
	`, questID, teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return quest.QuestProgress{}, false, nil
	}
	if err != nil {
		return quest.QuestProgress{}, false, mapErr(err)
	}
	return qp, true, nil
}

// CASQuestStatus moves the status forward only if it still equals from. A
// missing row stands for NOT_STARTED and is inserted by the same statement.
func (s *SQLiteStore) CASQuestStatus(ctx context.Context, questID int64, teamID string, from, to quest.Status, playerID string) (bool, error) {
	if !from.CanAdvanceTo(to) {
		return false, fmt.Errorf("status %s cannot move to %s", from, to)
	}

	var (
		res sql.Result
		err error
	)
	if from == quest.StatusNotStarted {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO quest_progress (quest_id, team_id, status, last_completed_by, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (quest_id, team_id) DO UPDATE
				SET status = excluded.status,
				    last_completed_by = excluded.last_completed_by,
				    updated_at = excluded.updated_at
				WHERE quest_progress.status = 'NOT_STARTED'
		`, questID, teamID, string(to), playerID, nowUTC())
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE quest_progress
			SET status = ?, last_completed_by = ?, updated_at = ?
			WHERE quest_id = ? AND team_id = ? AND status = ?
		`, string(to), playerID, nowUTC(), questID, teamID, string(from))
	}
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListQuestProgress(ctx context.Context, teamID string) ([]quest.QuestProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quest_id, team_id, status, last_completed_by, updated_at
		FROM quest_progress WHERE team_id = ? ORDER BY quest_id
	`, teamID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []quest.QuestProgress
	for rows.Next() {
		qp, err := scanQuestProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qp)
	}
	return out, mapErr(rows.Err())
}

// LoadQuestState reads the quest, its clues and the team's progress inside
// one transaction so the parts agree with each other.
func (s *SQLiteStore) LoadQuestState(ctx context.Context, questID int64, teamID string) (engine.QuestState, error) {
	var st engine.QuestState
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		q, err := getQuest(ctx, tx, questID)
		if err != nil {
			return err
		}
		st.Quest = q

		qp, found, err := getQuestProgress(ctx, tx, questID, teamID)
		if err != nil {
			return err
		}
		if !found {
			qp = quest.NotStarted(questID, teamID)
		}
		st.Progress = qp

		if st.Clues, err = listClues(ctx, tx, questID); err != nil {
			return err
		}
		st.ClueProgress, err = listClueProgress(ctx, tx, questID, teamID)
		return err
	})
	if err != nil {
		return engine.QuestState{}, err
	}
	return st, nil
}

func scanClueProgress(row scanner) (quest.ClueProgress, error) {
	var (
		cp         quest.ClueProgress
		discovered int
		at         sql.NullString
	)
	if err := row.Scan(&cp.ClueID, &cp.TeamID, &discovered, &cp.DiscoveredBy, &at); err != nil {
		return quest.ClueProgress{}, err
	}
	cp.Discovered = discovered == 1
	if at.Valid {
		cp.DiscoveredAt = parseTime(at.String)
	}
	return cp, nil
}

func scanQuestProgress(row scanner) (quest.QuestProgress, error) {
	var (
		qp      quest.QuestProgress
		status  string
		updated string
	)
	if err := row.Scan(&qp.QuestID, &qp.TeamID, &status, &qp.LastCompletedBy, &updated); err != nil {
		return quest.QuestProgress{}, err
	}
	qp.Status = quest.Status(status)
	qp.UpdatedAt = parseTime(updated)
	return qp, nil
}
