package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/playperu/questhunt/internal/quest"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateQuest inserts q and its clues in one transaction and returns the
// stored quest with IDs assigned.
func (s *SQLiteStore) CreateQuest(ctx context.Context, q quest.Quest, clues []quest.Clue) (quest.Quest, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var created string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO quests (title, description, start_lat, start_lng, difficulty, reward_points, quest_type)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id, created_at
		`, q.Title, q.Description, q.Start.Lat, q.Start.Lng, q.Difficulty, q.RewardPoints, string(q.Type),
		).Scan(&q.ID, &created)
		if err != nil {
			return fmt.Errorf("inserting quest: %w", err)
		}
		q.CreatedAt = parseTime(created)
		q.ClueIDs = make([]int64, 0, len(clues))

		for _, c := range clues {
			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO clues (quest_id, sequence_number, text, target_lat, target_lng, clue_type, puzzle_data, hint)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING id
			`, q.ID, c.SequenceNumber, c.Text, c.Target.Lat, c.Target.Lng, string(c.Type), c.PuzzleData, c.Hint,
			).Scan(&id)
			if isUnique(err, "clues.quest_id") {
				return fmt.Errorf("clue sequence %d repeated: %w", c.SequenceNumber, quest.ErrInvalidContent)
			}
			if err != nil {
				return fmt.Errorf("inserting clue %d: %w", c.SequenceNumber, err)
			}
			q.ClueIDs = append(q.ClueIDs, id)
		}
		return nil
	})
	if err != nil {
		return quest.Quest{}, err
	}
	return q, nil
}

// DeleteQuest removes a quest with its clues and all team progress on it.
func (s *SQLiteStore) DeleteQuest(ctx context.Context, questID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// Foreign key enforcement is per connection, so the cascade is spelled out.
		stmts := []string{
			`DELETE FROM clue_progress WHERE clue_id IN (SELECT id FROM clues WHERE quest_id = ?)`,
			`DELETE FROM quest_progress WHERE quest_id = ?`,
			`DELETE FROM clues WHERE quest_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, questID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM quests WHERE id = ?`, questID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return quest.ErrQuestNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) CountQuests(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quests`).Scan(&n)
	return n, mapErr(err)
}

func (s *SQLiteStore) GetClue(ctx context.Context, clueID int64) (quest.Clue, error) {
	c, err := scanClue(s.db.QueryRowContext(ctx, `
		SELECT id, quest_id, sequence_number, text, target_lat, target_lng, clue_type, puzzle_data, hint
		FROM clues WHERE id = ?
	`, clueID))
	if err != nil {
		return quest.Clue{}, notFound(err, quest.ErrClueNotFound)
	}
	return c, nil
}

func (s *SQLiteStore) GetQuest(ctx context.Context, questID int64) (quest.Quest, error) {
	return getQuest(ctx, s.db, questID)
}

func getQuest(ctx context.Context, q queryer, questID int64) (quest.Quest, error) {
	qu, err := scanQuest(q.QueryRowContext(ctx, `
		SELECT id, title, description, start_lat, start_lng, difficulty, reward_points, quest_type, created_at
		FROM quests WHERE id = ?
	`, questID))
	if err != nil {
		return quest.Quest{}, notFound(err, quest.ErrQuestNotFound)
	}
	clues, err := listClues(ctx, q, questID)
	if err != nil {
		return quest.Quest{}, err
	}
	for _, c := range clues {
		qu.ClueIDs = append(qu.ClueIDs, c.ID)
	}
	return qu, nil
}

// ListQuests returns all quests in creation order with their clue IDs.
func (s *SQLiteStore) ListQuests(ctx context.Context) ([]quest.Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, start_lat, start_lng, difficulty, reward_points, quest_type, created_at
		FROM quests ORDER BY id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var quests []quest.Quest
	index := make(map[int64]int)
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		index[q.ID] = len(quests)
		quests = append(quests, q)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	clueRows, err := s.db.QueryContext(ctx, `SELECT quest_id, id FROM clues ORDER BY quest_id, sequence_number`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer clueRows.Close()
	for clueRows.Next() {
		var questID, clueID int64
		if err := clueRows.Scan(&questID, &clueID); err != nil {
			return nil, err
		}
		if i, ok := index[questID]; ok {
			quests[i].ClueIDs = append(quests[i].ClueIDs, clueID)
		}
	}
	return quests, mapErr(clueRows.Err())
}

// ListCluesForQuest returns the clues ordered by sequence number.
func (s *SQLiteStore) ListCluesForQuest(ctx context.Context, questID int64) ([]quest.Clue, error) {
	return listClues(ctx, s.db, questID)
}

func listClues(ctx context.Context, q queryer, questID int64) ([]quest.Clue, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, quest_id, sequence_number, text, target_lat, target_lng, clue_type, puzzle_data, hint
		FROM clues WHERE quest_id = ? ORDER BY sequence_number
	`, questID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var clues []quest.Clue
	for rows.Next() {
		c, err := scanClue(rows)
		if err != nil {
			return nil, err
		}
		clues = append(clues, c)
	}
	return clues, mapErr(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuest(row scanner) (quest.Quest, error) {
	var (
		q       quest.Quest
		typ     string
		created string
	)
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.Start.Lat, &q.Start.Lng,
		&q.Difficulty, &q.RewardPoints, &typ, &created)
	if err != nil {
		return quest.Quest{}, err
	}
	q.Type = quest.QuestType(typ)
	q.CreatedAt = parseTime(created)
	return q, nil
}

func scanClue(row scanner) (quest.Clue, error) {
	var (
		c   quest.Clue
		typ string
	)
	err := row.Scan(&c.ID, &c.QuestID, &c.SequenceNumber, &c.Text, &c.Target.Lat, &c.Target.Lng,
		&typ, &c.PuzzleData, &c.Hint)
	if err != nil {
		return quest.Clue{}, err
	}
	c.Type = quest.ClueType(typ)
	return c, nil
}
