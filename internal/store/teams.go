package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/playperu/questhunt/internal/quest"
)

// CreateTeam creates a team led by leaderID, who becomes its first member.
func (s *SQLiteStore) CreateTeam(ctx context.Context, name, leaderID string) (quest.Team, error) {
	id := uuid.NewString()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireProfile(ctx, tx, leaderID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, leader_player_id, created_at) VALUES (?, ?, ?, ?)
		`, id, name, leaderID, nowUTC())
		if isUnique(err, "teams.name") {
			return fmt.Errorf("team %q: %w", name, quest.ErrTeamNameTaken)
		}
		if err != nil {
			return err
		}
		return addMember(ctx, tx, id, leaderID)
	})
	if err != nil {
		return quest.Team{}, err
	}
	return s.GetTeam(ctx, id)
}

func (s *SQLiteStore) GetTeam(ctx context.Context, teamID string) (quest.Team, error) {
	var (
		t       quest.Team
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, leader_player_id, created_at FROM teams WHERE id = ?
	`, teamID).Scan(&t.ID, &t.Name, &t.LeaderPlayerID, &created)
	if err != nil {
		return quest.Team{}, notFound(err, quest.ErrTeamNotFound)
	}
	t.CreatedAt = parseTime(created)

	members, err := s.members(ctx, s.db, teamID)
	if err != nil {
		return quest.Team{}, err
	}
	t.MemberIDs = members
	return t, nil
}

// TeamMembers returns the player IDs on the team in join order.
func (s *SQLiteStore) TeamMembers(ctx context.Context, teamID string) ([]string, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ?`, teamID).Scan(&one)
	if err != nil {
		return nil, notFound(err, quest.ErrTeamNotFound)
	}
	return s.members(ctx, s.db, teamID)
}

func (s *SQLiteStore) members(ctx context.Context, q queryer, teamID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT player_id FROM team_members WHERE team_id = ? ORDER BY joined_at, rowid
	`, teamID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, mapErr(rows.Err())
}

// AddTeamMember puts playerID on the team. A player is on at most one team.
func (s *SQLiteStore) AddTeamMember(ctx context.Context, teamID, playerID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ?`, teamID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return quest.ErrTeamNotFound
		}
		if err != nil {
			return err
		}
		if err := requireProfile(ctx, tx, playerID); err != nil {
			return err
		}
		return addMember(ctx, tx, teamID, playerID)
	})
}

// RemoveTeamMember takes playerID off the team. Leadership passes to the
// longest-standing remaining member; a team left empty is deleted.
func (s *SQLiteStore) RemoveTeamMember(ctx context.Context, teamID, playerID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var leader string
		err := tx.QueryRowContext(ctx, `SELECT leader_player_id FROM teams WHERE id = ?`, teamID).Scan(&leader)
		if errors.Is(err, sql.ErrNoRows) {
			return quest.ErrTeamNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ? AND player_id = ?`, teamID, playerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("player %s on team %s: %w", playerID, teamID, quest.ErrNotTeamMember)
		}

		remaining, err := s.members(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			_, err := disband(ctx, tx, teamID)
			return err
		}
		if leader == playerID {
			_, err := tx.ExecContext(ctx, `UPDATE teams SET leader_player_id = ? WHERE id = ?`, remaining[0], teamID)
			return err
		}
		return nil
	})
}

// IsTeamMember reports whether playerID is on teamID.
func (s *SQLiteStore) IsTeamMember(ctx context.Context, teamID, playerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM team_members WHERE team_id = ? AND player_id = ?
	`, teamID, playerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

func requireProfile(ctx context.Context, tx *sql.Tx, playerID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM player_profiles WHERE firebase_uid = ?`, playerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("player %s: %w", playerID, quest.ErrProfileNotFound)
	}
	return err
}

func addMember(ctx context.Context, tx *sql.Tx, teamID, playerID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO team_members (player_id, team_id, joined_at) VALUES (?, ?, ?)
	`, playerID, teamID, nowUTC())
	if isUnique(err, "team_members.player_id") {
		return fmt.Errorf("player %s: %w", playerID, quest.ErrAlreadyOnTeam)
	}
	return err
}

func (s *SQLiteStore) ListTeams(ctx context.Context) ([]quest.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM teams ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	teams := make([]quest.Team, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, nil
}

// DeleteTeam disbands the team together with its quest and clue progress.
func (s *SQLiteStore) DeleteTeam(ctx context.Context, teamID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := disband(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("team %s: %w", teamID, quest.ErrTeamNotFound)
		}
		return nil
	})
}

// disband removes a team and everything keyed by it. Reward journals and
// pending credits stay; they belong to players.
func disband(ctx context.Context, tx *sql.Tx, teamID string) (bool, error) {
	for _, q := range []string{
		`DELETE FROM clue_progress WHERE team_id = ?`,
		`DELETE FROM quest_progress WHERE team_id = ?`,
		`DELETE FROM team_members WHERE team_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, teamID); err != nil {
			return false, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
