package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/playperu/questhunt/internal/quest"
)

const (
	searchStaminaCost = 10
	searchCoinReward  = 5
)

// CreatePlayer creates a profile with default stamina and no rewards.
func (s *SQLiteStore) CreatePlayer(ctx context.Context, playerID, username string) (quest.PlayerProfile, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_profiles (firebase_uid, username, stamina, created_at)
		VALUES (?, ?, ?, ?)
	`, playerID, username, quest.DefaultStamina, nowUTC())
	if isUnique(err, "player_profiles.firebase_uid") {
		return quest.PlayerProfile{}, fmt.Errorf("player %s: %w", playerID, quest.ErrProfileExists)
	}
	if err != nil {
		return quest.PlayerProfile{}, mapErr(err)
	}
	return s.GetPlayer(ctx, playerID)
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID string) (quest.PlayerProfile, error) {
	var (
		p       quest.PlayerProfile
		teamID  sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT p.firebase_uid, p.username, m.team_id, p.individual_xp, p.stamina, p.coins, p.created_at
		FROM player_profiles p
		LEFT JOIN team_members m ON m.player_id = p.firebase_uid
		WHERE p.firebase_uid = ?
	`, playerID).Scan(&p.FirebaseUID, &p.Username, &teamID, &p.IndividualXP, &p.Stamina, &p.Coins, &created)
	if err != nil {
		return quest.PlayerProfile{}, notFound(err, quest.ErrProfileNotFound)
	}
	p.TeamID = teamID.String
	p.CreatedAt = parseTime(created)
	return p, nil
}

// Search spends stamina for a small coin reward. Both columns change in one
// conditional UPDATE, so concurrent credits are never overwritten.
func (s *SQLiteStore) Search(ctx context.Context, playerID string) (quest.PlayerProfile, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE player_profiles
		SET stamina = stamina - ?, coins = coins + ?
		WHERE firebase_uid = ? AND stamina >= ?
	`, searchStaminaCost, searchCoinReward, playerID, searchStaminaCost)
	if err != nil {
		return quest.PlayerProfile{}, mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetPlayer(ctx, playerID); err != nil {
			return quest.PlayerProfile{}, err
		}
		return quest.PlayerProfile{}, quest.ErrInsufficientStamina
	}
	return s.GetPlayer(ctx, playerID)
}

func (s *SQLiteStore) CreditXP(ctx context.Context, playerID string, amount int, eventKey string) error {
	return s.credit(ctx, playerID, quest.CreditXP, amount, eventKey)
}

func (s *SQLiteStore) CreditCoins(ctx context.Context, playerID string, amount int, eventKey string) error {
	return s.credit(ctx, playerID, quest.CreditCoins, amount, eventKey)
}

// credit journals the event key and applies the increment in the same
// transaction. A key already journaled for the player is a no-op.
func (s *SQLiteStore) credit(ctx context.Context, playerID string, kind quest.CreditKind, amount int, eventKey string) error {
	if amount < 0 {
		return fmt.Errorf("negative %s credit %d", kind, amount)
	}

	column := "individual_xp"
	if kind == quest.CreditCoins {
		column = "coins"
	}

	// The journal insert comes first so the transaction takes the write
	// lock before it reads anything.
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reward_credits (player_id, event_key, kind, amount, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (player_id, event_key) DO NOTHING
		`, playerID, eventKey, string(kind), amount, nowUTC())
		if isForeignKey(err) {
			return fmt.Errorf("player %s: %w", playerID, quest.ErrProfileNotFound)
		}
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE player_profiles SET `+column+` = `+column+` + ? WHERE firebase_uid = ?`,
			amount, playerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("player %s: %w", playerID, quest.ErrProfileNotFound)
		}
		return nil
	})
}
