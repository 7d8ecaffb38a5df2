package server

import (
	"context"

	"github.com/playperu/questhunt/internal/content"
	"github.com/playperu/questhunt/internal/quest"
)

// Store is what the HTTP layer needs beyond the engine: clue lookups,
// team and player administration, and content import.
type Store interface {
	content.Sink

	GetClue(ctx context.Context, clueID int64) (quest.Clue, error)
	GetClueProgress(ctx context.Context, clueID int64, teamID string) (quest.ClueProgress, bool, error)
	DeleteQuest(ctx context.Context, questID int64) error

	GetTeam(ctx context.Context, teamID string) (quest.Team, error)
	ListTeams(ctx context.Context) ([]quest.Team, error)
	DeleteTeam(ctx context.Context, teamID string) error
	IsTeamMember(ctx context.Context, teamID, playerID string) (bool, error)
	RemoveTeamMember(ctx context.Context, teamID, playerID string) error

	GetPlayer(ctx context.Context, playerID string) (quest.PlayerProfile, error)
	Search(ctx context.Context, playerID string) (quest.PlayerProfile, error)
}
