package engine

import (
	"context"

	"github.com/playperu/questhunt/internal/quest"
)

// QuestState is a consistent read of one quest and one team's progress on it.
type QuestState struct {
	Quest        quest.Quest
	Progress     quest.QuestProgress
	Clues        []quest.Clue
	ClueProgress []quest.ClueProgress
}

// ProgressStore persists quest content and per-team progress.
//
// The two CAS methods are the only writes the engine performs. Each must be
// a single atomic conditional write so that exactly one concurrent caller
// observes true.
type ProgressStore interface {
	GetClue(ctx context.Context, clueID int64) (quest.Clue, error)
	GetQuest(ctx context.Context, questID int64) (quest.Quest, error)
	ListQuests(ctx context.Context) ([]quest.Quest, error)
	ListCluesForQuest(ctx context.Context, questID int64) ([]quest.Clue, error)

	GetClueProgress(ctx context.Context, clueID int64, teamID string) (quest.ClueProgress, bool, error)
	// CASSetClueDiscovered flips discovered false->true. It reports false
	// when the clue was already discovered for the team.
	CASSetClueDiscovered(ctx context.Context, clueID int64, teamID, playerID string) (bool, error)
	ListClueProgress(ctx context.Context, questID int64, teamID string) ([]quest.ClueProgress, error)

	GetQuestProgress(ctx context.Context, questID int64, teamID string) (quest.QuestProgress, bool, error)
	// CASQuestStatus moves the status from `from` to `to`. A missing row
	// counts as NOT_STARTED. It reports false when the stored status is not
	// `from`.
	CASQuestStatus(ctx context.Context, questID int64, teamID string, from, to quest.Status, playerID string) (bool, error)
	ListQuestProgress(ctx context.Context, teamID string) ([]quest.QuestProgress, error)

	LoadQuestState(ctx context.Context, questID int64, teamID string) (QuestState, error)
}

// RewardLedger applies additive rewards to player profiles. A repeated
// eventKey for the same player is a successful no-op.
type RewardLedger interface {
	CreditXP(ctx context.Context, playerID string, amount int, eventKey string) error
	CreditCoins(ctx context.Context, playerID string, amount int, eventKey string) error
}

type TeamDirectory interface {
	TeamMembers(ctx context.Context, teamID string) ([]string, error)
}

// PendingCredits records rewards that failed after their transition was
// committed, for later reconciliation.
type PendingCredits interface {
	AddPendingCredit(ctx context.Context, c quest.PendingCredit) error
	ListPendingCredits(ctx context.Context, limit int) ([]quest.PendingCredit, error)
	ResolvePendingCredit(ctx context.Context, id int64) error
	MarkPendingAttempt(ctx context.Context, id int64, lastErr string) error
	// ParkPendingCredit stops retrying a credit that cannot succeed.
	ParkPendingCredit(ctx context.Context, id int64, lastErr string) error
}
