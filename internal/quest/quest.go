// Package quest defines the core domain types of the scavenger hunt:
// quests, clues, teams, per-team progress and player profiles.
// It has no third-party dependencies.
package quest

import (
	"time"

	"github.com/playperu/questhunt/internal/geo"
)

type QuestType string

const (
	QuestTypeExplore   QuestType = "EXPLORE"
	QuestTypeRiddle    QuestType = "RIDDLE"
	QuestTypeChallenge QuestType = "CHALLENGE"
)

func (t QuestType) Valid() bool {
	switch t {
	case QuestTypeExplore, QuestTypeRiddle, QuestTypeChallenge:
		return true
	}
	return false
}

// Quest is immutable content once created.
type Quest struct {
	ID           int64
	Title        string
	Description  string
	Start        geo.Point
	Difficulty   int
	RewardPoints int
	Type         QuestType
	ClueIDs      []int64
	CreatedAt    time.Time
}

type ClueType string

const (
	ClueTypeLocation   ClueType = "LOCATION"
	ClueTypeTextRiddle ClueType = "PUZZLE_TEXT_RIDDLE"
	ClueTypeMathSimple ClueType = "PUZZLE_MATH_SIMPLE"
)

func (t ClueType) Valid() bool {
	switch t {
	case ClueTypeLocation, ClueTypeTextRiddle, ClueTypeMathSimple:
		return true
	}
	return false
}

// IsPuzzle reports whether the clue is solved by answering rather than by
// being in range.
func (t ClueType) IsPuzzle() bool {
	return t == ClueTypeTextRiddle || t == ClueTypeMathSimple
}

// Clue is one step of a quest. SequenceNumber is unique and dense within
// the quest and defines the visiting order.
type Clue struct {
	ID             int64
	QuestID        int64
	SequenceNumber int
	Text           string
	Target         geo.Point
	Type           ClueType
	PuzzleData     string
	Hint           string
}

type Team struct {
	ID             string
	Name           string
	LeaderPlayerID string
	MemberIDs      []string
	CreatedAt      time.Time
}

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Rank orders statuses along the only allowed direction of travel.
func (s Status) Rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Rank() >= 0 && next.Rank() > s.Rank()
}

type QuestProgress struct {
	QuestID         int64
	TeamID          string
	Status          Status
	LastCompletedBy string
	UpdatedAt       time.Time
}

// NotStarted is the progress implied by a missing row.
func NotStarted(questID int64, teamID string) QuestProgress {
	return QuestProgress{QuestID: questID, TeamID: teamID, Status: StatusNotStarted}
}

type ClueProgress struct {
	ClueID       int64
	TeamID       string
	Discovered   bool
	DiscoveredBy string
	DiscoveredAt time.Time
}

const DefaultStamina = 100

type PlayerProfile struct {
	FirebaseUID  string
	Username     string
	TeamID       string
	IndividualXP int
	Stamina      int
	Coins        int
	CreatedAt    time.Time
}

type CreditKind string

const (
	CreditXP        CreditKind = "xp"
	CreditCoins     CreditKind = "coins"
	CreditTeamBonus CreditKind = "team_bonus"
)

// PendingCredit is a reward that could not be applied after its triggering
// transition was already durable. It is replayed by reconciliation.
type PendingCredit struct {
	ID        int64
	Kind      CreditKind
	PlayerID  string
	TeamID    string
	QuestID   int64
	Amount    int
	EventKey  string
	Attempts  int
	LastError string
	CreatedAt time.Time
}
