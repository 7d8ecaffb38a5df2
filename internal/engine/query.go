package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/playperu/questhunt/internal/quest"
)

type ClueState struct {
	Clue         quest.Clue
	Discovered   bool
	DiscoveredBy string
	DiscoveredAt time.Time
}

// Snapshot is a read-only view of a quest for one team, taken from a
// single consistent read.
type Snapshot struct {
	Quest      quest.Quest
	Progress   quest.QuestProgress
	Clues      []ClueState
	Discovered int
	// CompletionPending is set when every clue is discovered but the
	// completion transition has not committed yet. It clears once the
	// cascade finishes.
	CompletionPending bool
}

// Next returns the undiscovered clue with the lowest sequence number.
func (s Snapshot) Next() (quest.Clue, bool) {
	for _, c := range s.Clues {
		if !c.Discovered {
			return c.Clue, true
		}
	}
	return quest.Clue{}, false
}

func (e *Engine) QuestSnapshot(ctx context.Context, questID int64, teamID string) (Snapshot, error) {
	st, err := e.store.LoadQuestState(ctx, questID, teamID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading quest %d state: %w", questID, err)
	}
	return buildSnapshot(st), nil
}

func buildSnapshot(st QuestState) Snapshot {
	byClue := make(map[int64]quest.ClueProgress, len(st.ClueProgress))
	for _, cp := range st.ClueProgress {
		byClue[cp.ClueID] = cp
	}

	clues := append([]quest.Clue(nil), st.Clues...)
	sort.Slice(clues, func(i, j int) bool { return clues[i].SequenceNumber < clues[j].SequenceNumber })

	snap := Snapshot{
		Quest:    st.Quest,
		Progress: st.Progress,
		Clues:    make([]ClueState, 0, len(clues)),
	}
	for _, c := range clues {
		cp := byClue[c.ID]
		snap.Clues = append(snap.Clues, ClueState{
			Clue:         c,
			Discovered:   cp.Discovered,
			DiscoveredBy: cp.DiscoveredBy,
			DiscoveredAt: cp.DiscoveredAt,
		})
		if cp.Discovered {
			snap.Discovered++
		}
	}
	snap.CompletionPending = len(clues) > 0 &&
		snap.Discovered == len(clues) &&
		st.Progress.Status != quest.StatusCompleted
	return snap
}

// NextUndiscoveredClue returns the clue the team should look for next. ok
// is false when every clue is discovered or the quest has none.
func (e *Engine) NextUndiscoveredClue(ctx context.Context, questID int64, teamID string) (quest.Clue, bool, error) {
	snap, err := e.QuestSnapshot(ctx, questID, teamID)
	if err != nil {
		return quest.Clue{}, false, err
	}
	c, ok := snap.Next()
	return c, ok, nil
}

type QuestSummary struct {
	Quest      quest.Quest
	Status     quest.Status
	Discovered int
	Total      int
	// CompletedBy and CompletedAt are set for completed quests only.
	CompletedBy string
	CompletedAt time.Time
}

// ActiveQuests lists the quests the team has not completed yet, in
// creation order.
func (e *Engine) ActiveQuests(ctx context.Context, teamID string) ([]QuestSummary, error) {
	return e.summaries(ctx, teamID, func(s quest.Status) bool { return s != quest.StatusCompleted })
}

// CompletedQuests lists the quests the team has completed, in creation
// order.
func (e *Engine) CompletedQuests(ctx context.Context, teamID string) ([]QuestSummary, error) {
	return e.summaries(ctx, teamID, func(s quest.Status) bool { return s == quest.StatusCompleted })
}

func (e *Engine) summaries(ctx context.Context, teamID string, keep func(quest.Status) bool) ([]QuestSummary, error) {
	quests, err := e.store.ListQuests(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing quests: %w", err)
	}
	progress, err := e.store.ListQuestProgress(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing quest progress: %w", err)
	}
	byQuest := make(map[int64]quest.QuestProgress, len(progress))
	for _, p := range progress {
		byQuest[p.QuestID] = p
	}

	var out []QuestSummary
	for _, q := range quests {
		p, ok := byQuest[q.ID]
		if !ok {
			p = quest.NotStarted(q.ID, teamID)
		}
		if !keep(p.Status) {
			continue
		}
		sum := QuestSummary{Quest: q, Status: p.Status, Total: len(q.ClueIDs)}
		switch p.Status {
		case quest.StatusCompleted:
			// Completion requires every clue, and clues are never removed.
			sum.Discovered = sum.Total
			sum.CompletedBy = p.LastCompletedBy
			sum.CompletedAt = p.UpdatedAt
		case quest.StatusInProgress:
			rows, err := e.store.ListClueProgress(ctx, q.ID, teamID)
			if err != nil {
				return nil, fmt.Errorf("listing clue progress for quest %d: %w", q.ID, err)
			}
			for _, r := range rows {
				if r.Discovered {
					sum.Discovered++
				}
			}
		}
		out = append(out, sum)
	}
	return out, nil
}
