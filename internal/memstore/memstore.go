// Package memstore is an in-memory implementation of the engine's
// collaborators: progress store, reward ledger, team directory and
// pending-credit log. One mutex guards everything, so each method is
// atomic with respect to the others.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/quest"
)

var (
	_ engine.ProgressStore  = (*Store)(nil)
	_ engine.RewardLedger   = (*Store)(nil)
	_ engine.TeamDirectory  = (*Store)(nil)
	_ engine.PendingCredits = (*Store)(nil)
)

type clueKey struct {
	clueID int64
	teamID string
}

type questKey struct {
	questID int64
	teamID  string
}

type creditKey struct {
	playerID string
	eventKey string
}

// Credit is one applied ledger entry.
type Credit struct {
	PlayerID string
	Kind     quest.CreditKind
	Amount   int
	EventKey string
}

type Store struct {
	mu sync.RWMutex

	quests      map[int64]quest.Quest
	clues       map[int64]quest.Clue
	nextQuestID int64
	nextClueID  int64

	teams    map[string]quest.Team
	profiles map[string]quest.PlayerProfile

	questProgress map[questKey]quest.QuestProgress
	clueProgress  map[clueKey]quest.ClueProgress

	applied map[creditKey]struct{}
	journal []Credit

	pending       map[int64]quest.PendingCredit
	parked        map[int64]quest.PendingCredit
	nextPendingID int64
}

func New() *Store {
	return &Store{
		quests:        make(map[int64]quest.Quest),
		clues:         make(map[int64]quest.Clue),
		teams:         make(map[string]quest.Team),
		profiles:      make(map[string]quest.PlayerProfile),
		questProgress: make(map[questKey]quest.QuestProgress),
		clueProgress:  make(map[clueKey]quest.ClueProgress),
		applied:       make(map[creditKey]struct{}),
		pending:       make(map[int64]quest.PendingCredit),
		parked:        make(map[int64]quest.PendingCredit),
	}
}

// AddQuest stores q and its clues, assigning IDs. Clue sequence numbers are
// taken as given.
func (s *Store) AddQuest(q quest.Quest, clues []quest.Clue) (quest.Quest, []quest.Clue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuestID++
	q.ID = s.nextQuestID
	q.ClueIDs = nil
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	out := make([]quest.Clue, len(clues))
	for i, c := range clues {
		s.nextClueID++
		c.ID = s.nextClueID
		c.QuestID = q.ID
		s.clues[c.ID] = c
		q.ClueIDs = append(q.ClueIDs, c.ID)
		out[i] = c
	}
	s.quests[q.ID] = q
	return q, out
}

// DeleteQuest removes a quest, its clues and all progress on them.
func (s *Store) DeleteQuest(questID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.clues {
		if c.QuestID == questID {
			delete(s.clues, id)
			for k := range s.clueProgress {
				if k.clueID == id {
					delete(s.clueProgress, k)
				}
			}
		}
	}
	for k := range s.questProgress {
		if k.questID == questID {
			delete(s.questProgress, k)
		}
	}
	delete(s.quests, questID)
}

func (s *Store) AddProfile(p quest.PlayerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.FirebaseUID] = p
}

func (s *Store) Profile(playerID string) (quest.PlayerProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[playerID]
	return p, ok
}

// AddTeam stores t; the leader is added to the members if missing.
func (s *Store) AddTeam(t quest.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.LeaderPlayerID != "" && !contains(t.MemberIDs, t.LeaderPlayerID) {
		t.MemberIDs = append([]string{t.LeaderPlayerID}, t.MemberIDs...)
	}
	s.teams[t.ID] = t
	for _, m := range t.MemberIDs {
		if p, ok := s.profiles[m]; ok {
			p.TeamID = t.ID
			s.profiles[m] = p
		}
	}
}

// Credits returns a copy of the ledger journal.
func (s *Store) Credits() []Credit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Credit(nil), s.journal...)
}

// Content

func (s *Store) GetClue(_ context.Context, clueID int64) (quest.Clue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clues[clueID]
	if !ok {
		return quest.Clue{}, quest.ErrClueNotFound
	}
	return c, nil
}

func (s *Store) GetQuest(_ context.Context, questID int64) (quest.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quests[questID]
	if !ok {
		return quest.Quest{}, quest.ErrQuestNotFound
	}
	return q, nil
}

func (s *Store) ListQuests(_ context.Context) ([]quest.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]quest.Quest, 0, len(s.quests))
	for _, q := range s.quests {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListCluesForQuest(_ context.Context, questID int64) ([]quest.Clue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cluesFor(questID), nil
}

func (s *Store) cluesFor(questID int64) []quest.Clue {
	var out []quest.Clue
	for _, c := range s.clues {
		if c.QuestID == questID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

// Progress

func (s *Store) GetClueProgress(_ context.Context, clueID int64, teamID string) (quest.ClueProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.clueProgress[clueKey{clueID, teamID}]
	return cp, ok, nil
}

func (s *Store) CASSetClueDiscovered(_ context.Context, clueID int64, teamID, playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clues[clueID]; !ok {
		return false, quest.ErrClueNotFound
	}
	k := clueKey{clueID, teamID}
	if cp, ok := s.clueProgress[k]; ok && cp.Discovered {
		return false, nil
	}
	s.clueProgress[k] = quest.ClueProgress{
		ClueID:       clueID,
		TeamID:       teamID,
		Discovered:   true,
		DiscoveredBy: playerID,
		DiscoveredAt: time.Now().UTC(),
	}
	return true, nil
}

func (s *Store) ListClueProgress(_ context.Context, questID int64, teamID string) ([]quest.ClueProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clueProgressFor(questID, teamID), nil
}

func (s *Store) clueProgressFor(questID int64, teamID string) []quest.ClueProgress {
	var out []quest.ClueProgress
	for _, c := range s.cluesFor(questID) {
		if cp, ok := s.clueProgress[clueKey{c.ID, teamID}]; ok {
			out = append(out, cp)
		}
	}
	return out
}

func (s *Store) GetQuestProgress(_ context.Context, questID int64, teamID string) (quest.QuestProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qp, ok := s.questProgress[questKey{questID, teamID}]
	return qp, ok, nil
}

func (s *Store) CASQuestStatus(_ context.Context, questID int64, teamID string, from, to quest.Status, playerID string) (bool, error) {
	if !from.CanAdvanceTo(to) {
		return false, fmt.Errorf("status %s cannot move to %s", from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quests[questID]; !ok {
		return false, quest.ErrQuestNotFound
	}
	k := questKey{questID, teamID}
	current, ok := s.questProgress[k]
	if !ok {
		current = quest.NotStarted(questID, teamID)
	}
	if current.Status != from {
		return false, nil
	}
	current.Status = to
	current.LastCompletedBy = playerID
	current.UpdatedAt = time.Now().UTC()
	s.questProgress[k] = current
	return true, nil
}

func (s *Store) ListQuestProgress(_ context.Context, teamID string) ([]quest.QuestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []quest.QuestProgress
	for k, qp := range s.questProgress {
		if k.teamID == teamID {
			out = append(out, qp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestID < out[j].QuestID })
	return out, nil
}

func (s *Store) LoadQuestState(_ context.Context, questID int64, teamID string) (engine.QuestState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quests[questID]
	if !ok {
		return engine.QuestState{}, quest.ErrQuestNotFound
	}
	qp, ok := s.questProgress[questKey{questID, teamID}]
	if !ok {
		qp = quest.NotStarted(questID, teamID)
	}
	return engine.QuestState{
		Quest:        q,
		Progress:     qp,
		Clues:        s.cluesFor(questID),
		ClueProgress: s.clueProgressFor(questID, teamID),
	}, nil
}

// Ledger

func (s *Store) CreditXP(_ context.Context, playerID string, amount int, eventKey string) error {
	return s.credit(playerID, quest.CreditXP, amount, eventKey)
}

func (s *Store) CreditCoins(_ context.Context, playerID string, amount int, eventKey string) error {
	return s.credit(playerID, quest.CreditCoins, amount, eventKey)
}

func (s *Store) credit(playerID string, kind quest.CreditKind, amount int, eventKey string) error {
	if amount < 0 {
		return fmt.Errorf("negative %s credit %d", kind, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[playerID]
	if !ok {
		return fmt.Errorf("player %s: %w", playerID, quest.ErrProfileNotFound)
	}
	k := creditKey{playerID, eventKey}
	if _, dup := s.applied[k]; dup {
		return nil
	}
	switch kind {
	case quest.CreditXP:
		p.IndividualXP += amount
	case quest.CreditCoins:
		p.Coins += amount
	}
	s.profiles[playerID] = p
	s.applied[k] = struct{}{}
	s.journal = append(s.journal, Credit{PlayerID: playerID, Kind: kind, Amount: amount, EventKey: eventKey})
	return nil
}

// Teams

func (s *Store) TeamMembers(_ context.Context, teamID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[teamID]
	if !ok {
		return nil, quest.ErrTeamNotFound
	}
	return append([]string(nil), t.MemberIDs...), nil
}

// Pending credits

func (s *Store) AddPendingCredit(_ context.Context, c quest.PendingCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPendingID++
	c.ID = s.nextPendingID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.pending[c.ID] = c
	return nil
}

func (s *Store) ListPendingCredits(_ context.Context, limit int) ([]quest.PendingCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]quest.PendingCredit, 0, len(s.pending))
	for _, c := range s.pending {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ResolvePendingCredit(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	return nil
}

func (s *Store) MarkPendingAttempt(_ context.Context, id int64, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.pending[id]
	if !ok {
		return nil
	}
	c.Attempts++
	c.LastError = lastErr
	s.pending[id] = c
	return nil
}

func (s *Store) ParkPendingCredit(_ context.Context, id int64, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.pending[id]
	if !ok {
		return nil
	}
	c.Attempts++
	c.LastError = lastErr
	delete(s.pending, id)
	s.parked[id] = c
	return nil
}

// Parked returns the credits reconciliation gave up on.
func (s *Store) Parked() []quest.PendingCredit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]quest.PendingCredit, 0, len(s.parked))
	for _, c := range s.parked {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
