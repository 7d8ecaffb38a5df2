package server

import (
	"encoding/json"
	"sync"
)

const (
	eventClueDiscovered = "clue_discovered"
	eventQuestCompleted = "quest_completed"
)

// TeamEvent is the payload streamed to a team's subscribers.
type TeamEvent struct {
	Type     string `json:"type"`
	QuestID  int64  `json:"questId"`
	ClueID   int64  `json:"clueId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// Broker is an in-process pub/sub for team events, keyed by team ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

func (b *Broker) Subscribe(teamID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[teamID] == nil {
		b.subs[teamID] = make(map[chan []byte]struct{})
	}
	b.subs[teamID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(teamID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[teamID], ch)
	if len(b.subs[teamID]) == 0 {
		delete(b.subs, teamID)
	}
	b.mu.Unlock()
}

// Publish sends ev to every subscriber of teamID. Slow subscribers miss
// events; the progress endpoint is the source of truth.
func (b *Broker) Publish(teamID string, ev TeamEvent) {
	data, _ := json.Marshal(ev)
	b.mu.RLock()
	for ch := range b.subs[teamID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}
