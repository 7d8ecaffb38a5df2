package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/puzzle"
	"github.com/playperu/questhunt/internal/quest"
)

type ClueProgressView struct {
	ClueView
	Discovered   bool       `json:"discovered"`
	DiscoveredBy string     `json:"discoveredBy,omitempty"`
	DiscoveredAt *time.Time `json:"discoveredAt,omitempty"`
}

type QuestProgressResponse struct {
	QuestID           int64              `json:"questId"`
	Title             string             `json:"title"`
	TeamID            string             `json:"teamId"`
	Status            quest.Status       `json:"status"`
	LastCompletedBy   string             `json:"lastCompletedBy,omitempty"`
	Discovered        int                `json:"discovered"`
	Total             int                `json:"total"`
	CompletionPending bool               `json:"completionPending"`
	Clues             []ClueProgressView `json:"clues"`
}

type NextClueResponse struct {
	Complete bool      `json:"complete"`
	Clue     *ClueView `json:"clue,omitempty"`
}

type PuzzleResponse struct {
	ClueID int64          `json:"clueId"`
	Type   quest.ClueType `json:"type"`
	Prompt string         `json:"prompt"`
}

type QuestSummaryResponse struct {
	QuestID      int64           `json:"questId"`
	Title        string          `json:"title"`
	Type         quest.QuestType `json:"type"`
	Difficulty   int             `json:"difficulty"`
	RewardPoints int             `json:"rewardPoints"`
	Status       quest.Status    `json:"status"`
	Discovered   int             `json:"discovered"`
	Total        int             `json:"total"`
	CompletedBy  string          `json:"completedBy,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

func newQuestSummaryResponse(s engine.QuestSummary) QuestSummaryResponse {
	resp := QuestSummaryResponse{
		QuestID:      s.Quest.ID,
		Title:        s.Quest.Title,
		Type:         s.Quest.Type,
		Difficulty:   s.Quest.Difficulty,
		RewardPoints: s.Quest.RewardPoints,
		Status:       s.Status,
		Discovered:   s.Discovered,
		Total:        s.Total,
		CompletedBy:  s.CompletedBy,
	}
	if !s.CompletedAt.IsZero() {
		at := s.CompletedAt
		resp.CompletedAt = &at
	}
	return resp
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func handleQuestProgress(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questID, ok := idParam(r, "questID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid quest id")
			return
		}
		teamID := r.URL.Query().Get("team")
		if teamID == "" {
			writeError(w, http.StatusBadRequest, "team query parameter is required")
			return
		}

		snap, err := eng.QuestSnapshot(r.Context(), questID, teamID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}

		resp := QuestProgressResponse{
			QuestID:           snap.Quest.ID,
			Title:             snap.Quest.Title,
			TeamID:            teamID,
			Status:            snap.Progress.Status,
			LastCompletedBy:   snap.Progress.LastCompletedBy,
			Discovered:        snap.Discovered,
			Total:             len(snap.Clues),
			CompletionPending: snap.CompletionPending,
			Clues:             make([]ClueProgressView, 0, len(snap.Clues)),
		}
		next, hasNext := snap.Next()
		for _, cs := range snap.Clues {
			v := ClueProgressView{
				ClueView:     *newClueView(cs.Clue),
				Discovered:   cs.Discovered,
				DiscoveredBy: cs.DiscoveredBy,
			}
			if cs.Discovered {
				at := cs.DiscoveredAt
				v.DiscoveredAt = &at
			} else if !hasNext || cs.Clue.ID != next.ID {
				// Clues past the next one stay hidden.
				v.Text, v.Hint, v.Target = "", "", nil
			}
			resp.Clues = append(resp.Clues, v)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleNextClue(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questID, ok := idParam(r, "questID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid quest id")
			return
		}
		teamID := r.URL.Query().Get("team")
		if teamID == "" {
			writeError(w, http.StatusBadRequest, "team query parameter is required")
			return
		}

		clue, found, err := eng.NextUndiscoveredClue(r.Context(), questID, teamID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		if !found {
			writeJSON(w, http.StatusOK, NextClueResponse{Complete: true})
			return
		}
		writeJSON(w, http.StatusOK, NextClueResponse{Clue: newClueView(clue)})
	}
}

func handlePuzzle(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clueID, ok := idParam(r, "clueID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid clue id")
			return
		}
		clue, err := store.GetClue(r.Context(), clueID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		if !clue.Type.IsPuzzle() {
			writeError(w, http.StatusNotFound, "clue has no puzzle")
			return
		}
		p, err := puzzle.Parse(clue.Type, clue.PuzzleData)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, PuzzleResponse{ClueID: clue.ID, Type: clue.Type, Prompt: p.Prompt})
	}
}

// handleTeamQuests serves one of the engine's per-team quest listings.
func handleTeamQuests(logger *slog.Logger, store Store, list func(context.Context, string) ([]engine.QuestSummary, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamID")
		if _, err := store.GetTeam(r.Context(), teamID); err != nil {
			writeDomainError(w, logger, r, err)
			return
		}

		quests, err := list(r.Context(), teamID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		resp := make([]QuestSummaryResponse, 0, len(quests))
		for _, q := range quests {
			resp = append(resp, newQuestSummaryResponse(q))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
