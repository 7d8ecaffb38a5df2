package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/geo"
	"github.com/playperu/questhunt/internal/puzzle"
	"github.com/playperu/questhunt/internal/quest"
)

type ClueEventRequest struct {
	ClueID   int64    `json:"clueId"`
	PlayerID string   `json:"playerId"`
	TeamID   string   `json:"teamId"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Answer   *string  `json:"answer,omitempty"`
}

type ClueEventResponse struct {
	Correct           bool      `json:"correct"`
	AlreadyDiscovered bool      `json:"alreadyDiscovered"`
	QuestNowComplete  bool      `json:"questNowComplete"`
	QuestID           int64     `json:"questId"`
	XPAwarded         int       `json:"xpAwarded"`
	RewardDeferred    bool      `json:"rewardDeferred,omitempty"`
	NextClue          *ClueView `json:"nextClue,omitempty"`
}

type ClueView struct {
	ID       int64          `json:"id"`
	Sequence int            `json:"sequence"`
	Type     quest.ClueType `json:"type"`
	Text     string         `json:"text,omitempty"`
	Target   *geo.Point     `json:"target,omitempty"`
	Hint     string         `json:"hint,omitempty"`
}

func newClueView(c quest.Clue) *ClueView {
	v := &ClueView{
		ID:       c.ID,
		Sequence: c.SequenceNumber,
		Type:     c.Type,
		Text:     c.Text,
		Hint:     c.Hint,
	}
	if c.Type == quest.ClueTypeLocation {
		t := c.Target
		v.Target = &t
	}
	return v
}

func handleClueEvent(logger *slog.Logger, store Store, eng *engine.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClueEventRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PlayerID = strings.TrimSpace(req.PlayerID)
		req.TeamID = strings.TrimSpace(req.TeamID)
		if req.ClueID <= 0 || req.PlayerID == "" || req.TeamID == "" {
			writeError(w, http.StatusBadRequest, "clueId, playerId and teamId are required")
			return
		}

		ctx := r.Context()
		member, err := store.IsTeamMember(ctx, req.TeamID, req.PlayerID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		if !member {
			if _, err := store.GetTeam(ctx, req.TeamID); err != nil {
				writeDomainError(w, logger, r, err)
				return
			}
			writeError(w, http.StatusForbidden, quest.ErrNotTeamMember.Error())
			return
		}

		clue, err := store.GetClue(ctx, req.ClueID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}

		// A clue the team already found is acknowledged whatever the answer.
		cp, found, err := store.GetClueProgress(ctx, clue.ID, req.TeamID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		discovered := found && cp.Discovered

		var ev engine.Evidence
		if clue.Type.IsPuzzle() {
			if req.Answer == nil {
				writeError(w, http.StatusBadRequest, "answer is required for puzzle clues")
				return
			}
			correct, err := puzzle.CheckAnswer(clue.Type, clue.PuzzleData, *req.Answer)
			if err != nil {
				writeDomainError(w, logger, r, err)
				return
			}
			if !correct && !discovered {
				writeJSON(w, http.StatusOK, ClueEventResponse{QuestID: clue.QuestID})
				return
			}
			ev = engine.PuzzleSolved()
		} else {
			if req.Lat == nil || req.Lng == nil {
				writeError(w, http.StatusBadRequest, "lat and lng are required for location clues")
				return
			}
			ev = engine.Proximity(geo.Point{Lat: *req.Lat, Lng: *req.Lng})
		}

		res, err := eng.ReportClueEvent(ctx, req.ClueID, req.PlayerID, req.TeamID, ev)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		if !res.AlreadyDiscovered {
			broker.Publish(req.TeamID, TeamEvent{
				Type: eventClueDiscovered, QuestID: res.QuestID, ClueID: res.ClueID, PlayerID: req.PlayerID,
			})
			if res.QuestNowComplete {
				broker.Publish(req.TeamID, TeamEvent{
					Type: eventQuestCompleted, QuestID: res.QuestID, PlayerID: req.PlayerID,
				})
			}
		}
		if res.RewardErr != nil {
			logger.Warn("clue discovered but reward deferred",
				"clue_id", res.ClueID, "player_id", req.PlayerID, "error", res.RewardErr)
		}
		if res.CompletionErr != nil {
			logger.Warn("clue discovered but quest evaluation deferred",
				"clue_id", res.ClueID, "team_id", req.TeamID, "error", res.CompletionErr)
		}

		resp := ClueEventResponse{
			Correct:           true,
			AlreadyDiscovered: res.AlreadyDiscovered,
			QuestNowComplete:  res.QuestNowComplete,
			QuestID:           res.QuestID,
			XPAwarded:         res.XPAwarded,
			RewardDeferred:    res.RewardErr != nil,
		}
		if !res.QuestNowComplete {
			next, ok, err := eng.NextUndiscoveredClue(ctx, res.QuestID, req.TeamID)
			if err != nil {
				writeDomainError(w, logger, r, err)
				return
			}
			if ok {
				resp.NextClue = newClueView(next)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
