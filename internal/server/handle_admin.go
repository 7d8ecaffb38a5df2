package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/questhunt/internal/content"
	"github.com/playperu/questhunt/internal/engine"
)

type ImportResponse struct {
	QuestIDs []int64  `json:"questIds"`
	Players  int      `json:"players"`
	TeamIDs  []string `json:"teamIds"`
}

type ReconcileResponse struct {
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
	Parked    int `json:"parked"`
}

func handleImportContent(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		doc, err := content.DecodeJSON(r.Body)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}

		res, err := content.Import(r.Context(), store, doc)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}

		resp := ImportResponse{QuestIDs: []int64{}, Players: res.Players, TeamIDs: []string{}}
		for _, q := range res.Quests {
			resp.QuestIDs = append(resp.QuestIDs, q.ID)
		}
		for _, t := range res.Teams {
			resp.TeamIDs = append(resp.TeamIDs, t.ID)
		}
		logger.Info("content imported", "quests", len(resp.QuestIDs), "players", resp.Players, "teams", len(resp.TeamIDs))
		writeJSON(w, http.StatusCreated, resp)
	}
}

// handleAbandonQuest deletes a quest together with every team's progress on it.
func handleAbandonQuest(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questID, ok := idParam(r, "questID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid quest id")
			return
		}
		if err := store.DeleteQuest(r.Context(), questID); err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		logger.Info("quest abandoned", "quest_id", questID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListTeams(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := store.ListTeams(r.Context())
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		resp := make([]TeamResponse, 0, len(teams))
		for _, t := range teams {
			resp = append(resp, newTeamResponse(t))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleDeleteTeam disbands a team and drops its quest progress. Players
// keep their rewards.
func handleDeleteTeam(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamID")
		if err := store.DeleteTeam(r.Context(), teamID); err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		logger.Info("team deleted", "team_id", teamID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReconcile(logger *slog.Logger, eng *engine.Engine, batch int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := eng.Reconcile(r.Context(), batch)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ReconcileResponse{
			Attempted: report.Attempted,
			Resolved:  report.Resolved,
			Failed:    report.Failed,
			Parked:    report.Parked,
		})
	}
}
