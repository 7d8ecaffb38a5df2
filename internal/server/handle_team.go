package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/questhunt/internal/quest"
)

type CreateTeamRequest struct {
	Name     string `json:"name"`
	LeaderID string `json:"leaderId"`
}

type AddMemberRequest struct {
	PlayerID string `json:"playerId"`
}

type TeamResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LeaderID  string    `json:"leaderId"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

func newTeamResponse(t quest.Team) TeamResponse {
	members := t.MemberIDs
	if members == nil {
		members = []string{}
	}
	return TeamResponse{
		ID:        t.ID,
		Name:      t.Name,
		LeaderID:  t.LeaderPlayerID,
		Members:   members,
		CreatedAt: t.CreatedAt,
	}
}

func handleCreateTeam(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.LeaderID = strings.TrimSpace(req.LeaderID)
		if req.Name == "" || req.LeaderID == "" {
			writeError(w, http.StatusBadRequest, "name and leaderId are required")
			return
		}

		team, err := store.CreateTeam(r.Context(), req.Name, req.LeaderID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		logger.Info("team created", "team_id", team.ID, "name", team.Name, "leader_id", team.LeaderPlayerID)
		writeJSON(w, http.StatusCreated, newTeamResponse(team))
	}
}

func handleGetTeam(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := store.GetTeam(r.Context(), chi.URLParam(r, "teamID"))
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTeamResponse(team))
	}
}

func handleAddMember(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddMemberRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PlayerID = strings.TrimSpace(req.PlayerID)
		if req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}

		teamID := chi.URLParam(r, "teamID")
		if err := store.AddTeamMember(r.Context(), teamID, req.PlayerID); err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		team, err := store.GetTeam(r.Context(), teamID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTeamResponse(team))
	}
}

func handleRemoveMember(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamID")
		playerID := chi.URLParam(r, "playerID")
		if err := store.RemoveTeamMember(r.Context(), teamID, playerID); err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
