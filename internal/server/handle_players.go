package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/questhunt/internal/quest"
)

type CreatePlayerRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type PlayerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	TeamID   string `json:"teamId,omitempty"`
	XP       int    `json:"xp"`
	Stamina  int    `json:"stamina"`
	Coins    int    `json:"coins"`
}

func newPlayerResponse(p quest.PlayerProfile) PlayerResponse {
	return PlayerResponse{
		ID:       p.FirebaseUID,
		Username: p.Username,
		TeamID:   p.TeamID,
		XP:       p.IndividualXP,
		Stamina:  p.Stamina,
		Coins:    p.Coins,
	}
}

func handleCreatePlayer(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePlayerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.ID = strings.TrimSpace(req.ID)
		req.Username = strings.TrimSpace(req.Username)
		if req.ID == "" || req.Username == "" {
			writeError(w, http.StatusBadRequest, "id and username are required")
			return
		}

		p, err := store.CreatePlayer(r.Context(), req.ID, req.Username)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newPlayerResponse(p))
	}
}

func handleGetPlayer(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.GetPlayer(r.Context(), chi.URLParam(r, "playerID"))
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPlayerResponse(p))
	}
}

func handleSearch(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.Search(r.Context(), chi.URLParam(r, "playerID"))
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPlayerResponse(p))
	}
}
