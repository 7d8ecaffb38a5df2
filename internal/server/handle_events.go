package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleTeamEvents streams discoveries and completions for one team as
// server-sent events. Only members may subscribe.
func handleTeamEvents(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamID")
		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			writeError(w, http.StatusBadRequest, "player query parameter is required")
			return
		}

		if _, err := store.GetTeam(r.Context(), teamID); err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		member, err := store.IsTeamMember(r.Context(), teamID, playerID)
		if err != nil {
			writeDomainError(w, logger, r, err)
			return
		}
		if !member {
			writeError(w, http.StatusForbidden, "player is not a member of the team")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		ch := broker.Subscribe(teamID)
		defer broker.Unsubscribe(teamID, ch)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
