package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/questhunt/internal/engine"
)

func addRoutes(r chi.Router, opts Options, logger *slog.Logger, store Store, eng *engine.Engine, broker *Broker) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("QuestHunt API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, opts.Checks))

	r.Route("/api", func(r chi.Router) {
		r.Post("/clue-events", handleClueEvent(logger, store, eng, broker))

		r.Get("/quests/{questID}/progress", handleQuestProgress(logger, eng))
		r.Get("/quests/{questID}/next", handleNextClue(logger, eng))
		r.Get("/clues/{clueID}/puzzle", handlePuzzle(logger, store))

		r.Post("/teams", handleCreateTeam(logger, store))
		r.Get("/teams/{teamID}", handleGetTeam(logger, store))
		r.Get("/teams/{teamID}/quests", handleTeamQuests(logger, store, eng.ActiveQuests))
		r.Get("/teams/{teamID}/quests/completed", handleTeamQuests(logger, store, eng.CompletedQuests))
		r.Get("/teams/{teamID}/events", handleTeamEvents(logger, store, broker))
		r.Post("/teams/{teamID}/members", handleAddMember(logger, store))
		r.Delete("/teams/{teamID}/members/{playerID}", handleRemoveMember(logger, store))

		r.Post("/players", handleCreatePlayer(logger, store))
		r.Get("/players/{playerID}", handleGetPlayer(logger, store))
		r.Post("/players/{playerID}/search", handleSearch(logger, store))

		if opts.AdminTokenHash == "" {
			logger.Warn("ADMIN_TOKEN_HASH not set, admin routes disabled")
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuthMiddleware(opts.AdminTokenHash))
			r.Post("/quests", handleImportContent(logger, store))
			r.Delete("/quests/{questID}", handleAbandonQuest(logger, store))
			r.Get("/teams", handleListTeams(logger, store))
			r.Delete("/teams/{teamID}", handleDeleteTeam(logger, store))
			r.Post("/reconcile", handleReconcile(logger, eng, opts.ReconcileBatch))
		})
	})
}
