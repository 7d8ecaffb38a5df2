package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/questhunt/internal/content"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type questPathParams struct {
	QuestID int64  `path:"questID"`
	Team    string `query:"team" required:"true"`
}

type cluePathParams struct {
	ClueID int64 `path:"clueID"`
}

type teamPathParams struct {
	TeamID string `path:"teamID"`
}

type teamEventsParams struct {
	TeamID string `path:"teamID"`
	Player string `query:"player" required:"true"`
}

type addMemberParams struct {
	TeamID   string `path:"teamID"`
	PlayerID string `json:"playerId"`
}

type memberPathParams struct {
	TeamID   string `path:"teamID"`
	PlayerID string `path:"playerID"`
}

type playerPathParams struct {
	PlayerID string `path:"playerID"`
}

type adminQuestPathParams struct {
	QuestID int64 `path:"questID"`
}

type adminTeamPathParams struct {
	TeamID string `path:"teamID"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	ok                                 any
	okStatus                           int
	errors                             []int
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "QuestHunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Quest and clue progress for team scavenger hunts.")

	ops := []operation{
		{http.MethodGet, "/healthz", "Health check",
			"Returns the status of backend dependencies.",
			nil, HealthResponse{}, http.StatusOK, []int{http.StatusServiceUnavailable}},
		{http.MethodPost, "/api/clue-events", "Report a clue event",
			"Reports that a player satisfied a clue, by position for location clues or by answer for puzzle clues. Replays are idempotent.",
			ClueEventRequest{}, ClueEventResponse{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity}},
		{http.MethodGet, "/api/quests/{questID}/progress", "Quest progress",
			"Returns one consistent snapshot of a team's progress on a quest.",
			questPathParams{}, QuestProgressResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodGet, "/api/quests/{questID}/next", "Next clue",
			"Returns the undiscovered clue with the lowest sequence number.",
			questPathParams{}, NextClueResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodGet, "/api/clues/{clueID}/puzzle", "Puzzle prompt",
			"Returns the question of a puzzle clue. The answer is never exposed.",
			cluePathParams{}, PuzzleResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPost, "/api/teams", "Create team",
			"Creates a team; the leader becomes its first member.",
			CreateTeamRequest{}, TeamResponse{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
		{http.MethodGet, "/api/teams/{teamID}", "Get team",
			"Returns a team with its members.",
			teamPathParams{}, TeamResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodGet, "/api/teams/{teamID}/quests", "Active quests",
			"Lists the quests the team has not completed, with discovered and total clue counts.",
			teamPathParams{}, []QuestSummaryResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodGet, "/api/teams/{teamID}/quests/completed", "Completed quests",
			"Lists the quests the team has completed, with who completed them and when.",
			teamPathParams{}, []QuestSummaryResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodGet, "/api/teams/{teamID}/events", "Team events",
			"Streams the team's discoveries and completions as server-sent events. Each data line is one event.",
			teamEventsParams{}, TeamEvent{}, http.StatusOK,
			[]int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/api/teams/{teamID}/members", "Add member",
			"Adds a player to the team. A player can be on one team only.",
			addMemberParams{}, TeamResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
		{http.MethodDelete, "/api/teams/{teamID}/members/{playerID}", "Remove member",
			"Removes a player. Leadership passes on; an empty team is deleted.",
			memberPathParams{}, nil, http.StatusNoContent, []int{http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/api/players", "Create player",
			"Creates a player profile with full stamina.",
			CreatePlayerRequest{}, PlayerResponse{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusConflict}},
		{http.MethodGet, "/api/players/{playerID}", "Get player",
			"Returns a player profile.",
			playerPathParams{}, PlayerResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPost, "/api/players/{playerID}/search", "Search",
			"Spends stamina to find a few coins.",
			playerPathParams{}, PlayerResponse{}, http.StatusOK, []int{http.StatusNotFound, http.StatusUnprocessableEntity}},
		{http.MethodPost, "/api/admin/quests", "Import content",
			"Imports quests, players and teams from a content document. Requires the admin bearer token.",
			content.Document{}, ImportResponse{}, http.StatusCreated,
			[]int{http.StatusUnauthorized, http.StatusConflict, http.StatusUnprocessableEntity}},
		{http.MethodDelete, "/api/admin/quests/{questID}", "Abandon quest",
			"Deletes a quest with its clues and all team progress. Requires the admin bearer token.",
			adminQuestPathParams{}, nil, http.StatusNoContent, []int{http.StatusUnauthorized, http.StatusNotFound}},
		{http.MethodGet, "/api/admin/teams", "List teams",
			"Lists every team with its members. Requires the admin bearer token.",
			nil, []TeamResponse{}, http.StatusOK, []int{http.StatusUnauthorized}},
		{http.MethodDelete, "/api/admin/teams/{teamID}", "Delete team",
			"Disbands a team and deletes its quest progress. Earned rewards stay with the players. Requires the admin bearer token.",
			adminTeamPathParams{}, nil, http.StatusNoContent, []int{http.StatusUnauthorized, http.StatusNotFound}},
		{http.MethodPost, "/api/admin/reconcile", "Reconcile rewards",
			"Replays reward credits that failed after their progress was saved. Credits that cannot succeed are parked. Requires the admin bearer token.",
			nil, ReconcileResponse{}, http.StatusOK, []int{http.StatusUnauthorized}},
	}

	for _, op := range ops {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddRespStructure(op.ok, openapi.WithHTTPStatus(op.okStatus))
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
