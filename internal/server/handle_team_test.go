package server

import (
	"net/http"
	"testing"
)

func TestTeamLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/teams", CreateTeamRequest{Name: "Vicunas", LeaderID: "caro"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	team := decodeBody[TeamResponse](t, rec)
	if team.LeaderID != "caro" || len(team.Members) != 1 {
		t.Fatalf("created = %+v", team)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate name", http.MethodPost, "/api/teams", CreateTeamRequest{Name: "Vicunas", LeaderID: "ana"}, http.StatusConflict},
		{"leader already on a team", http.MethodPost, "/api/teams", CreateTeamRequest{Name: "Pumas", LeaderID: "ana"}, http.StatusConflict},
		{"unknown leader", http.MethodPost, "/api/teams", CreateTeamRequest{Name: "Pumas", LeaderID: "zed"}, http.StatusNotFound},
		{"missing name", http.MethodPost, "/api/teams", CreateTeamRequest{LeaderID: "caro"}, http.StatusBadRequest},
		{"unknown team", http.MethodGet, "/api/teams/nope", nil, http.StatusNotFound},
		{"add member of another team", http.MethodPost, "/api/teams/" + team.ID + "/members", AddMemberRequest{PlayerID: "beto"}, http.StatusConflict},
		{"remove non-member", http.MethodDelete, "/api/teams/" + team.ID + "/members/ana", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	// Leader leaves, beto takes over.
	rec = env.do(t, http.MethodDelete, "/api/teams/"+env.team.ID+"/members/ana", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d: %s", rec.Code, rec.Body)
	}
	got := decodeBody[TeamResponse](t, env.do(t, http.MethodGet, "/api/teams/"+env.team.ID, nil))
	if got.LeaderID != "beto" || len(got.Members) != 1 {
		t.Fatalf("after leader left = %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/teams/"+team.ID+"/members", AddMemberRequest{PlayerID: "ana"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body)
	}
	got = decodeBody[TeamResponse](t, rec)
	if len(got.Members) != 2 || got.Members[1] != "ana" {
		t.Errorf("members = %v", got.Members)
	}
}
