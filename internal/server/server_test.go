package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/questhunt/internal/content"
	"github.com/playperu/questhunt/internal/database"
	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/migrations"
	"github.com/playperu/questhunt/internal/quest"
	"github.com/playperu/questhunt/internal/store"
)

const adminToken = "s3cret-admin"

const fixtureDoc = `{
  "players": [
    {"id": "ana", "username": "ana"},
    {"id": "beto", "username": "beto"},
    {"id": "caro", "username": "caro"}
  ],
  "teams": [
    {"name": "Condores", "leader": "ana", "members": ["beto"]}
  ],
  "quests": [
    {
      "title": "Plaza Mayor",
      "difficulty": 2,
      "rewardPoints": 10,
      "type": "EXPLORE",
      "clues": [
        {"sequence": 1, "type": "LOCATION", "text": "Find the fountain", "target": {"lat": 0, "lng": 0}},
        {"sequence": 2, "type": "PUZZLE_MATH_SIMPLE", "text": "Count", "target": {"lat": 0, "lng": 0}, "puzzleData": "5|ADD|3|8"}
      ]
    }
  ]
}`

type testEnv struct {
	router http.Handler
	store  *store.SQLiteStore
	quest  quest.Quest
	team   quest.Team
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.NewSQLiteStore(db)

	doc, err := content.DecodeJSON(strings.NewReader(fixtureDoc))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	res, err := content.Import(ctx, st, doc)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(st, st, st, st, logger, engine.DefaultConfig())
	opts := Options{
		AdminTokenHash: string(hash),
		ReconcileBatch: 50,
		Checks: map[string]Checker{
			"sqlite": CheckerFunc(db.PingContext),
		},
	}
	return &testEnv{
		router: newRouter(opts, logger, st, eng),
		store:  st,
		quest:  res.Quests[0],
		team:   res.Teams[0],
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func ptr[T any](v T) *T { return &v }
