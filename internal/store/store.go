// Package store persists quests, progress, teams and player profiles in
// SQLite through libSQL. SQLiteStore implements every collaborator the
// engine needs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/quest"
)

var (
	_ engine.ProgressStore  = (*SQLiteStore)(nil)
	_ engine.RewardLedger   = (*SQLiteStore)(nil)
	_ engine.TeamDirectory  = (*SQLiteStore)(nil)
	_ engine.PendingCredits = (*SQLiteStore)(nil)
)

const timeLayout = "2006-01-02T15:04:05.000Z"

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore expects a database migrated with internal/migrations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapErr turns SQLite lock contention into quest.ErrStorageConflict so the
// engine can retry it.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", quest.ErrStorageConflict, err)
	}
	return err
}

func isUnique(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

func isForeignKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// withTx runs fn inside a transaction and commits if fn succeeds.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return mapErr(err)
}
