package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"

	_ "github.com/tursodatabase/go-libsql"
)

// connPragmas are applied to every new connection. busy_timeout and
// foreign_keys are per connection; journal_mode sticks to the file.
var connPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open creates a SQLite handle via libSQL.
//
// The pool holds a single connection. SQLite admits one writer at a time,
// and a second pooled connection upgrading a read transaction fails with
// SQLITE_BUSY instead of waiting; with one connection callers queue in the
// pool. ":memory:" databases exist per connection and need the same pin.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path

	// sql.Open does not connect; it is only used to reach the driver.
	probe, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	drv := probe.Driver()
	probe.Close()

	db := sql.OpenDB(&pragmaConnector{drv: drv, dsn: dsn, pragmas: connPragmas})
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// pragmaConnector opens driver connections and runs pragmas on each before
// the pool hands it out.
type pragmaConnector struct {
	drv     driver.Driver
	dsn     string
	pragmas []string
}

func (c *pragmaConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	for _, p := range c.pragmas {
		if err := runPragma(ctx, conn, p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
	}
	return conn, nil
}

func (c *pragmaConnector) Driver() driver.Driver { return c.drv }

// runPragma queries rather than execs: libSQL rejects Exec for PRAGMAs
// that return rows, and draining handles those that return none.
func runPragma(ctx context.Context, conn driver.Conn, pragma string) error {
	var (
		rows driver.Rows
		err  error
	)
	if q, ok := conn.(driver.QueryerContext); ok {
		rows, err = q.QueryContext(ctx, pragma, nil)
	} else {
		var stmt driver.Stmt
		if stmt, err = conn.Prepare(pragma); err != nil {
			return err
		}
		defer stmt.Close()
		rows, err = stmt.Query(nil)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	dest := make([]driver.Value, len(rows.Columns()))
	for {
		if err := rows.Next(dest); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
	}
}
