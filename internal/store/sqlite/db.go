// Package sqlite is the reference store.Store adapter: a modernc.org/sqlite
// database migrated with golang-migrate. The core pipeline (spec.md §1)
// treats persistence as an external collaborator; this package exists so
// the pipeline is runnable end to end without a caller supplying their own
// store.Store.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a *sql.DB opened against a sqlite file, embedding the driver so
// callers can use database/sql directly where the Store interface doesn't
// already cover their need.
type DB struct {
	*sql.DB
}

// Open opens (creating if absent) the sqlite database at path and runs every
// pending migration.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // sqlite is single-writer; avoid pool contention
	db := &DB{conn}
	if err := db.MigrateUp(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// isSQLiteBusy reports whether err is a SQLITE_BUSY / "database is locked"
// error, the transient condition retryOnBusy retries around.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy retries a write operation with exponential backoff on
// SQLITE_BUSY, sqlite's single-writer limitation surfacing under
// concurrent station-day evaluations sharing one file.
func retryOnBusy(operation func() error) error {
	const maxRetries = 5
	const baseDelay = 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay * (1 << uint(attempt)))
		}
	}
	return fmt.Errorf("sqlite: operation failed after %d retries: %w", maxRetries, err)
}
