// Package db persists experiment sessions and trial records in a
// local sqlite database. The schema is managed by versioned
// migrations embedded in the binary.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path and
// applies the connection pragmas. The schema is not touched; run
// MigrateUp for that.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// A single writer keeps sqlite happy under the engine's save
	// cadence; busy_timeout covers the monitor's concurrent reads.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &DB{conn}, nil
}
