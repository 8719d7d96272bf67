// Package sqlite stores raffles in a local SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New opens the database at dataSourceName (a file path or ":memory:").
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: SQLite serializes writers and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist yet.
func (db *DB) RunMigrations() error {
	migration := `
CREATE TABLE IF NOT EXISTS raffles (
    id TEXT PRIMARY KEY,
    channel TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    duration_seconds INTEGER NOT NULL,
    amount INTEGER NOT NULL,
    winners TEXT NOT NULL DEFAULT '[]',
    closed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_raffles_start_time ON raffles(start_time);

CREATE TABLE IF NOT EXISTS user_raffles (
    raffle_id TEXT NOT NULL,
    username TEXT NOT NULL,
    raffle_start_time INTEGER NOT NULL,
    did_win INTEGER NOT NULL CHECK(did_win IN (0, 1)),
    join_time INTEGER NOT NULL,
    PRIMARY KEY (raffle_id, username),
    FOREIGN KEY (raffle_id) REFERENCES raffles(id)
);
CREATE INDEX IF NOT EXISTS idx_user_raffles_username ON user_raffles(username);
`
	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
