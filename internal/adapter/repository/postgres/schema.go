// Package postgres holds the PostgreSQL-backed event archive and raffle store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_events (
    event_id UUID PRIMARY KEY,
    kind TEXT NOT NULL,
    channel TEXT NOT NULL,
    received_at TIMESTAMPTZ NOT NULL,
    payload JSONB NOT NULL,
    pii_redacted BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_chat_events_received_at ON chat_events(received_at);
CREATE INDEX IF NOT EXISTS idx_chat_events_kind ON chat_events(kind);

CREATE TABLE IF NOT EXISTS raffles (
    id TEXT PRIMARY KEY,
    channel TEXT NOT NULL,
    start_time TIMESTAMPTZ NOT NULL,
    duration_seconds BIGINT NOT NULL,
    amount INTEGER NOT NULL,
    winners TEXT[] NOT NULL DEFAULT '{}',
    closed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_raffles_start_time ON raffles(start_time);

CREATE TABLE IF NOT EXISTS user_raffles (
    raffle_id TEXT NOT NULL REFERENCES raffles(id),
    username TEXT NOT NULL,
    raffle_start_time TIMESTAMPTZ NOT NULL,
    did_win BOOLEAN NOT NULL,
    join_time BIGINT NOT NULL,
    PRIMARY KEY (raffle_id, username)
);
`

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables used by this package if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
