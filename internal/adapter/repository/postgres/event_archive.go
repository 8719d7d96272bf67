package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/tctk/internal/domain"
)

const eventsTempTable = "chat_events_temp_import"

// EventArchiveRepository implements domain.EventArchiveRepository for PostgreSQL.
type EventArchiveRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventArchiveRepository creates a new PostgreSQL event archive.
func NewEventArchiveRepository(db *sql.DB, logger *slog.Logger) *EventArchiveRepository {
	return &EventArchiveRepository{db: db, logger: logger.With("component", "postgres_archive")}
}

// WriteEventBatch copies a batch into a temp table and upserts it into
// chat_events, so replays of the same event_id are idempotent.
func (r *EventArchiveRepository) WriteEventBatch(ctx context.Context, events []domain.StreamEvent) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}
	defer txn.Rollback()

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+eventsTempTable+` (LIKE chat_events INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(eventsTempTable, "event_id", "kind", "channel", "received_at", "payload", "pii_redacted"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, event := range events {
		payload := string(event.Payload)
		if payload == "" {
			payload = "null"
		}
		_, err = stmt.ExecContext(ctx, event.ID, string(event.Kind), event.Channel, event.ReceivedAt, payload, event.PIIRedacted)
		if err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy event %s: %w", event.ID, err)
		}
	}

	// flushes the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO chat_events (event_id, kind, channel, received_at, payload, pii_redacted)
		SELECT event_id, kind, channel, received_at, payload, pii_redacted FROM `+eventsTempTable+`
		ON CONFLICT (event_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			channel = EXCLUDED.channel,
			received_at = EXCLUDED.received_at,
			payload = EXCLUDED.payload,
			pii_redacted = EXCLUDED.pii_redacted;
	`)
	if err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit archive transaction: %w", err)
	}
	r.logger.Debug("archived event batch", "count", len(events))
	return nil
}
