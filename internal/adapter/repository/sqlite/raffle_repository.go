package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
)

// RaffleRepository implements domain.RaffleRepository for SQLite
type RaffleRepository struct {
	db *DB
}

// NewRaffleRepository creates a new RaffleRepository
func NewRaffleRepository(db *DB) *RaffleRepository {
	return &RaffleRepository{db: db}
}

// SaveRaffle upserts the raffle and one row per entrant in a transaction.
func (r *RaffleRepository) SaveRaffle(ctx context.Context, raffle *domain.Raffle) error {
	winners, err := json.Marshal(nonNil(raffle.Winners))
	if err != nil {
		return fmt.Errorf("failed to encode winners: %w", err)
	}
	var closedAt sql.NullInt64
	if raffle.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: raffle.ClosedAt.Unix(), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO raffles (id, channel, start_time, duration_seconds, amount, winners, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			winners = excluded.winners,
			closed_at = excluded.closed_at
	`,
		raffle.ID,
		raffle.Channel,
		raffle.StartTime.Unix(),
		int64(raffle.Duration/time.Second),
		raffle.Amount,
		string(winners),
		closedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save raffle: %w", err)
	}

	for username, joinTime := range raffle.Entrants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_raffles (raffle_id, username, raffle_start_time, did_win, join_time)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(raffle_id, username) DO UPDATE SET did_win = excluded.did_win
		`,
			raffle.ID,
			username,
			raffle.StartTime.Unix(),
			raffle.IsWinner(username),
			joinTime,
		)
		if err != nil {
			return fmt.Errorf("failed to save entry of %s: %w", username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit raffle: %w", err)
	}
	return nil
}

// ListRaffles returns the most recent raffles with their entrants, newest first.
func (r *RaffleRepository) ListRaffles(ctx context.Context, limit int) ([]domain.Raffle, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel, start_time, duration_seconds, amount, winners, closed_at
		FROM raffles
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}
	defer rows.Close()

	var raffles []domain.Raffle
	for rows.Next() {
		var (
			raffle   domain.Raffle
			start    int64
			duration int64
			winners  string
			closedAt sql.NullInt64
		)
		if err := rows.Scan(&raffle.ID, &raffle.Channel, &start, &duration, &raffle.Amount, &winners, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffle.StartTime = time.Unix(start, 0).UTC()
		raffle.Duration = time.Duration(duration) * time.Second
		if err := json.Unmarshal([]byte(winners), &raffle.Winners); err != nil {
			return nil, fmt.Errorf("failed to decode winners of raffle %s: %w", raffle.ID, err)
		}
		if closedAt.Valid {
			t := time.Unix(closedAt.Int64, 0).UTC()
			raffle.ClosedAt = &t
		}
		raffles = append(raffles, raffle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raffles: %w", err)
	}

	for i := range raffles {
		entries, err := r.ListEntries(ctx, raffles[i].ID)
		if err != nil {
			return nil, err
		}
		raffles[i].Entrants = make(map[string]int64, len(entries))
		for _, e := range entries {
			raffles[i].Entrants[e.Username] = e.JoinTime
		}
	}
	return raffles, nil
}

// ListEntries returns the entrants of a raffle ordered by join time.
func (r *RaffleRepository) ListEntries(ctx context.Context, raffleID string) ([]domain.UserRaffle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT raffle_id, username, raffle_start_time, did_win, join_time
		FROM user_raffles
		WHERE raffle_id = ?
		ORDER BY join_time ASC, username ASC
	`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffle entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.UserRaffle
	for rows.Next() {
		var (
			e     domain.UserRaffle
			start int64
		)
		if err := rows.Scan(&e.RaffleID, &e.Username, &start, &e.DidWin, &e.JoinTime); err != nil {
			return nil, fmt.Errorf("failed to scan raffle entry: %w", err)
		}
		e.RaffleStartTime = time.Unix(start, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
