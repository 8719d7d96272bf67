package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/tctk/internal/domain"
)

// RaffleRepository implements domain.RaffleRepository for PostgreSQL.
type RaffleRepository struct {
	db *sql.DB
}

// NewRaffleRepository creates a new PostgreSQL raffle repository.
func NewRaffleRepository(db *sql.DB) *RaffleRepository {
	return &RaffleRepository{db: db}
}

// SaveRaffle upserts the raffle and its entrants in one transaction.
func (r *RaffleRepository) SaveRaffle(ctx context.Context, raffle *domain.Raffle) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin raffle transaction: %w", err)
	}
	defer txn.Rollback()

	winners := raffle.Winners
	if winners == nil {
		winners = []string{}
	}
	_, err = txn.ExecContext(ctx, `
		INSERT INTO raffles (id, channel, start_time, duration_seconds, amount, winners, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			winners = EXCLUDED.winners,
			closed_at = EXCLUDED.closed_at
	`,
		raffle.ID,
		raffle.Channel,
		raffle.StartTime,
		int64(raffle.Duration/time.Second),
		raffle.Amount,
		pq.Array(winners),
		raffle.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("save raffle: %w", err)
	}

	for username, joinTime := range raffle.Entrants {
		_, err = txn.ExecContext(ctx, `
			INSERT INTO user_raffles (raffle_id, username, raffle_start_time, did_win, join_time)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (raffle_id, username) DO UPDATE SET did_win = EXCLUDED.did_win
		`, raffle.ID, username, raffle.StartTime, raffle.IsWinner(username), joinTime)
		if err != nil {
			return fmt.Errorf("save entry of %s: %w", username, err)
		}
	}

	return txn.Commit()
}

// ListRaffles returns the most recent raffles with entrants, newest first.
func (r *RaffleRepository) ListRaffles(ctx context.Context, limit int) ([]domain.Raffle, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel, start_time, duration_seconds, amount, winners, closed_at
		FROM raffles
		ORDER BY start_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list raffles: %w", err)
	}
	defer rows.Close()

	var raffles []domain.Raffle
	for rows.Next() {
		var (
			raffle   domain.Raffle
			duration int64
			closedAt sql.NullTime
		)
		if err := rows.Scan(&raffle.ID, &raffle.Channel, &raffle.StartTime, &duration, &raffle.Amount, pq.Array(&raffle.Winners), &closedAt); err != nil {
			return nil, fmt.Errorf("scan raffle: %w", err)
		}
		raffle.Duration = time.Duration(duration) * time.Second
		if closedAt.Valid {
			t := closedAt.Time
			raffle.ClosedAt = &t
		}
		raffles = append(raffles, raffle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raffles: %w", err)
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
		WHERE raffle_id = $1
		ORDER BY join_time ASC, username ASC
	`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list raffle entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.UserRaffle
	for rows.Next() {
		var e domain.UserRaffle
		if err := rows.Scan(&e.RaffleID, &e.Username, &e.RaffleStartTime, &e.DidWin, &e.JoinTime); err != nil {
			return nil, fmt.Errorf("scan raffle entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
