package domain

import "time"

// Raffle is one raffle run announced by the raffle bot in chat.
type Raffle struct {
	ID        string           `json:"id"`
	Channel   string           `json:"channel"`
	StartTime time.Time        `json:"start_time"`
	Duration  time.Duration    `json:"duration"`
	Amount    int              `json:"amount"`
	Entrants  map[string]int64 `json:"entrants"`
	Winners   []string         `json:"winners"`
	ClosedAt  *time.Time       `json:"closed_at,omitempty"`
}

// IsWinner reports whether username won the raffle.
func (r *Raffle) IsWinner(username string) bool {
	for _, w := range r.Winners {
		if w == username {
			return true
		}
	}
	return false
}

// UserRaffle is one user's participation in a raffle.
type UserRaffle struct {
	RaffleID        string    `json:"raffle_id"`
	Username        string    `json:"username"`
	RaffleStartTime time.Time `json:"raffle_start_time"`
	DidWin          bool      `json:"did_win"`
	JoinTime        int64     `json:"join_time"`
}
