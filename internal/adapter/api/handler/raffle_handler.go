package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/tctk/internal/domain"
)

const (
	defaultRaffleLimit = 20
	maxRaffleLimit     = 500
)

// ActiveRaffleProvider exposes the raffle currently accepting entrants.
type ActiveRaffleProvider interface {
	ActiveRaffle() (domain.Raffle, bool)
}

// RaffleHandler serves raffle history.
type RaffleHandler struct {
	repo   domain.RaffleRepository
	active ActiveRaffleProvider
	logger *slog.Logger
}

// NewRaffleHandler creates a new RaffleHandler. active may be nil when the
// raffle feature is not running.
func NewRaffleHandler(repo domain.RaffleRepository, active ActiveRaffleProvider, logger *slog.Logger) *RaffleHandler {
	return &RaffleHandler{repo: repo, active: active, logger: logger}
}

// List returns the most recent raffles.
// GET /raffles?limit=
func (h *RaffleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultRaffleLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRaffleLimit)
	}

	raffles, err := h.repo.ListRaffles(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list raffles", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if raffles == nil {
		raffles = []domain.Raffle{}
	}
	respondWithJSON(w, h.logger, http.StatusOK, raffles)
}

// Active returns the open raffle, or 404 when none is running.
// GET /raffles/active
func (h *RaffleHandler) Active(w http.ResponseWriter, r *http.Request) {
	if h.active == nil {
		http.Error(w, "no active raffle", http.StatusNotFound)
		return
	}
	raffle, ok := h.active.ActiveRaffle()
	if !ok {
		http.Error(w, "no active raffle", http.StatusNotFound)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, raffle)
}
