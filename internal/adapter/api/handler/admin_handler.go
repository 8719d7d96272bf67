package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/tctk/internal/adapter/repository/redis"
	"github.com/V4T54L/tctk/internal/usecase"
)

// AdminHandler handles HTTP requests for event stream administration.
type AdminHandler struct {
	uc     *usecase.AdminStreamUseCase
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc *usecase.AdminStreamUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger}
}

// GetStreamInfo reports the length of the event stream and its DLQ.
// GET /admin/streams
func (h *AdminHandler) GetStreamInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.uc.StreamInfo(r.Context())
	if err != nil {
		h.fail(w, "failed to get stream info", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}

// GetGroupInfo handles requests to get consumer group info.
// GET /admin/streams/{stream}/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	groups, err := h.uc.GetGroupInfo(r.Context(), chi.URLParam(r, "stream"))
	if err != nil {
		h.fail(w, "failed to get group info", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, groups)
}

// GetConsumerInfo handles requests to get consumer info for a group.
// GET /admin/streams/{stream}/groups/{group}/consumers
func (h *AdminHandler) GetConsumerInfo(w http.ResponseWriter, r *http.Request) {
	consumers, err := h.uc.GetConsumerInfo(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"))
	if err != nil {
		h.fail(w, "failed to get consumer info", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, consumers)
}

// GetPendingSummary handles requests to get a summary of pending events.
// GET /admin/streams/{stream}/groups/{group}/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.uc.GetPendingSummary(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"))
	if err != nil {
		h.fail(w, "failed to get pending summary", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, summary)
}

// GetPendingMessages lists pending events.
// GET /admin/streams/{stream}/groups/{group}/pending/messages?consumer=&start=&count=
func (h *AdminHandler) GetPendingMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var count int64
	if countStr := query.Get("count"); countStr != "" {
		var err error
		count, err = strconv.ParseInt(countStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid count parameter", http.StatusBadRequest)
			return
		}
	}

	messages, err := h.uc.GetPendingMessages(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"), query.Get("consumer"), query.Get("start"), count)
	if err != nil {
		h.fail(w, "failed to get pending messages", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, messages)
}

// ClaimMessages hands pending events over to another consumer.
// POST /admin/streams/{stream}/groups/{group}/claim
func (h *AdminHandler) ClaimMessages(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Consumer    string   `json:"consumer"`
		MinIdleTime string   `json:"min_idle_time"`
		MessageIDs  []string `json:"message_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Consumer == "" || len(payload.MessageIDs) == 0 {
		http.Error(w, "consumer and message_ids are required", http.StatusBadRequest)
		return
	}

	minIdle, err := time.ParseDuration(payload.MinIdleTime)
	if err != nil {
		http.Error(w, "invalid min_idle_time format", http.StatusBadRequest)
		return
	}

	claimed, err := h.uc.ClaimMessages(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"), payload.Consumer, minIdle, payload.MessageIDs)
	if err != nil {
		h.fail(w, "failed to claim messages", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, claimed)
}

// TrimStream caps the stream length.
// POST /admin/streams/{stream}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.MaxLen <= 0 {
		http.Error(w, "maxlen must be a positive integer", http.StatusBadRequest)
		return
	}

	trimmed, err := h.uc.TrimStream(r.Context(), chi.URLParam(r, "stream"), payload.MaxLen)
	if err != nil {
		h.fail(w, "failed to trim stream", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"trimmed": trimmed})
}

func (h *AdminHandler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	if errors.Is(err, redis.ErrUnavailable) {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
