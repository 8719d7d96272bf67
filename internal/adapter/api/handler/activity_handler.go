package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/tctk/internal/adapter/repository/activitylog"
	"github.com/V4T54L/tctk/internal/domain"
)

// ActivityStatusProvider reports the state of the activity log being written.
type ActivityStatusProvider interface {
	Status() domain.ActivityStatus
	Dir() string
}

// ActivityHandler serves the rotating activity files.
type ActivityHandler struct {
	activity ActivityStatusProvider
	logger   *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activity ActivityStatusProvider, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: logger}
}

// ListFiles lists the activity files, oldest first.
// GET /activity/files
func (h *ActivityHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := activitylog.ListLogFiles(h.activity.Dir())
	if err != nil {
		h.logger.Error("failed to list activity files", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []domain.ActivityFileInfo{}
	}
	respondWithJSON(w, h.logger, http.StatusOK, files)
}

// GetFile returns the snapshots of one activity file. ?records=true
// flattens them into the activity records instead.
// GET /activity/files/{start}
func (h *ActivityHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	start, err := strconv.ParseInt(chi.URLParam(r, "start"), 10, 64)
	if err != nil {
		http.Error(w, "invalid start time", http.StatusBadRequest)
		return
	}

	snapshots, err := activitylog.ReadLogFile(filepath.Join(h.activity.Dir(), activitylog.FileName(start)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "activity file not found", http.StatusNotFound)
		return
	case err != nil && len(snapshots) == 0:
		h.logger.Error("failed to read activity file", "start", start, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	case err != nil:
		// a crash can leave the last snapshot truncated
		h.logger.Warn("activity file has a truncated tail", "start", start, "error", err)
	}

	if r.URL.Query().Get("records") == "true" {
		respondWithJSON(w, h.logger, http.StatusOK, activitylog.Records(snapshots))
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, snapshots)
}

// Current reports the LogFile currently being written.
// GET /activity/current
func (h *ActivityHandler) Current(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.activity.Status())
}
