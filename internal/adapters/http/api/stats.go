// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/quillmetrics/quill/internal/adapters/repository"
)

// defaultTopResources is used when GET /stats carries no limit parameter.
const defaultTopResources = 10

// StatsHandler handles aggregate queries from the dashboard poller.
type StatsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies, maxLimit int) *StatsHandler {
	return &StatsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetStats handles GET /stats?token=&since=&limit= requests.
// since is RFC3339; an absent since means all time.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	tokenID := r.URL.Query().Get("token")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", WrapKind(op, ErrBadRequest, err))
			return
		}
		since = t.UTC()
	}

	limit := defaultTopResources
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_input", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	stats, err := h.deps.Stats(r.Context(), tokenID, since, limit)
	if err != nil {
		if errors.Is(err, repository.ErrStorage) {
			writeError(w, http.StatusServiceUnavailable, "storage_error", NewKind(op, repository.ErrStorage))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
