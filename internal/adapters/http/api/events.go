// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/quillmetrics/quill/internal/adapters/repository"
	"github.com/quillmetrics/quill/internal/app"
	"github.com/quillmetrics/quill/internal/domain/token"
)

// Header names carrying the origin credential. The secret is presented on
// every call and never cached server-side.
const (
	headerOriginToken  = "X-Origin-Token"
	headerOriginSecret = "X-Origin-Secret"
)

// eventRequest is the POST /events payload. The visitor field is the raw
// network-level identifier; when absent the client address of the request
// is used. It is anonymized before anything is persisted.
type eventRequest struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Visitor string `json:"visitor,omitempty"`
}

// EventsHandler handles ingestion requests.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", WrapKind(op, ErrBadRequest, err))
		return
	}

	visitor := req.Visitor
	if visitor == "" {
		visitor = clientAddr(r)
	}

	err := h.deps.Ingest(r.Context(), app.IngestRequest{
		TokenID:       strings.TrimSpace(r.Header.Get(headerOriginToken)),
		Secret:        r.Header.Get(headerOriginSecret),
		Action:        req.Action,
		Path:          req.Path,
		RawIdentifier: visitor,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", NewKind(op, err))
	case errors.Is(err, token.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, token.ErrUnauthorized))
	case errors.Is(err, app.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, err))
	case errors.Is(err, repository.ErrStorage):
		writeError(w, http.StatusServiceUnavailable, "storage_error", NewKind(op, repository.ErrStorage))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// clientAddr strips the port from the request's remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
