// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/quillmetrics/quill/internal/app"
	"github.com/quillmetrics/quill/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the app service.
type Dependencies interface {
	// Ingest runs one event through the gates; a nil error means accepted.
	Ingest(ctx context.Context, req app.IngestRequest) error

	// Stats computes the dashboard aggregate bundle.
	Stats(ctx context.Context, tokenID string, since time.Time, limit int) (model.Stats, error)
}

// Server wires HTTP routes for the ingestion and aggregation surfaces.
type Server struct {
	healthHandler *HealthHandler
	eventsHandler *EventsHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxTopResources int) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		eventsHandler: NewEventsHandler(deps),
		statsHandler:  NewStatsHandler(deps, maxTopResources),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleGetStats, "stats"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
