package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/WessleyAI/carfeed/engine/graph"
	"github.com/WessleyAI/carfeed/engine/session"
	"github.com/WessleyAI/carfeed/pkg/metrics"
	"github.com/WessleyAI/carfeed/pkg/mid"
)

// modelIndex is the graph query the API exposes.
type modelIndex interface {
	ListingsByModel(ctx context.Context, manufacturer, model string) ([]graph.Summary, error)
}

type server struct {
	browser  *session.Browser
	graph    modelIndex
	snapshot string
	logger   *slog.Logger
	metrics  *metrics.Registry
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/next", s.handleNext).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleCursor).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleReset).Methods(http.MethodDelete)
	api.HandleFunc("/listings/{id}", s.handleListing).Methods(http.MethodGet)
	api.HandleFunc("/models/{make}/{model}/listings", s.handleModel).Methods(http.MethodGet)
	api.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	return mid.Chain(r,
		mid.RequestID(),
		mid.Recover(s.logger),
		mid.Logger(s.logger),
		mid.Metrics(s.metrics),
		mid.OTel("carfeed-api"),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "listings": s.browser.Feed().Len()})
}

// NextResponse is one page of a session. EndOfResults is set, and the other
// fields empty, once every listing has been shown.
type NextResponse struct {
	Number       int    `json:"number,omitempty"`
	Message      string `json:"message,omitempty"`
	EndOfResults bool   `json:"end_of_results,omitempty"`
}

func (s *server) handleNext(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, msg, err := s.browser.NextListing(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrEndOfResults):
		writeJSON(w, http.StatusOK, NextResponse{EndOfResults: true})
	case err != nil:
		s.logger.Error("next listing", "session", id, "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, NextResponse{Number: n, Message: msg})
	}
}

func (s *server) handleCursor(w http.ResponseWriter, r *http.Request) {
	cur, err := s.browser.Current(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.logger.Error("load cursor", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.browser.Reset(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.logger.Error("reset session", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListing(w http.ResponseWriter, r *http.Request) {
	l, ok := s.browser.Feed().Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *server) handleModel(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeError(w, http.StatusNotImplemented, "listing graph not configured")
		return
	}
	v := mux.Vars(r)
	out, err := s.graph.ListingsByModel(r.Context(), v["make"], v["model"])
	if err != nil {
		s.logger.Error("graph query", "err", err)
		writeError(w, http.StatusBadGateway, "graph query failed")
		return
	}
	if out == nil {
		out = []graph.Summary{}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleReload swaps in the snapshot currently on disk.
func (s *server) handleReload(w http.ResponseWriter, _ *http.Request) {
	set, err := loadSnapshot(s.snapshot, s.logger)
	if err != nil {
		s.logger.Error("reload snapshot", "err", err)
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	s.browser.Feed().Replace(set)
	writeJSON(w, http.StatusOK, map[string]int{"listings": set.Len()})
}
