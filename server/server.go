// Package server exposes the liveness and last-cycle status endpoints that
// deployment platforms probe.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"sportstiming-notifier/pkg/ticket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves /healthz and /statusz. The monitor loop records each
// completed cycle via Record; HTTP readers see a consistent snapshot.
type Server struct {
	logger *slog.Logger

	mu   sync.RWMutex
	last *ticket.CycleResult
}

// New creates a server with no recorded cycle yet.
func New(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// Record stores the latest completed cycle.
func (s *Server) Record(result *ticket.CycleResult) {
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/statusz", s.handleStatus)
	return r
}

// ListenAndServe blocks serving HTTP on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Status server listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy"}); err != nil {
		s.logger.Warn("Failed to encode health response", "error", err)
	}
}

type statusResponse struct {
	Status     string    `json:"status"`
	Checked    int       `json:"checked"`
	Available  []int     `json:"available_ticket_ids"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if last == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "no cycle completed yet"}); err != nil {
			s.logger.Warn("Failed to encode status response", "error", err)
		}
		return
	}

	resp := statusResponse{
		Status:     last.Status.String(),
		Checked:    last.Checked,
		Available:  last.AvailableIDs(),
		StartedAt:  last.StartedAt,
		FinishedAt: last.FinishedAt,
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to encode status response", "error", err)
	}
}
