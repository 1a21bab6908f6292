// Package server exposes the optional operations endpoint: liveness,
// readiness, Prometheus metrics and the outcome of the last poll cycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/cnmwatch/internal/monitor"
	"github.com/HerbHall/cnmwatch/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessChecker returns nil when the process is ready, or the reason it
// is not.
type ReadinessChecker func(ctx context.Context) error

// CycleSource reports the most recent poll cycle.
type CycleSource interface {
	LastCycle() (monitor.CycleResult, bool)
}

// Server is the operations HTTP server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	ready      ReadinessChecker
	cycles     CycleSource
	logger     *zap.Logger
}

// New creates a Server listening on addr. ready and cycles may be nil.
func New(addr string, logger *zap.Logger, ready ReadinessChecker, cycles CycleSource) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		ready:  ready,
		cycles: cycles,
		logger: logger,
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	handler := Chain(s.mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		VersionHeaderMiddleware,
		RateLimitMiddleware(20, 40, []string{"/healthz", "/readyz", "/metrics"}),
	)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting operations server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("operations server: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down operations server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			Unavailable(w, err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version map[string]string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "cnmwatch",
		Version: version.Map(),
	})
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	CycleID  string    `json:"cycle_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Checked  int       `json:"checked"`
	Degraded bool      `json:"degraded"`
	Error    string    `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.cycles == nil {
		Unavailable(w, "poll status not available", r.URL.Path)
		return
	}
	last, ok := s.cycles.LastCycle()
	if !ok {
		Unavailable(w, "no poll cycle completed yet", r.URL.Path)
		return
	}
	resp := StatusResponse{
		CycleID:  last.ID,
		Started:  last.Started,
		Finished: last.Finished,
		Checked:  last.Checked,
		Degraded: last.Degraded,
	}
	if last.Err != nil {
		resp.Error = last.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
