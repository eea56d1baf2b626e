// Package server exposes the monitoring engine over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/metrics"
	"github.com/hazz-dev/everwatch/internal/version"
)

// Registry is the endpoint registry as seen by the API.
type Registry interface {
	List() []endpoint.Endpoint
	Get(id string) (endpoint.Endpoint, error)
	Add(ep endpoint.Endpoint) (endpoint.Endpoint, error)
	Update(id, name, rawURL string, s endpoint.Settings) (endpoint.Endpoint, error)
	Remove(id string) error
	Records(id string) ([]endpoint.StatusRecord, error)
}

// Persister writes the registry snapshot after edits.
type Persister interface {
	Persist(ctx context.Context) error
}

// Waker runs one externally triggered probe cycle.
type Waker interface {
	Wake(ctx context.Context) error
}

// Server holds the chi router and its dependencies.
type Server struct {
	reg       Registry
	persister Persister
	waker     Waker
	metrics   *metrics.Metrics
	router    chi.Router
	logger    *slog.Logger
}

// New creates a new Server and registers all routes. waker may be nil, in
// which case the wake hook reports 503.
func New(reg Registry, persister Persister, waker Waker, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		reg:       reg,
		persister: persister,
		waker:     waker,
		metrics:   m,
		router:    chi.NewRouter(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Post("/api/wake", s.handleWake)

	r.Route("/api/endpoints", func(r chi.Router) {
		r.Get("/", s.handleListEndpoints)
		r.Post("/", s.handleCreateEndpoint)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetEndpoint)
			r.Put("/", s.handleUpdateEndpoint)
			r.Delete("/", s.handleDeleteEndpoint)
			r.Get("/history", s.handleGetHistory)
			r.Get("/periods", s.handleGetPeriods)
		})
	})

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	if s.waker == nil {
		writeError(w, http.StatusServiceUnavailable, "background checks are disabled")
		return
	}
	start := time.Now()
	if err := s.waker.Wake(r.Context()); err != nil {
		s.logger.Error("wake cycle", "error", err)
		writeError(w, http.StatusInternalServerError, "cycle failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"duration": time.Since(start).String(),
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
