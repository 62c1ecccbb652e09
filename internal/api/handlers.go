package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maltedev/search-price-tracker/internal/jobs"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource exposes the runner's latest state.
type StatusSource interface {
	Status() jobs.Status
}

type Handlers struct {
	db     Pinger
	runner StatusSource
	logger *slog.Logger
}

func NewHandlers(db Pinger, runner StatusSource, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		db:     db,
		runner: runner,
		logger: logger.With("component", "api"),
	}
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// StatusResponse represents the crawl status payload
type StatusResponse struct {
	jobs.Status
	ServerTime time.Time `json:"server_time"`
}

// Health pings the database; 503 when it is unreachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "error",
			Database: "unreachable",
			Error:    err.Error(),
		})
		return
	}

	h.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

// GetStatus returns the last cycle report and the next scheduled run.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, StatusResponse{
		Status:     h.runner.Status(),
		ServerTime: time.Now(),
	})
}

// NewRouter mounts the handlers behind the standard middleware stack.
func NewRouter(h *Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, http.StatusNotFound, "not found")
	})

	return r
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
