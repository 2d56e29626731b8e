// internal/api/handler.go
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bitbucket-commit-mirror/internal/checkpoint"
)

// QueueStats is the read-only view of the event batcher the API exposes.
type QueueStats interface {
	Pending() int
	LastError() string
}

// Handler is the container for API dependencies.
type Handler struct {
	checkpoints checkpoint.Store
	queue       QueueStats
	logger      *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
// The API is read-only; it serves operators, not the sync path.
func NewRouter(checkpoints checkpoint.Store, queue QueueStats, logger *slog.Logger) http.Handler {
	h := &Handler{
		checkpoints: checkpoints,
		queue:       queue,
		logger:      logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/checkpoints/{repo}", h.getCheckpoint)
		r.Get("/queue", h.getQueue)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getCheckpoint returns the stored checkpoint for a repository.
// GET /v1/checkpoints/{repo}
func (h *Handler) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")

	value, ok, err := h.checkpoints.Get(r.Context(), checkpoint.Key("bitbucket", repo))
	if err != nil {
		h.logger.Error("Failed to read checkpoint", "repo", repo, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		respondWithError(w, http.StatusNotFound, "No checkpoint for repository")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"repo":       repo,
		"checkpoint": value,
	})
}

// getQueue reports the pending event count and the last delivery failure.
// GET /v1/queue
func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"pending":    h.queue.Pending(),
		"last_error": h.queue.LastError(),
	})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}
