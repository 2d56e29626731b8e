// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket-commit-mirror/internal/checkpoint"
)

type stubQueue struct {
	pending int
	lastErr string
}

func (s stubQueue) Pending() int      { return s.pending }
func (s stubQueue) LastError() string { return s.lastErr }

func newTestRouter(t *testing.T, store checkpoint.Store, queue QueueStats) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(store, queue, logger)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, checkpoint.NewMemory(), stubQueue{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestGetCheckpoint(t *testing.T) {
	store := checkpoint.NewMemory()
	require.NoError(t, store.Set(context.Background(),
		checkpoint.Key("bitbucket", "repo-a"), "2024-03-01T00:00:00"))
	router := newTestRouter(t, store, stubQueue{})

	t.Run("returns the stored value", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/checkpoints/repo-a", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "2024-03-01T00:00:00", body["checkpoint"])
		assert.Equal(t, "repo-a", body["repo"])
	})

	t.Run("404 for an unknown repository", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/checkpoints/other", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetQueue(t *testing.T) {
	router := newTestRouter(t, checkpoint.NewMemory(), stubQueue{pending: 7, lastErr: "unexpected acknowledgment: nope"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/queue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Pending   int    `json:"pending"`
		LastError string `json:"last_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Pending)
	assert.Equal(t, "unexpected acknowledgment: nope", body.LastError)
}
