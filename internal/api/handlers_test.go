package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/search-price-tracker/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStatus struct{ status jobs.Status }

func (f fakeStatus) Status() jobs.Status { return f.status }

func newTestRouter(pingErr error, status jobs.Status) http.Handler {
	h := NewHandlers(fakePinger{err: pingErr}, fakeStatus{status: status}, nil)
	return NewRouter(h, []string{"https://dashboard.example"})
}

func TestHealth(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(nil, jobs.Status{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "ok", body.Database)
	})

	t.Run("database down", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(errors.New("connection refused"), jobs.Status{}).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "error", body.Status)
		assert.Contains(t, body.Error, "connection refused")
	})
}

func TestGetStatus(t *testing.T) {
	next := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	status := jobs.Status{
		Cycles: 3,
		LastCycle: &jobs.CycleReport{
			CycleID:    "c-1",
			Pages:      4,
			Products:   80,
			Inserted:   80,
			StopReason: "empty_page",
		},
		NextRun: &next,
	}

	rec := httptest.NewRecorder()
	newTestRouter(nil, status).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(3), body["cycles"])
	assert.Equal(t, "2024-03-02T00:00:00Z", body["next_run"])
	assert.Contains(t, body, "server_time")

	last, ok := body["last_cycle"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c-1", last["cycle_id"])
	assert.Equal(t, float64(80), last["inserted"])
}

func TestGetStatusBeforeFirstCycle(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, jobs.Status{Running: true}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["running"])
	assert.NotContains(t, body, "last_cycle")
	assert.NotContains(t, body, "next_run")
}

func TestRouterMiddleware(t *testing.T) {
	router := newTestRouter(nil, jobs.Status{})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
	})

	t.Run("cors allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://dashboard.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("cors foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
