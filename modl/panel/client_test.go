package panel_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modl-gg/minecraft-sub001/modl/panel"
)

func setupTest(t *testing.T, handler http.HandlerFunc) *panel.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return panel.NewClient(slog.Default(), srv.URL, "test-key")
}

func TestSyncDecodesResponse(t *testing.T) {
	t.Parallel()
	c := setupTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("authorization"))

		var req panel.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 100, req.LastSyncTimestamp)

		json.NewEncoder(w).Encode(panel.SyncResponse{Timestamp: 200})
	})

	resp, err := c.Sync(context.Background(), &panel.SyncRequest{LastSyncTimestamp: 100})
	require.NoError(t, err)
	assert.EqualValues(t, 200, resp.Timestamp)
}

func TestSyncUnavailableReturnsSentinel(t *testing.T) {
	t.Parallel()
	c := setupTest(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Sync(context.Background(), &panel.SyncRequest{})
	assert.ErrorIs(t, err, panel.ErrUnavailable)
}

func TestCallRetriesAfterRateLimit(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := setupTest(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.AcknowledgePunishment(context.Background(), &panel.PunishmentAck{PunishmentID: "B1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCallSurfacesServerError(t *testing.T) {
	t.Parallel()
	c := setupTest(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad api key", http.StatusUnauthorized)
	})

	_, err := c.Sync(context.Background(), &panel.SyncRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, panel.ErrUnavailable, "auth failures are not retried as transient")
	assert.Contains(t, err.Error(), "bad api key")
}

func TestCheckLoginCarriesRequest(t *testing.T) {
	t.Parallel()
	c := setupTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/player/login", r.URL.Path)
		json.NewEncoder(w).Encode(panel.LoginResult{})
	})

	req := &panel.LoginRequest{Name: "Steve", IP: "203.0.113.9"}
	result, err := c.CheckLogin(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, *req, result.Request)
	assert.False(t, result.Denied())
}
