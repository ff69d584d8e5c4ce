package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annel0/spacebobble/internal/auth"
	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/session"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats session.Stats

func (f fixedStats) Stats(context.Context) (session.Stats, error) { return session.Stats(f), nil }

type testEnv struct {
	srv    *RestServer
	store  storage.LeaderboardStore
	issuer *auth.Issuer
	bus    eventbus.EventBus
}

func newTestServer(t *testing.T, adminPassword string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), storage.ModeSolo, scores.Leaderboard{"Ann": 300, "Bob": 900}))

	issuer, err := auth.NewIssuer(auth.GenerateSecureSecret(), time.Hour)
	require.NoError(t, err)

	var hash string
	if adminPassword != "" {
		hash, err = auth.HashPassword(adminPassword)
		require.NoError(t, err)
	}

	bus := eventbus.NewMemoryBus(16)
	reg := prometheus.NewRegistry()
	srv, err := NewRestServer(Config{
		Session:           fixedStats{SessionID: "s-1", MinPlayers: 2, Players: []int{1}},
		Store:             store,
		Bus:               bus,
		Issuer:            issuer,
		AdminPasswordHash: hash,
		CacheTTL:          time.Minute,
		Registerer:        reg,
		Gatherer:          reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		_ = bus.Close()
	})
	return &testEnv{srv: srv, store: store, issuer: issuer, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeLeaderboard(t *testing.T, w *httptest.ResponseRecorder) LeaderboardResponse {
	t.Helper()
	var resp struct {
		Success bool                `json:"success"`
		Data    LeaderboardResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, "")
	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSession(t *testing.T) {
	env := newTestServer(t, "")
	w := env.do(t, http.MethodGet, "/api/session", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Session session.Stats `json:"session"`
			Process ProcessStats  `json:"process"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s-1", resp.Data.Session.SessionID)
	assert.Equal(t, 2, resp.Data.Session.MinPlayers)
	assert.Positive(t, resp.Data.Process.Goroutines)
}

func TestLeaderboard_RankedAndCached(t *testing.T) {
	env := newTestServer(t, "")

	w := env.do(t, http.MethodGet, "/api/leaderboard/SOLO", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	lb := decodeLeaderboard(t, w)
	assert.Equal(t, storage.ModeSolo, lb.Mode)
	assert.False(t, lb.Cached)
	assert.Equal(t, []scores.Entry{{Name: "Bob", Score: 900}, {Name: "Ann", Score: 300}}, lb.Entries)

	lb = decodeLeaderboard(t, env.do(t, http.MethodGet, "/api/leaderboard/solo", nil, ""))
	assert.True(t, lb.Cached)
}

func TestLeaderboard_UnknownMode(t *testing.T) {
	env := newTestServer(t, "")
	w := env.do(t, http.MethodGet, "/api/leaderboard/arcade", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboard_InvalidatedByEvent(t *testing.T) {
	env := newTestServer(t, "")
	ctx := context.Background()

	decodeLeaderboard(t, env.do(t, http.MethodGet, "/api/leaderboard/solo", nil, ""))
	require.NoError(t, env.store.Put(ctx, storage.ModeSolo, "Cat", 1200))

	ev, err := eventbus.NewEnvelope("test", eventbus.TypeLeaderboardUpdated, eventbus.LeaderboardUpdated{
		Mode: string(storage.ModeSolo), Name: "Cat", Score: 1200,
	})
	require.NoError(t, err)
	require.NoError(t, env.bus.Publish(ctx, ev))

	assert.Eventually(t, func() bool {
		lb := decodeLeaderboard(t, env.do(t, http.MethodGet, "/api/leaderboard/solo", nil, ""))
		return !lb.Cached && len(lb.Entries) == 3 && lb.Entries[0].Name == "Cat"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAdminLogin(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestServer(t, "")
		w := env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Password: "x"}, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	env := newTestServer(t, "hunter2")

	t.Run("bad request", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Password: "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ok", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Password: "hunter2"}, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.True(t, resp.Success)

		claims, err := env.issuer.Validate(resp.Token)
		require.NoError(t, err)
		assert.True(t, claims.Admin)
	})
}

func TestResetLeaderboard(t *testing.T) {
	env := newTestServer(t, "hunter2")
	path := "/api/admin/leaderboard/solo"

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, path, nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, path, nil, "garbage").Code)

	userToken, err := env.issuer.Issue("player", false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, path, nil, userToken).Code)

	// прогреваем кэш, сброс должен его очистить
	decodeLeaderboard(t, env.do(t, http.MethodGet, "/api/leaderboard/solo", nil, ""))

	adminToken, err := env.issuer.Issue("admin", true)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, nil, adminToken).Code)

	board, err := env.store.Load(context.Background(), storage.ModeSolo)
	require.NoError(t, err)
	assert.Empty(t, board)

	lb := decodeLeaderboard(t, env.do(t, http.MethodGet, "/api/leaderboard/solo", nil, ""))
	assert.False(t, lb.Cached)
	assert.Empty(t, lb.Entries)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/admin/leaderboard/arcade", nil, adminToken).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, "")
	env.do(t, http.MethodGet, "/health", nil, "")

	w := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rest_api_http_request_duration_seconds")
}
