package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liaptui/internal/model"
	"liaptui/internal/realtime"
	"liaptui/internal/repository"
	"liaptui/internal/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := repository.NewMemoryStore()
	registry := realtime.NewRegistry()
	locks := service.NewRoomLocks()
	auth := service.NewAuthService("test-secret", time.Hour)
	queues := service.NewMessageQueueService(store, registry, locks, 10)
	reconnect := service.NewReconnectionService(store, registry, locks, queues, 0)
	dispatcher := service.NewDispatcher(store, locks, registry, queues)
	rooms := service.NewRoomService(store, locks, auth, dispatcher, registry)

	return NewRouter(&Container{
		AuthService:         auth,
		RoomService:         rooms,
		MessageQueueService: queues,
		ReconnectionService: reconnect,
		Registry:            registry,
		AllowedOrigins:      "*",
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func createRoom(t *testing.T, h http.Handler, host string) model.JoinResult {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/rooms", map[string]any{"hostName": host})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.JoinResult](t, rec)
}

func TestRoomLifecycle(t *testing.T) {
	h := newTestRouter(t)

	created := createRoom(t, h, "alice")
	assert.NotEmpty(t, created.RoomID)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "alice", created.Room.HostName)

	base := "/v1/rooms/" + created.RoomID

	rec := do(t, h, http.MethodPost, base+"/join", map[string]any{"name": "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	joined := decode[model.JoinResult](t, rec)
	assert.Equal(t, 1, joined.Seat)

	rec = do(t, h, http.MethodPost, base+"/join", map[string]any{"name": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/join", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[model.RoomDetails](t, rec)
	require.NotNil(t, details.Game)
	assert.Len(t, details.Room.Players, 2)

	// Nobody holds a socket, so game_started waits in both queues.
	rec = do(t, h, http.MethodGet, base+"/queues", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.QueueStats](t, rec)
	assert.Equal(t, 2, stats.TotalQueues)
	assert.Equal(t, 2, stats.TotalMessages)

	rec = do(t, h, http.MethodPost, base+"/turn", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/end", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/end", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueEndpoints(t *testing.T) {
	h := newTestRouter(t)
	created := createRoom(t, h, "alice")
	base := "/v1/rooms/" + created.RoomID

	rec := do(t, h, http.MethodPost, base+"/queues/alice/prioritize", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, h, http.MethodPost, base+"/join", map[string]any{"name": "bob"})
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/start", nil).Code)

	rec = do(t, h, http.MethodPost, base+"/queues/alice/prioritize", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/queues/cleanup?maxAge=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/queues/cleanup?maxAge=1h", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["removed"])

	rec = do(t, h, http.MethodGet, "/v1/rooms/NOPE00/queues", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectionEndpoints(t *testing.T) {
	h := newTestRouter(t)
	created := createRoom(t, h, "alice")
	base := "/v1/rooms/" + created.RoomID

	rec := do(t, h, http.MethodGet, base+"/connections/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, `"`+created.RoomID+`"`, string(body["roomId"]))

	rec = do(t, h, http.MethodPost, base+"/connections/cleanup?timeout=600", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["removed"])

	rec = do(t, h, http.MethodGet, "/v1/rooms/NOPE00/connections/health", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveRequiresRoomToken(t *testing.T) {
	h := newTestRouter(t)
	first := createRoom(t, h, "alice")
	other := createRoom(t, h, "carol")
	base := "/v1/rooms/" + first.RoomID

	rec := do(t, h, http.MethodPost, base+"/leave", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/leave", nil, "Authorization", "Bearer "+other.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/leave", map[string]any{"activateBot": false}, "Authorization", "Bearer "+first.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, base, nil)
	details := decode[model.RoomDetails](t, rec)
	require.Len(t, details.Room.Players, 1)
	assert.False(t, details.Room.Players[0].IsConnected)
	assert.False(t, details.Room.Players[0].IsBot)
}

func TestHealthAndCORS(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodOptions, "/v1/rooms", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowOrigin(t *testing.T) {
	assert.Equal(t, "*", allowOrigin("*", "https://a.example"))
	assert.Equal(t, "https://a.example", allowOrigin("https://a.example, https://b.example", "https://a.example"))
	assert.Empty(t, allowOrigin("https://a.example", "https://evil.example"))
}
